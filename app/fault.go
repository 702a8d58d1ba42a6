package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"nkern/hal"
	"nkern/internal/fault"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	faultFontHeight = 10
	faultFontOffset = 6
)

// installFaultHandler logs the first kernel fault and paints it over the
// framebuffer.
func installFaultHandler(log zerolog.Logger, disp hal.Display) {
	fault.SetHandler(func(info *fault.Info) {
		log.Error().Str("task", info.Task).Interface("value", info.Value).Msg("kernel fault")
		for _, line := range stackLines(info.Stack) {
			log.Debug().Msg(line)
		}
		if disp == nil {
			return
		}
		if fb := disp.Framebuffer(); fb != nil {
			drawFault(fb, info)
		}
	})
}

func stackLines(stack []byte) []string {
	var out []string
	for _, line := range strings.Split(string(stack), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func drawFault(fb hal.Framebuffer, info *fault.Info) {
	fb.ClearRGB(255, 255, 255)

	font := &proggy.TinySZ8pt7b
	_, w := tinyfont.LineWidth(font, "0")
	fontWidth := int16(w)
	if fontWidth <= 0 {
		_ = fb.Present()
		return
	}

	lines := []string{
		"Kernel fault",
		"task: " + info.Task,
		fmt.Sprintf("fault: %v", info.Value),
	}
	if stack := stackLines(info.Stack); len(stack) > 0 {
		lines = append(lines, "stack:")
		lines = append(lines, stack...)
	}

	d := newScreen(fb)
	fg := color.RGBA{A: 255}
	cols := max(int16(fb.Width())/fontWidth, 1)
	y := int16(0)
	for _, line := range lines {
		for len(line) > 0 {
			if int(y)+faultFontHeight > fb.Height() {
				_ = fb.Present()
				return
			}
			chunk, rest := takeRunes(line, cols)
			x := int16(0)
			for _, r := range chunk {
				tinyfont.DrawChar(d, font, x, y+faultFontOffset, r, fg)
				x += fontWidth
			}
			y += faultFontHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = fb.Present()
}

// takeRunes splits s after its first n runes.
func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 {
		return "", s
	}
	i := 0
	for count := int16(0); i < len(s) && count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], s[i:]
}
