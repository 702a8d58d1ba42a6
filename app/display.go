package app

import (
	"image/color"

	"nkern/hal"

	"tinygo.org/x/drivers"
)

// screen adapts a framebuffer to the tinygo display driver interface.
type screen struct {
	fb hal.Framebuffer
}

var _ drivers.Displayer = (*screen)(nil)

func newScreen(fb hal.Framebuffer) *screen {
	return &screen{fb: fb}
}

func (d *screen) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *screen) SetPixel(x, y int16, c color.RGBA) {
	hal.PutRGB565(d.fb, int(x), int(y), c.R, c.G, c.B)
}

func (d *screen) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

// ScrollUp moves the picture up by lines and clears the rows exposed at
// the bottom.
func (d *screen) ScrollUp(lines int16, bg color.RGBA) error {
	if d.fb == nil || lines <= 0 {
		return nil
	}
	w, h := d.fb.Width(), d.fb.Height()
	n := int(lines)
	if n >= h {
		return d.FillRectangle(0, 0, int16(w), int16(h), bg)
	}

	buf := d.fb.Buffer()
	stride := d.fb.StrideBytes()
	copy(buf[:(h-n)*stride], buf[n*stride:h*stride])
	return d.FillRectangle(0, int16(h-n), int16(w), lines, bg)
}

func (d *screen) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if d.fb == nil {
		return nil
	}
	w, h := d.fb.Width(), d.fb.Height()
	x0, y0 := clamp(int(x), 0, w), clamp(int(y), 0, h)
	x1, y1 := clamp(int(x)+int(width), 0, w), clamp(int(y)+int(height), 0, h)
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			hal.PutRGB565(d.fb, px, py, c.R, c.G, c.B)
		}
	}
	return nil
}

func (d *screen) SetScroll(int16) {}

func (d *screen) SetRotation(drivers.Rotation) error { return nil }

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
