//go:build !tinygo && cgo

package hal

import (
	"errors"

	"github.com/hajimehoshi/ebiten/v2"

	"nkern/internal/buildinfo"
)

const windowScale = 2

// RunWindow shows the board framebuffer in a desktop window. It returns
// when the window is closed or the app step fails. A halted CPU leaves
// its last frame, usually the fault screen, on display.
func RunWindow(newApp func(HAL) func() error, cfg HostConfig) error {
	b := newHostBoard(cfg, newApp)
	fb := b.h.fb

	ebiten.SetWindowTitle("nkern " + buildinfo.Short())
	ebiten.SetWindowSize(fb.w*windowScale, fb.h*windowScale)
	ebiten.SetTPS(60)
	err := ebiten.RunGame(&window{b: b, rgba: make([]byte, fb.w*fb.h*4), raw: make([]byte, fb.w*fb.h*2)})
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

type window struct {
	b      *hostBoard
	halted bool

	gen  uint64
	raw  []byte
	rgba []byte
	img  *ebiten.Image
}

func (w *window) Update() error {
	if w.halted {
		return nil
	}
	done, err := w.b.poll()
	w.halted = done
	return err
}

func (w *window) Draw(screen *ebiten.Image) {
	fb := w.b.h.fb
	if w.img == nil {
		w.img = ebiten.NewImage(fb.w, fb.h)
	}
	if gen, ok := fb.frontSince(w.gen, w.raw); ok {
		w.gen = gen
		expandRGB565(w.rgba, w.raw)
		w.img.WritePixels(w.rgba)
	}
	screen.DrawImage(w.img, nil)
}

func (w *window) Layout(int, int) (int, int) {
	fb := w.b.h.fb
	return fb.w, fb.h
}
