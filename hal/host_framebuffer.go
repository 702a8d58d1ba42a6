//go:build !tinygo

package hal

import (
	"encoding/binary"
	"sync"
)

// hostFramebuffer is drawn into by the board and published to the window
// on Present. gen counts publications so the window copies only new
// frames.
type hostFramebuffer struct {
	w, h int
	back []byte

	mu    sync.Mutex
	front []byte
	gen   uint64
}

func newHostFramebuffer(w, h int) *hostFramebuffer {
	n := w * h * 2
	return &hostFramebuffer{w: w, h: h, back: make([]byte, n), front: make([]byte, n)}
}

func (f *hostFramebuffer) Width() int          { return f.w }
func (f *hostFramebuffer) Height() int         { return f.h }
func (f *hostFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *hostFramebuffer) StrideBytes() int    { return f.w * 2 }
func (f *hostFramebuffer) Buffer() []byte      { return f.back }

func (f *hostFramebuffer) ClearRGB(r, g, b uint8) {
	p := rgb565(r, g, b)
	for off := 0; off+1 < len(f.back); off += 2 {
		binary.LittleEndian.PutUint16(f.back[off:], p)
	}
}

func (f *hostFramebuffer) Present() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.front, f.back)
	f.gen++
	return nil
}

// frontSince copies the published frame into dst if it is newer than gen
// and returns the current generation.
func (f *hostFramebuffer) frontSince(gen uint64, dst []byte) (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen == gen {
		return gen, false
	}
	copy(dst, f.front)
	return f.gen, true
}
