package app

import (
	"encoding/binary"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nkern/hal"
	"nkern/internal/fault"
)

type testFB struct {
	w, h     int
	buf      []byte
	presents int
}

func newTestFB(w, h int) *testFB {
	return &testFB{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (f *testFB) Width() int              { return f.w }
func (f *testFB) Height() int             { return f.h }
func (f *testFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int        { return f.w * 2 }
func (f *testFB) Buffer() []byte          { return f.buf }
func (f *testFB) Present() error          { f.presents++; return nil }

func (f *testFB) ClearRGB(r, g, b uint8) {
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			hal.PutRGB565(f, x, y, r, g, b)
		}
	}
}

func (f *testFB) pixel(x, y int) uint16 {
	return binary.LittleEndian.Uint16(f.buf[y*f.StrideBytes()+x*2:])
}

func TestScreenFillClips(t *testing.T) {
	fb := newTestFB(8, 4)
	d := newScreen(fb)

	require.NoError(t, d.FillRectangle(-2, 2, 4, 10, color.RGBA{R: 255, G: 255, B: 255}))
	assert.Equal(t, uint16(0xFFFF), fb.pixel(0, 2))
	assert.Equal(t, uint16(0xFFFF), fb.pixel(1, 3))
	assert.Zero(t, fb.pixel(2, 3))
	assert.Zero(t, fb.pixel(0, 1))
}

func TestScreenScrollUp(t *testing.T) {
	fb := newTestFB(4, 4)
	d := newScreen(fb)
	d.SetPixel(1, 3, color.RGBA{R: 255, G: 255, B: 255})

	require.NoError(t, d.ScrollUp(2, color.RGBA{}))
	assert.Equal(t, uint16(0xFFFF), fb.pixel(1, 1))
	assert.Zero(t, fb.pixel(1, 3))

	require.NoError(t, d.ScrollUp(10, color.RGBA{}))
	assert.Zero(t, fb.pixel(1, 1))
}

func TestScreenNilFramebuffer(t *testing.T) {
	d := newScreen(nil)
	x, y := d.Size()
	assert.Zero(t, x)
	assert.Zero(t, y)
	assert.NoError(t, d.Display())
	assert.NoError(t, d.FillRectangle(0, 0, 1, 1, color.RGBA{}))
}

func TestDrawFault(t *testing.T) {
	fb := newTestFB(128, 64)
	drawFault(fb, &fault.Info{Task: "worker0", Value: "mutex: release by non-owner", Stack: []byte("goroutine 7\nmain.go:12\n")})

	assert.Equal(t, 1, fb.presents)
	var dark int
	for y := 0; y < fb.h; y++ {
		for x := 0; x < fb.w; x++ {
			if fb.pixel(x, y) == 0 {
				dark++
			}
		}
	}
	assert.NotZero(t, dark, "text is drawn over the white background")
}

func TestTakeRunes(t *testing.T) {
	p, r := takeRunes("héllo", 2)
	assert.Equal(t, "hé", p)
	assert.Equal(t, "llo", r)

	p, r = takeRunes("ab", 0)
	assert.Empty(t, p)
	assert.Equal(t, "ab", r)
}
