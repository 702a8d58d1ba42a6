package hal

func rgb565(r, g, b uint8) uint16 {
	rr := uint16(r>>3) & 0x1F
	gg := uint16(g>>2) & 0x3F
	bb := uint16(b>>3) & 0x1F
	return (rr << 11) | (gg << 5) | bb
}

func rgb888From565(p uint16) (r, g, b uint8) {
	r = uint8((((p >> 11) & 0x1F) * 255) / 31)
	g = uint8((((p >> 5) & 0x3F) * 255) / 63)
	b = uint8(((p & 0x1F) * 255) / 31)
	return r, g, b
}

// expandRGB565 converts little-endian RGB565 pixels in src to opaque RGBA
// in dst.
func expandRGB565(dst, src []byte) {
	for i := 0; i+1 < len(src) && i/2*4+3 < len(dst); i += 2 {
		r, g, b := rgb888From565(uint16(src[i]) | uint16(src[i+1])<<8)
		j := (i / 2) * 4
		dst[j+0] = r
		dst[j+1] = g
		dst[j+2] = b
		dst[j+3] = 0xFF
	}
}

// PutRGB565 stores one pixel into an RGB565 framebuffer. Out of range
// coordinates are ignored.
func PutRGB565(fb Framebuffer, x, y int, r, g, b uint8) {
	if fb == nil || fb.Format() != PixelFormatRGB565 {
		return
	}
	buf := fb.Buffer()
	if x < 0 || x >= fb.Width() || y < 0 || y >= fb.Height() {
		return
	}
	off := y*fb.StrideBytes() + x*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	p := rgb565(r, g, b)
	buf[off] = byte(p)
	buf[off+1] = byte(p >> 8)
}
