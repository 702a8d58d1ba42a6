//go:build !tinygo

package hal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostTimeCatchesUp(t *testing.T) {
	ht := newHostTime(100)
	now := time.Unix(1000, 0)
	ht.now = func() time.Time { return now }

	ht.poll()
	require.Len(t, ht.ch, 1)

	now = now.Add(35 * time.Millisecond)
	ht.poll()
	assert.Len(t, ht.ch, 4)

	now = now.Add(4 * time.Millisecond)
	ht.poll()
	assert.Len(t, ht.ch, 4, "no tick until the next period boundary")

	for want := uint64(1); want <= 4; want++ {
		assert.Equal(t, want, <-ht.ch)
	}
}

func TestHostTimeCountsDropped(t *testing.T) {
	ht := newHostTime(1000)
	ht.ch = make(chan uint64, 2)
	now := time.Unix(0, 1)
	ht.now = func() time.Time { return now }

	ht.poll()
	now = now.Add(4 * time.Millisecond)
	ht.poll()
	assert.Equal(t, uint64(5), ht.sent)
	assert.Equal(t, uint64(3), ht.dropped)
}

func TestHostFramebufferGenerations(t *testing.T) {
	fb := newHostFramebuffer(4, 2)
	dst := make([]byte, len(fb.Buffer()))

	_, ok := fb.frontSince(0, dst)
	assert.False(t, ok, "nothing presented yet")

	fb.ClearRGB(255, 255, 255)
	require.NoError(t, fb.Present())
	gen, ok := fb.frontSince(0, dst)
	require.True(t, ok)
	assert.Equal(t, uint64(1), gen)
	assert.Equal(t, byte(0xFF), dst[0])

	_, ok = fb.frontSince(gen, dst)
	assert.False(t, ok)
}

func TestPutRGB565IgnoresOutOfRange(t *testing.T) {
	fb := newHostFramebuffer(2, 2)
	PutRGB565(fb, 1, 1, 255, 0, 0)
	PutRGB565(fb, 2, 0, 255, 255, 255)
	PutRGB565(fb, -1, 0, 255, 255, 255)

	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0x00, 0xF8}, fb.Buffer())
}

func TestRunHeadlessStopsOnHalt(t *testing.T) {
	polls := 0
	err := RunHeadless(t.Context(), func(h HAL) func() error {
		return func() error {
			polls++
			if polls == 3 {
				h.CPU().Halt()
			}
			return nil
		}
	}, HeadlessConfig{Hz: 1000})
	require.NoError(t, err)
	assert.Equal(t, 3, polls)
}
