//go:build !tinygo

package hal

import "time"

// hostTime turns wall time into a tick stream. Ticks are counted from the
// first poll, so slow polling catches up instead of drifting. Ticks that
// find the channel full are counted in dropped.
type hostTime struct {
	ch     chan uint64
	period time.Duration
	now    func() time.Time

	start   time.Time
	sent    uint64
	dropped uint64
}

func newHostTime(ticksPerSec int) *hostTime {
	if ticksPerSec <= 0 {
		ticksPerSec = 1000
	}
	return &hostTime{
		ch:     make(chan uint64, 1024),
		period: time.Second / time.Duration(ticksPerSec),
		now:    time.Now,
	}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// poll emits every tick that fell due since the previous poll.
func (t *hostTime) poll() {
	now := t.now()
	if t.start.IsZero() {
		t.start = now
	}
	due := uint64(now.Sub(t.start)/t.period) + 1
	for t.sent < due {
		t.sent++
		select {
		case t.ch <- t.sent:
		default:
			t.dropped++
		}
	}
}
