package hal

import (
	"sync"
	"time"
)

// SimTimer is a hardware counter advanced explicitly by the caller.
type SimTimer struct {
	cpu CPU

	mu      sync.Mutex
	counter uint32
	compare uint32
	armed   bool
	handler func()
}

// NewSimTimer returns a counter at zero whose compare interrupt is raised
// on cpu.
func NewSimTimer(cpu CPU) *SimTimer {
	return &SimTimer{cpu: cpu}
}

func (t *SimTimer) Counter() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counter
}

func (t *SimTimer) SetCompare(v uint32) {
	t.mu.Lock()
	t.compare = v
	t.armed = true
	t.mu.Unlock()
}

func (t *SimTimer) SetHandler(fn func()) {
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
}

func (t *SimTimer) ForcePending() {
	t.mu.Lock()
	fn := t.handler
	t.mu.Unlock()
	if fn != nil {
		t.cpu.Interrupt(fn)
	}
}

// Advance moves the counter forward by n. The compare interrupt fires if
// the compare value was crossed.
func (t *SimTimer) Advance(n uint32) {
	t.mu.Lock()
	old := t.counter
	t.counter += n
	d := t.compare - old
	hit := t.armed && d != 0 && d <= n
	if hit {
		t.armed = false
	}
	fn := t.handler
	t.mu.Unlock()
	if hit && fn != nil {
		t.cpu.Interrupt(fn)
	}
}

// Set jumps the counter to v without firing the compare interrupt.
func (t *SimTimer) Set(v uint32) {
	t.mu.Lock()
	t.counter = v
	t.mu.Unlock()
}

// clockTimer derives its counter from the host monotonic clock.
type clockTimer struct {
	cpu    CPU
	start  time.Time
	period time.Duration

	mu      sync.Mutex
	pending *time.Timer
	handler func()
}

func newClockTimer(cpu CPU, freqHz uint32) *clockTimer {
	p := time.Second / time.Duration(freqHz)
	if p <= 0 {
		p = 1
	}
	return &clockTimer{cpu: cpu, start: time.Now(), period: p}
}

func (t *clockTimer) Counter() uint32 {
	return uint32(time.Since(t.start) / t.period)
}

func (t *clockTimer) SetCompare(v uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	d := int32(v - t.Counter())
	if d <= 0 {
		return
	}
	t.pending = time.AfterFunc(time.Duration(d)*t.period, t.ForcePending)
}

func (t *clockTimer) SetHandler(fn func()) {
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
}

func (t *clockTimer) ForcePending() {
	t.mu.Lock()
	fn := t.handler
	t.mu.Unlock()
	if fn != nil {
		t.cpu.Interrupt(fn)
	}
}
