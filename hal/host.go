//go:build !tinygo

package hal

import (
	"fmt"
	"os"
	"sync"
)

// HostConfig sizes the simulated board.
type HostConfig struct {
	TicksPerSec int
	CputimeHz   uint32
	Width       int
	Height      int
}

type hostHAL struct {
	cpu    *Sim
	timer  HWTimer
	logger *hostLogger
	fb     *hostFramebuffer
	t      *hostTime
}

// New returns a host HAL implementation.
func New(cfg HostConfig) HAL {
	if cfg.CputimeHz == 0 {
		cfg.CputimeHz = 1000000
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 320, 240
	}
	cpu := NewSim()
	return &hostHAL{
		cpu:    cpu,
		timer:  newClockTimer(cpu, cfg.CputimeHz),
		logger: &hostLogger{w: os.Stdout},
		fb:     newHostFramebuffer(cfg.Width, cfg.Height),
		t:      newHostTime(cfg.TicksPerSec),
	}
}

func (h *hostHAL) CPU() CPU         { return h.cpu }
func (h *hostHAL) Timer() HWTimer   { return h.timer }
func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time       { return h.t }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostLogger struct {
	mu sync.Mutex
	w  *os.File
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	if len(b) == 0 || b[len(b)-1] != '\n' {
		l.w.Write([]byte{'\n'})
	}
}
