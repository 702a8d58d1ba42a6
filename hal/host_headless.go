//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Host HostConfig
	// Hz is how often the runner polls the tick source and the app.
	Hz int
	// Ticks stops the runner after that many polls. Zero runs until the
	// CPU halts or ctx ends.
	Ticks uint64
}

// hostBoard is what both runners drive: the host devices plus the app's
// step function.
type hostBoard struct {
	h    *hostHAL
	step func() error
}

func newHostBoard(cfg HostConfig, newApp func(HAL) func() error) *hostBoard {
	h := New(cfg).(*hostHAL)
	return &hostBoard{h: h, step: newApp(h)}
}

// poll advances host time and runs the app step. It reports done once the
// CPU has halted.
func (b *hostBoard) poll() (done bool, err error) {
	select {
	case <-b.h.cpu.Halted():
		return true, nil
	default:
	}
	b.h.t.poll()
	if b.step != nil {
		err = b.step()
	}
	return false, err
}

// RunHeadless runs the board without a window until ctx ends, the CPU
// halts or cfg.Ticks polls have passed.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	every := time.Second / time.Duration(cfg.Hz)
	if every <= 0 {
		return fmt.Errorf("hal: headless rate %d Hz too high", cfg.Hz)
	}
	b := newHostBoard(cfg.Host, newApp)

	t := time.NewTicker(every)
	defer t.Stop()
	for n := uint64(0); cfg.Ticks == 0 || n < cfg.Ticks; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.h.cpu.Halted():
			return nil
		case <-t.C:
		}
		if done, err := b.poll(); done || err != nil {
			return err
		}
	}
	return nil
}
