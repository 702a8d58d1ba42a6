// Package app is the demo board bring-up: it builds the kernel and its
// pools from a syscfg and runs a packet pipeline and a task monitor on it.
package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"nkern/hal"
	"nkern/internal/buildinfo"
	"nkern/kernel"
	"nkern/kernel/cputime"
	"nkern/kernel/mbuf"
	"nkern/kernel/mempool"
	"nkern/kernel/oserr"
)

// System is one configured kernel plus its demo workload.
type System struct {
	h   hal.HAL
	cfg Config
	log zerolog.Logger

	k       *kernel.Kernel
	cputime *cputime.Cputime
	pools   mempool.Registry
	msys    mbuf.Registry
	demo    *demo
	stats   chan Snapshot

	// Counters are updated by the demo tasks.
	Counters Counters

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewLogger returns a console logger writing through the board's line
// logger.
func NewLogger(l hal.Logger, level zerolog.Level) zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: lineWriter{l}, NoColor: true, TimeFormat: "15:04:05.000"}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

type lineWriter struct{ l hal.Logger }

func (w lineWriter) Write(p []byte) (int, error) {
	w.l.WriteLineBytes(p)
	return len(p), nil
}

// New builds the system on h. Nothing runs until Start.
func New(h hal.HAL, cfg Config, log zerolog.Logger) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &System{
		h:     h,
		cfg:   cfg,
		log:   log,
		stats: make(chan Snapshot, 1),
		done:  make(chan struct{}),
	}
	installFaultHandler(log, h.Display())

	itvl := uint64(cfg.Kernel.SanityIntervalMs) * uint64(cfg.Kernel.TicksPerSec) / 1000
	if itvl > math.MaxInt32 {
		return nil, fmt.Errorf("sanity interval %dms: %w", cfg.Kernel.SanityIntervalMs, oserr.InvalidArgument)
	}
	s.k = kernel.New(h.CPU(), kernel.Config{
		TicksPerSec:    cfg.Kernel.TicksPerSec,
		SanityInterval: kernel.Time(itvl),
		Logger:         log,
	})

	var err error
	if hw := h.Timer(); hw != nil {
		if s.cputime, err = cputime.New(h.CPU(), hw, 1_000_000); err != nil {
			return nil, fmt.Errorf("cputime: %w", err)
		}
	}

	if err := s.initMsys(); err != nil {
		return nil, err
	}
	if s.demo, err = newDemo(s.k, &s.msys, s.cputime, cfg.Demo, log, &s.Counters); err != nil {
		return nil, fmt.Errorf("demo: %w", err)
	}
	if cfg.Demo.Monitor {
		if _, err := newMonitor(s.k, &s.msys, &s.Counters, h.Display(), s.stats); err != nil {
			return nil, fmt.Errorf("monitor: %w", err)
		}
	}
	return s, nil
}

func (s *System) initMsys() error {
	var opts []mempool.Option
	if s.cfg.Msys.Check {
		opts = append(opts, mempool.WithCheck())
	}
	for _, pc := range s.cfg.Msys.Pools {
		name := fmt.Sprintf("msys_%d", pc.BlockSize)
		mp, err := mempool.New(s.h.CPU(), pc.Blocks, pc.BlockSize, mempool.Buffer(pc.Blocks, pc.BlockSize), name, opts...)
		if err != nil {
			return fmt.Errorf("msys pool %s: %w", name, err)
		}
		s.pools.Add(mp)
		s.msys.Register(mbuf.NewPool(mp))
	}
	s.pools.Walk(func(i mempool.Info) bool {
		s.log.Debug().Str("pool", i.Name).Int("blocks", i.NumBlocks).Int("block_size", i.BlockSize).Msg("msys pool")
		return true
	})
	return nil
}

// Kernel returns the kernel.
func (s *System) Kernel() *kernel.Kernel { return s.k }

// Msys returns the mbuf pool registry.
func (s *System) Msys() *mbuf.Registry { return &s.msys }

// Stats delivers the monitor's samples. Samples are dropped while nobody
// reads.
func (s *System) Stats() <-chan Snapshot { return s.stats }

// Start runs the kernel, the tick forwarder and the stats reporter until
// ctx is cancelled or the kernel halts. It returns a step function for
// the host runners that reports the first failure.
func (s *System) Start(ctx context.Context) func() error {
	ctx, s.cancel = context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	s.log.Info().Str("build", buildinfo.Short()).Int("pools", s.pools.Len()).Msg("boot")

	g.Go(func() error {
		defer s.cancel()
		return s.k.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		s.k.Halt()
		return nil
	})
	g.Go(func() error { return s.forwardTicks(ctx) })
	if s.cfg.Demo.Monitor {
		g.Go(func() error { return s.report(ctx) })
	}

	go func() {
		s.err = g.Wait()
		close(s.done)
	}()
	return s.Err
}

// forwardTicks turns the board tick stream into tick interrupts.
func (s *System) forwardTicks(ctx context.Context) error {
	t := s.h.Time()
	if t == nil {
		return nil
	}
	ticks := t.Ticks()
	cpu := s.h.CPU()
	tick := func() { s.k.TimeAdvance(1) }
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			cpu.Interrupt(tick)
		}
	}
}

func (s *System) report(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-s.stats:
			ev := s.log.Info().Uint32("now", uint32(snap.Now)).
				Uint32("sent", snap.Sent).Uint32("received", snap.Received).Uint32("dropped", snap.Dropped).
				Uint32("max_latency_us", s.Counters.MaxLatencyUs.Load())
			for _, p := range snap.Pools {
				ev = ev.Str(p.Name, fmt.Sprintf("%d/%d", p.NumFree, p.NumBlocks))
			}
			ev.Int("tasks", len(snap.Tasks)).Msg("stats")
		}
	}
}

// Stop halts the kernel and waits for everything Start began.
func (s *System) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.Wait()
}

// Wait blocks until the system has stopped and returns the fault that
// stopped it, if any.
func (s *System) Wait() error {
	<-s.done
	return s.err
}

// Err returns the failure that stopped the system, or nil while it runs.
func (s *System) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Done is closed once the system has stopped.
func (s *System) Done() <-chan struct{} { return s.done }

// WaitFor polls cond until it holds or the timeout passes.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}
