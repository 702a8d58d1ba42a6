// Package cputime keeps high resolution time on a free-running hardware
// counter and runs one-shot timers off its compare interrupt.
package cputime

import (
	"nkern/hal"
	"nkern/kernel/oserr"
)

const minFreq = 1_000_000

// Cputime is the time base of one hardware counter.
type Cputime struct {
	cpu          hal.CPU
	hw           hal.HWTimer
	freq         uint32
	ticksPerUsec uint32

	high uint32
	last uint32

	head, tail *Timer

	// Expirations counts compare interrupts serviced.
	Expirations uint32
}

// New takes over hw, which counts at freqHz. The frequency must be a
// whole number of megahertz.
func New(cpu hal.CPU, hw hal.HWTimer, freqHz uint32) (*Cputime, error) {
	if freqHz < minFreq || freqHz%minFreq != 0 {
		return nil, oserr.InvalidArgument
	}
	c := &Cputime{
		cpu:          cpu,
		hw:           hw,
		freq:         freqHz,
		ticksPerUsec: freqHz / minFreq,
	}
	c.last = hw.Counter()
	hw.SetHandler(c.TimerExpired)
	return c, nil
}

func (c *Cputime) Freq() uint32 { return c.freq }

// Get32 returns the raw counter.
func (c *Cputime) Get32() uint32 { return c.hw.Counter() }

// Get64 returns the counter extended to 64 bits. A wrap is noticed on the
// next call, so it must be called at least once per counter period.
func (c *Cputime) Get64() uint64 {
	sr := c.cpu.EnterCritical()
	defer c.cpu.ExitCritical(sr)

	low := c.hw.Counter()
	if low < c.last {
		c.high++
	}
	c.last = low
	return uint64(c.high)<<32 | uint64(low)
}

func (c *Cputime) NsecsToTicks(nsecs uint32) uint32 {
	return uint32((uint64(nsecs)*uint64(c.ticksPerUsec) + 999) / 1000)
}

func (c *Cputime) TicksToNsecs(ticks uint32) uint32 {
	return uint32((uint64(ticks)*1000 + uint64(c.ticksPerUsec) - 1) / uint64(c.ticksPerUsec))
}

func (c *Cputime) UsecsToTicks(usecs uint32) uint32 {
	return usecs * c.ticksPerUsec
}

func (c *Cputime) TicksToUsecs(ticks uint32) uint32 {
	return uint32((uint64(ticks) + uint64(c.ticksPerUsec) - 1) / uint64(c.ticksPerUsec))
}

// DelayTicks spins until ticks have elapsed. Each pass opens the
// interrupt window, so pending interrupts are taken and the caller may be
// preempted while it waits.
func (c *Cputime) DelayTicks(ticks uint32) {
	until := c.Get32() + ticks
	for int32(c.Get32()-until) < 0 {
		sr := c.cpu.EnterCritical()
		c.cpu.ExitCritical(sr)
	}
}

func (c *Cputime) DelayNsecs(nsecs uint32) { c.DelayTicks(c.NsecsToTicks(nsecs)) }
func (c *Cputime) DelayUsecs(usecs uint32) { c.DelayTicks(c.UsecsToTicks(usecs)) }
