package kernel

import (
	"math"

	"nkern/kernel/oserr"
)

// Time is a tick count. It wraps; compare with TimeLT and friends.
type Time uint32

// TimeoutNever blocks without a timeout.
const TimeoutNever Time = math.MaxUint32

func TimeLT(a, b Time) bool  { return int32(a-b) < 0 }
func TimeLEQ(a, b Time) bool { return int32(a-b) <= 0 }
func TimeGT(a, b Time) bool  { return int32(a-b) > 0 }
func TimeGEQ(a, b Time) bool { return int32(a-b) >= 0 }

// Now returns the tick count.
func (k *Kernel) Now() Time { return k.now }

func (k *Kernel) TicksPerSec() uint32 { return k.cfg.TicksPerSec }

// MsToTicks converts milliseconds to ticks, rounding down.
func (k *Kernel) MsToTicks(ms uint32) (Time, error) {
	ticks := uint64(ms) * uint64(k.cfg.TicksPerSec) / 1000
	if ticks > math.MaxUint32 {
		return 0, oserr.InvalidArgument
	}
	return Time(ticks), nil
}

// TicksToMs converts ticks to milliseconds, rounding down.
func (k *Kernel) TicksToMs(ticks Time) (uint32, error) {
	ms := uint64(ticks) * 1000 / uint64(k.cfg.TicksPerSec)
	if ms > math.MaxUint32 {
		return 0, oserr.InvalidArgument
	}
	return uint32(ms), nil
}

// Delay puts the running task to sleep for ticks.
func (k *Kernel) Delay(ticks Time) {
	if ticks == 0 {
		return
	}
	sr := k.cpu.EnterCritical()
	k.sleep(k.cur, ticks)
	k.reschedule()
	k.cpu.ExitCritical(sr)
}

// TimeAdvance moves time forward by ticks. It is called from the tick
// interrupt: expired callouts run, then timed-out sleepers wake.
func (k *Kernel) TimeAdvance(ticks Time) {
	if ticks == 0 {
		return
	}
	sr := k.cpu.EnterCritical()
	k.now += ticks
	k.cpu.ExitCritical(sr)
	if !k.started {
		return
	}

	k.calloutTick()

	sr = k.cpu.EnterCritical()
	k.timerExpired()
	k.reschedule()
	k.cpu.ExitCritical(sr)
}
