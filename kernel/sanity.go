package kernel

import (
	"fmt"
	"slices"

	"nkern/internal/fault"
	"nkern/kernel/oserr"
)

// SanityCheck is a liveness watchdog entry. It is checked in each time Fn
// returns nil, or when its task calls SanityCheckin. An entry not checked
// in for longer than Interval ticks is a fault.
type SanityCheck struct {
	Name     string
	Fn       func() error
	Interval Time

	last Time
	task *Task
}

// RegisterSanityCheck adds c to the checks run by the idle task.
func (k *Kernel) RegisterSanityCheck(c *SanityCheck) error {
	if c == nil || c.Interval == 0 {
		return oserr.InvalidArgument
	}
	sr := k.cpu.EnterCritical()
	defer k.cpu.ExitCritical(sr)
	if slices.Contains(k.sanity, c) {
		return oserr.Busy
	}
	k.addSanity(c)
	return nil
}

// UnregisterSanityCheck removes c.
func (k *Kernel) UnregisterSanityCheck(c *SanityCheck) {
	sr := k.cpu.EnterCritical()
	k.removeSanity(c)
	k.cpu.ExitCritical(sr)
}

func (k *Kernel) addSanity(c *SanityCheck) {
	c.last = k.now
	k.sanity = append(k.sanity, c)
}

func (k *Kernel) removeSanity(c *SanityCheck) {
	k.sanity = slices.DeleteFunc(k.sanity, func(o *SanityCheck) bool { return o == c })
}

func (k *Kernel) runSanity(now Time) {
	sr := k.cpu.EnterCritical()
	checks := slices.Clone(k.sanity)
	k.cpu.ExitCritical(sr)

	for _, c := range checks {
		if c.Fn != nil {
			err := c.Fn()
			if err == nil {
				c.last = now
				continue
			}
			k.log.Warn().Str("check", c.Name).Err(err).Msg("sanity check failed")
		}
		if TimeGT(now, c.last+c.Interval) {
			k.log.Error().Str("check", c.Name).Uint32("last", uint32(c.last)).Uint32("now", uint32(now)).Msg("sanity checkin missed")
			fault.Raise(k.curName(), fmt.Sprintf("sanity: %s missed its checkin", c.Name))
		}
	}
}
