package kernel

import (
	"math"

	"nkern/kernel/oserr"
)

// Callout runs an event a number of ticks in the future, either by posting
// it to an event queue or, without one, by calling it from the tick
// interrupt.
type Callout struct {
	k          *Kernel
	ev         Event
	evq        *EventQ
	ticks      Time
	queued     bool
	next, prev *Callout
}

type calloutList struct {
	head, tail *Callout
}

func (l *calloutList) remove(c *Callout) {
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		l.head = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	} else {
		l.tail = c.prev
	}
	c.next, c.prev = nil, nil
}

// insert keeps the list ordered by expiry; equal expiries stay in arming
// order.
func (l *calloutList) insert(c *Callout) {
	var at *Callout
	for e := l.head; e != nil; e = e.next {
		if TimeLT(c.ticks, e.ticks) {
			at = e
			break
		}
	}
	if at == nil {
		c.prev = l.tail
		if l.tail != nil {
			l.tail.next = c
		} else {
			l.head = c
		}
		l.tail = c
		return
	}
	c.next = at
	c.prev = at.prev
	if at.prev != nil {
		at.prev.next = c
	} else {
		l.head = c
	}
	at.prev = c
}

// NewCallout returns a stopped callout whose event is fn(arg). A nil evq
// makes fn run in interrupt context.
func (k *Kernel) NewCallout(evq *EventQ, fn EventFunc, arg any) *Callout {
	return &Callout{k: k, evq: evq, ev: Event{Fn: fn, Arg: arg}}
}

// Event returns the event the callout delivers.
func (c *Callout) Event() *Event { return &c.ev }

// Reset (re)arms c to expire ticks from now. Zero counts as one tick.
func (c *Callout) Reset(ticks Time) error {
	if ticks > math.MaxInt32 {
		return oserr.InvalidArgument
	}
	k := c.k
	sr := k.cpu.EnterCritical()
	defer k.cpu.ExitCritical(sr)

	c.Stop()
	if ticks == 0 {
		ticks = 1
	}
	c.ticks = k.now + ticks
	k.callouts.insert(c)
	c.queued = true
	return nil
}

// Stop disarms c and withdraws its event if it was already posted.
func (c *Callout) Stop() {
	k := c.k
	sr := k.cpu.EnterCritical()
	defer k.cpu.ExitCritical(sr)

	if c.queued {
		k.callouts.remove(c)
		c.queued = false
	}
	if c.evq != nil {
		c.evq.Remove(&c.ev)
	}
}

// Queued reports whether c is armed.
func (c *Callout) Queued() bool { return c.queued }

// Ticks returns the expiry time of the last Reset.
func (c *Callout) Ticks() Time { return c.ticks }

// RemainingTicks returns the ticks from now until c expires, or zero if it
// is already due.
func (c *Callout) RemainingTicks(now Time) Time {
	sr := c.k.cpu.EnterCritical()
	defer c.k.cpu.ExitCritical(sr)
	if TimeGEQ(now, c.ticks) {
		return 0
	}
	return c.ticks - now
}

// CalloutWakeupTicks returns the ticks from now until the earliest armed
// callout, or TimeoutNever when none is armed.
func (k *Kernel) CalloutWakeupTicks(now Time) Time {
	sr := k.cpu.EnterCritical()
	defer k.cpu.ExitCritical(sr)

	c := k.callouts.head
	if c == nil {
		return TimeoutNever
	}
	if TimeGEQ(now, c.ticks) {
		return 0
	}
	return c.ticks - now
}

// calloutTick fires every callout due at the current time, earliest first.
func (k *Kernel) calloutTick() {
	sr := k.cpu.EnterCritical()
	now := k.now
	k.cpu.ExitCritical(sr)

	for {
		sr = k.cpu.EnterCritical()
		c := k.callouts.head
		if c != nil && TimeGEQ(now, c.ticks) {
			k.callouts.remove(c)
			c.queued = false
		} else {
			c = nil
		}
		k.cpu.ExitCritical(sr)

		if c == nil {
			return
		}
		if c.evq != nil {
			c.evq.Put(&c.ev)
		} else {
			c.ev.Fn(&c.ev)
		}
	}
}
