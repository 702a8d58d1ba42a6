package cputime

// Timer calls Fn(Arg) from the compare interrupt once the counter reaches
// its expiry.
type Timer struct {
	Fn  func(arg any)
	Arg any

	expiry     uint32
	queued     bool
	next, prev *Timer
}

// NewTimer returns a stopped timer.
func NewTimer(fn func(arg any), arg any) *Timer {
	return &Timer{Fn: fn, Arg: arg}
}

// Expiry is the counter value the timer was last started for.
func (t *Timer) Expiry() uint32 { return t.expiry }

// Queued reports whether t is running.
func (t *Timer) Queued() bool { return t.queued }

func due(now, expiry uint32) bool { return int32(now-expiry) >= 0 }

// Start arms t for counter value cputime. A running timer is restarted.
func (c *Cputime) Start(t *Timer, cputime uint32) {
	sr := c.cpu.EnterCritical()
	defer c.cpu.ExitCritical(sr)

	if t.queued {
		c.unlink(t)
	}
	t.expiry = cputime
	t.queued = true

	var at *Timer
	for e := c.head; e != nil; e = e.next {
		if int32(t.expiry-e.expiry) < 0 {
			at = e
			break
		}
	}
	if at == nil {
		t.prev = c.tail
		if c.tail != nil {
			c.tail.next = t
		} else {
			c.head = t
		}
		c.tail = t
	} else {
		t.next = at
		t.prev = at.prev
		if at.prev != nil {
			at.prev.next = t
		} else {
			c.head = t
		}
		at.prev = t
	}

	if c.head == t {
		c.arm(t)
	}
}

// Relative arms t to fire usecs from now.
func (c *Cputime) Relative(t *Timer, usecs uint32) {
	c.Start(t, c.Get32()+c.UsecsToTicks(usecs))
}

// Stop disarms t. Stopping a stopped timer does nothing.
func (c *Cputime) Stop(t *Timer) {
	sr := c.cpu.EnterCritical()
	defer c.cpu.ExitCritical(sr)

	if !t.queued {
		return
	}
	wasHead := c.head == t
	c.unlink(t)
	if wasHead && c.head != nil {
		c.arm(c.head)
	}
}

// TimerExpired runs every due timer in expiry order, then arms the
// compare channel for the next one. It is the compare interrupt handler.
func (c *Cputime) TimerExpired() {
	sr := c.cpu.EnterCritical()
	defer c.cpu.ExitCritical(sr)

	c.Expirations++
	for t := c.head; t != nil && due(c.Get32(), t.expiry); t = c.head {
		c.unlink(t)
		t.Fn(t.Arg)
	}
	if c.head != nil {
		c.arm(c.head)
	}
}

// arm programs the compare channel for t, raising the interrupt at once
// when t is already due.
func (c *Cputime) arm(t *Timer) {
	c.hw.SetCompare(t.expiry)
	if due(c.Get32(), t.expiry) {
		c.hw.ForcePending()
	}
}

func (c *Cputime) unlink(t *Timer) {
	if t.prev != nil {
		t.prev.next = t.next
	} else {
		c.head = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	} else {
		c.tail = t.prev
	}
	t.next, t.prev = nil, nil
	t.queued = false
}
