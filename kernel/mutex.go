package kernel

import (
	"nkern/internal/fault"
	"nkern/kernel/oserr"
)

// Mutex is a recursive lock with priority inheritance. While a higher
// priority task waits, the owner runs at the waiter's priority.
type Mutex struct {
	k       *Kernel
	owner   *Task
	level   uint16
	prio    uint8
	waiters waitQueue
}

// NewMutex returns an unlocked mutex.
func (k *Kernel) NewMutex() *Mutex {
	return &Mutex{k: k}
}

// Pend acquires mu, waiting at most timeout ticks. A zero timeout fails
// with WouldBlock instead of waiting.
func (mu *Mutex) Pend(timeout Time) error {
	k := mu.k
	if !k.started {
		return oserr.NotStarted
	}
	if k.cpu.InISR() {
		return oserr.InvalidArgument
	}

	sr := k.cpu.EnterCritical()
	cur := k.cur
	if mu.level == 0 {
		mu.owner = cur
		mu.prio = cur.prio
		mu.level = 1
		cur.lockCnt++
		k.cpu.ExitCritical(sr)
		return nil
	}
	if mu.owner == cur {
		mu.level++
		k.cpu.ExitCritical(sr)
		return nil
	}
	if timeout == 0 {
		k.cpu.ExitCritical(sr)
		return oserr.WouldBlock
	}

	if owner := mu.owner; owner.prio > cur.prio {
		owner.prio = cur.prio
		k.resort(owner)
	}
	mu.waiters.insert(cur)
	cur.flags |= FlagMutexWait
	k.sleep(cur, timeout)
	k.reschedule()

	cur.flags &^= FlagMutexWait
	got := mu.owner == cur
	k.cpu.ExitCritical(sr)

	if !got {
		return oserr.Timeout
	}
	return nil
}

// Release drops one level of ownership. At level zero the owner's
// priority is restored and the mutex passes straight to the highest
// priority waiter.
func (mu *Mutex) Release() error {
	k := mu.k
	if !k.started {
		return oserr.NotStarted
	}
	if k.cpu.InISR() {
		return oserr.InvalidArgument
	}

	sr := k.cpu.EnterCritical()
	defer k.cpu.ExitCritical(sr)

	cur := k.cur
	if mu.level == 0 || mu.owner != cur {
		return oserr.NotOwner
	}
	mu.level--
	if mu.level > 0 {
		return nil
	}

	fault.Assert(cur.lockCnt > 0, cur.name, "kernel: mutex released by %s holding none", cur.name)
	cur.lockCnt--
	if cur.prio != mu.prio {
		cur.prio = mu.prio
		k.resort(cur)
	}

	rdy := mu.waiters.first()
	if rdy != nil {
		k.wakeup(rdy)
		mu.level = 1
		mu.prio = rdy.prio
		rdy.lockCnt++
	}
	mu.owner = rdy
	k.reschedule()
	return nil
}

// Owner returns the task holding mu, or nil.
func (mu *Mutex) Owner() *Task { return mu.owner }

// Level is the recursion depth of the current owner.
func (mu *Mutex) Level() int { return int(mu.level) }

// Prio is the priority the owner had when it took mu.
func (mu *Mutex) Prio() uint8 { return mu.prio }

func (mu *Mutex) NumWaiters() int {
	sr := mu.k.cpu.EnterCritical()
	defer mu.k.cpu.ExitCritical(sr)
	return mu.waiters.len()
}
