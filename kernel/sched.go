package kernel

import (
	"nkern/internal/fault"
	"nkern/kernel/oserr"
)

// insert links a ready task into the ready list behind every task of equal
// or higher priority.
func (k *Kernel) insert(t *Task) {
	fault.Assert(t.state == StateReady, t.name, "kernel: inserting task %s in state %s", t.name, t.state)
	var at *Task
	for e := k.ready.head; e != nil; e = e.next {
		if t.prio < e.prio {
			at = e
			break
		}
	}
	k.ready.insertBefore(at, t)
}

// sleep moves the running task t to the sleep list for ticks, or until
// woken when ticks is TimeoutNever.
func (k *Kernel) sleep(t *Task, ticks Time) {
	fault.Assert(!k.cpu.InISR(), k.curName(), "kernel: blocking call from interrupt")
	fault.Assert(k.suspended == 0, t.name, "kernel: task %s blocks with the scheduler suspended", t.name)

	k.ready.remove(t)
	t.state = StateSleep
	if ticks == TimeoutNever {
		t.flags |= FlagNoTimeout
		k.sleeping.pushBack(t)
		return
	}

	t.nextWakeup = k.now + ticks
	var at *Task
	for e := k.sleeping.head; e != nil; e = e.next {
		if e.flags&FlagNoTimeout != 0 || TimeGT(e.nextWakeup, t.nextWakeup) {
			at = e
			break
		}
	}
	k.sleeping.insertBefore(at, t)
}

// wakeup makes a sleeping task ready, taking it off any wait queue.
func (k *Kernel) wakeup(t *Task) {
	fault.Assert(t.state == StateSleep, t.name, "kernel: waking task %s in state %s", t.name, t.state)
	if t.wq != nil {
		t.wq.remove(t)
	}
	k.sleeping.remove(t)
	t.state = StateReady
	t.nextWakeup = 0
	t.flags &^= FlagNoTimeout
	k.insert(t)
}

// resort repositions t after its priority changed.
func (k *Kernel) resort(t *Task) {
	if t.state == StateReady {
		k.ready.remove(t)
		k.insert(t)
	}
	if q := t.wq; q != nil {
		q.remove(t)
		q.insert(t)
	}
}

// timerExpired wakes every sleeper whose timeout has passed.
func (k *Kernel) timerExpired() {
	for t := k.sleeping.head; t != nil; {
		if t.flags&FlagNoTimeout != 0 || TimeLT(k.now, t.nextWakeup) {
			return
		}
		next := t.next
		k.wakeup(t)
		t = next
	}
}

// next returns the task that should be running.
func (k *Kernel) next() *Task { return k.ready.head }

// reschedule switches to the highest priority ready task. The caller holds
// a critical section. In interrupt context it does nothing; the IRQ-exit
// hook reschedules once the handlers are done.
func (k *Kernel) reschedule() {
	if !k.started || k.cpu.InISR() {
		return
	}
	next := k.next()
	if next == k.cur {
		return
	}
	if k.suspended > 0 && k.cur.state == StateReady {
		k.deferred = true
		return
	}
	k.account(next)
	k.cpu.Switch(next.ctx)
}

func (k *Kernel) account(next *Task) {
	if k.cur != nil {
		k.cur.runTime += k.now - k.lastSwitch
	}
	k.lastSwitch = k.now
	next.ctxSwitches++
	k.cur = next
}

// sched is reschedule under its own critical section. It is the CPU's
// IRQ-exit hook.
func (k *Kernel) sched() {
	sr := k.cpu.EnterCritical()
	k.reschedule()
	k.cpu.ExitCritical(sr)
}

// SchedSuspend defers preemption of the running task until the matching
// SchedResume. Calls nest.
func (k *Kernel) SchedSuspend() {
	sr := k.cpu.EnterCritical()
	k.suspended++
	k.cpu.ExitCritical(sr)
}

// SchedResume undoes one SchedSuspend and performs any deferred switch.
func (k *Kernel) SchedResume() {
	sr := k.cpu.EnterCritical()
	fault.Assert(k.suspended > 0, k.curName(), "kernel: unbalanced scheduler resume")
	k.suspended--
	if k.suspended == 0 && k.deferred {
		k.deferred = false
		k.reschedule()
	}
	k.cpu.ExitCritical(sr)
}

// Wakeup ends the sleep of t early. A task blocked on a mutex, semaphore
// or event poll sees its wait time out.
func (k *Kernel) Wakeup(t *Task) error {
	sr := k.cpu.EnterCritical()
	defer k.cpu.ExitCritical(sr)
	if t == nil || t.state != StateSleep {
		return oserr.InvalidArgument
	}
	k.wakeup(t)
	k.reschedule()
	return nil
}
