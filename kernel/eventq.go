package kernel

import "nkern/internal/fault"

// EventFunc handles an event taken off a queue.
type EventFunc func(ev *Event)

// Event is a unit of deferred work. An event sits on at most one queue,
// and putting a queued event again does nothing.
type Event struct {
	Fn  EventFunc
	Arg any

	queued bool
	evq    *EventQ
	next   *Event
}

// Queued reports whether ev waits on an event queue.
func (ev *Event) Queued() bool { return ev.queued }

// EventQ is a FIFO of events drained by a single task.
type EventQ struct {
	k          *Kernel
	head, tail *Event

	// task sleeps waiting for the next Put
	task *Task
	// owner is the only task allowed to Get
	owner *Task
}

// NewEventQ returns an empty event queue.
func (k *Kernel) NewEventQ() *EventQ {
	return &EventQ{k: k}
}

// Put appends ev unless it is already queued, and wakes the waiting task.
// From an interrupt the switch happens once the handler returns.
func (q *EventQ) Put(ev *Event) {
	k := q.k
	sr := k.cpu.EnterCritical()
	defer k.cpu.ExitCritical(sr)

	if ev.queued {
		return
	}
	ev.queued = true
	ev.evq = q
	ev.next = nil
	if q.tail != nil {
		q.tail.next = ev
	} else {
		q.head = ev
	}
	q.tail = ev

	if t := q.task; t != nil {
		if t.state == StateSleep {
			k.wakeup(t)
		}
		q.task = nil
	}
	k.reschedule()
}

// pop takes the head event. The caller holds a critical section.
func (q *EventQ) pop() *Event {
	ev := q.head
	if ev == nil {
		return nil
	}
	q.head = ev.next
	if q.head == nil {
		q.tail = nil
	}
	ev.next = nil
	ev.queued = false
	ev.evq = nil
	return ev
}

// Get blocks until an event is available and returns it. Only one task
// may ever Get from a queue.
func (q *EventQ) Get() *Event {
	k := q.k
	sr := k.cpu.EnterCritical()
	defer k.cpu.ExitCritical(sr)

	t := k.cur
	if q.owner != t {
		fault.Assert(q.owner == nil, t.name, "kernel: event queue of %s read by %s", q.ownerName(), t.name)
		q.owner = t
	}
	for {
		if ev := q.pop(); ev != nil {
			t.flags &^= FlagEvqWait
			return ev
		}
		q.task = t
		t.flags |= FlagEvqWait
		k.sleep(t, TimeoutNever)
		k.reschedule()
		q.task = nil
	}
}

func (q *EventQ) ownerName() string {
	if q.owner == nil {
		return ""
	}
	return q.owner.name
}

// GetNoWait returns the head event, or nil.
func (q *EventQ) GetNoWait() *Event {
	sr := q.k.cpu.EnterCritical()
	defer q.k.cpu.ExitCritical(sr)
	return q.pop()
}

// Remove takes ev off q if it is queued there.
func (q *EventQ) Remove(ev *Event) {
	sr := q.k.cpu.EnterCritical()
	defer q.k.cpu.ExitCritical(sr)

	if !ev.queued || ev.evq != q {
		return
	}
	var prev *Event
	for e := q.head; e != nil; prev, e = e, e.next {
		if e != ev {
			continue
		}
		if prev != nil {
			prev.next = e.next
		} else {
			q.head = e.next
		}
		if q.tail == e {
			q.tail = prev
		}
		break
	}
	ev.next = nil
	ev.queued = false
	ev.evq = nil
}

// Run takes the next event, waiting if need be, and calls its handler.
func (q *EventQ) Run() {
	ev := q.Get()
	fault.Assert(ev.Fn != nil, q.k.curName(), "kernel: event without handler")
	ev.Fn(ev)
}

// Empty reports whether q holds no events.
func (q *EventQ) Empty() bool {
	sr := q.k.cpu.EnterCritical()
	defer q.k.cpu.ExitCritical(sr)
	return q.head == nil
}

// Poll returns the first event found on queues, in order, waiting at most
// timeout ticks for one to arrive. With a zero timeout it does not wait.
// It returns nil on timeout.
func (k *Kernel) Poll(queues []*EventQ, timeout Time) *Event {
	if timeout == 0 {
		for _, q := range queues {
			if ev := q.GetNoWait(); ev != nil {
				return ev
			}
		}
		return nil
	}

	sr := k.cpu.EnterCritical()
	defer k.cpu.ExitCritical(sr)

	t := k.cur
	for i, q := range queues {
		if ev := q.pop(); ev != nil {
			for _, p := range queues[:i] {
				p.task = nil
			}
			return ev
		}
		q.task = t
	}

	t.flags |= FlagEvqWait
	k.sleep(t, timeout)
	k.reschedule()
	t.flags &^= FlagEvqWait

	var ev *Event
	for _, q := range queues {
		if ev == nil {
			ev = q.pop()
		}
		q.task = nil
	}
	return ev
}
