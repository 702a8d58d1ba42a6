package kernel

import "nkern/internal/fault"

// listTag names the scheduler list a task is linked on.
type listTag uint8

const (
	listNone listTag = iota
	listReady
	listSleep
)

func (l listTag) String() string {
	switch l {
	case listReady:
		return "ready"
	case listSleep:
		return "sleep"
	default:
		return "none"
	}
}

// taskList is a doubly linked list threaded through Task.next/prev.
type taskList struct {
	tag        listTag
	head, tail *Task
}

func (l *taskList) pushBack(t *Task) {
	l.link(t)
	t.prev = l.tail
	if l.tail != nil {
		l.tail.next = t
	} else {
		l.head = t
	}
	l.tail = t
}

// insertBefore links t in front of at, or at the tail when at is nil.
func (l *taskList) insertBefore(at, t *Task) {
	if at == nil {
		l.pushBack(t)
		return
	}
	l.link(t)
	t.next = at
	t.prev = at.prev
	if at.prev != nil {
		at.prev.next = t
	} else {
		l.head = t
	}
	at.prev = t
}

func (l *taskList) remove(t *Task) {
	fault.Assert(t.list == l.tag, t.name, "kernel: task %s on %s list, removing from %s", t.name, t.list, l.tag)
	if t.prev != nil {
		t.prev.next = t.next
	} else {
		l.head = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	} else {
		l.tail = t.prev
	}
	t.next, t.prev = nil, nil
	t.list = listNone
}

func (l *taskList) link(t *Task) {
	fault.Assert(t.list == listNone, t.name, "kernel: task %s already on %s list", t.name, t.list)
	t.list = l.tag
}

func (l *taskList) len() int {
	n := 0
	for t := l.head; t != nil; t = t.next {
		n++
	}
	return n
}

// waitQueue holds the tasks blocked on one object, highest priority first.
// It is threaded through Task.wnext/wprev so a task can sit on a wait queue
// and the sleep list at once.
type waitQueue struct {
	head, tail *Task
}

// insert queues t behind every waiter of equal or higher priority.
func (q *waitQueue) insert(t *Task) {
	fault.Assert(t.wq == nil, t.name, "kernel: task %s already waiting", t.name)
	t.wq = q

	var at *Task
	for e := q.head; e != nil; e = e.wnext {
		if t.prio < e.prio {
			at = e
			break
		}
	}
	if at == nil {
		t.wprev = q.tail
		if q.tail != nil {
			q.tail.wnext = t
		} else {
			q.head = t
		}
		q.tail = t
		return
	}
	t.wnext = at
	t.wprev = at.wprev
	if at.wprev != nil {
		at.wprev.wnext = t
	} else {
		q.head = t
	}
	at.wprev = t
}

func (q *waitQueue) remove(t *Task) {
	fault.Assert(t.wq == q, t.name, "kernel: task %s not on this wait queue", t.name)
	if t.wprev != nil {
		t.wprev.wnext = t.wnext
	} else {
		q.head = t.wnext
	}
	if t.wnext != nil {
		t.wnext.wprev = t.wprev
	} else {
		q.tail = t.wprev
	}
	t.wnext, t.wprev = nil, nil
	t.wq = nil
}

func (q *waitQueue) first() *Task { return q.head }

func (q *waitQueue) len() int {
	n := 0
	for t := q.head; t != nil; t = t.wnext {
		n++
	}
	return n
}
