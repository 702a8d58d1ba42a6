package kernel

import (
	"slices"

	"nkern/hal"
	"nkern/internal/fault"
	"nkern/kernel/oserr"
)

// StackPattern fills unused stack words so usage can be measured.
const StackPattern hal.StackWord = 0xdeadbeef

// TaskFunc is a task entry point. Returning from it ends the task.
type TaskFunc func(arg any)

// TaskState is the scheduling state of a task.
type TaskState uint8

const (
	StateNone TaskState = iota
	StateReady
	StateSleep
)

func (s TaskState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateSleep:
		return "sleep"
	default:
		return "none"
	}
}

// TaskFlags record why a sleeping task is blocked.
type TaskFlags uint8

const (
	FlagNoTimeout TaskFlags = 1 << iota
	FlagSemWait
	FlagMutexWait
	FlagEvqWait
)

const waitFlags = FlagSemWait | FlagMutexWait | FlagEvqWait

// Task is a thread of execution with its own stack and priority. Lower
// priority values run first.
type Task struct {
	k     *Kernel
	name  string
	id    uint8
	prio  uint8
	state TaskState
	flags TaskFlags

	// number of mutexes held
	lockCnt uint8

	fn    TaskFunc
	arg   any
	stack []hal.StackWord
	ctx   hal.Context

	nextWakeup  Time
	ctxSwitches uint32
	runTime     Time

	sanity *SanityCheck

	list       listTag
	next, prev *Task

	wq           *waitQueue
	wnext, wprev *Task
}

// TaskInfo is a snapshot of one task.
type TaskInfo struct {
	Name        string
	ID          uint8
	Prio        uint8
	State       TaskState
	Flags       TaskFlags
	StackSize   int
	StackUsage  int
	CtxSwitches uint32
	RunTime     Time
	LastCheckin Time
	NextCheckin Time
}

// NewTask creates a task running fn(arg) on stack at priority prio and
// makes it ready. A task with a non-zero sanityItvl must check in at least
// that often, in ticks. Priorities are unique; reusing one is a fault.
func (k *Kernel) NewTask(name string, fn TaskFunc, arg any, prio uint8, sanityItvl Time, stack []hal.StackWord) (*Task, error) {
	if fn == nil || len(stack) == 0 {
		return nil, oserr.InvalidArgument
	}

	t := &Task{
		k:     k,
		name:  name,
		prio:  prio,
		fn:    fn,
		arg:   arg,
		stack: stack,
	}
	for i := range stack {
		stack[i] = StackPattern
	}
	t.ctx = k.cpu.NewContext(t.run, stack)

	sr := k.cpu.EnterCritical()
	for _, o := range k.tasks {
		fault.Assert(o.prio != prio, k.curName(), "kernel: task %s reuses priority %d of %s", name, prio, o.name)
	}
	k.nextID++
	t.id = k.nextID
	k.tasks = append(k.tasks, t)
	if sanityItvl > 0 {
		t.sanity = &SanityCheck{Name: name, Interval: sanityItvl, task: t}
		k.addSanity(t.sanity)
	}
	t.state = StateReady
	k.insert(t)
	k.cpu.ExitCritical(sr)

	k.log.Debug().Str("task", name).Uint8("id", t.id).Uint8("prio", prio).Int("stack_words", len(stack)).Msg("task created")

	if k.started {
		k.sched()
	}
	return t, nil
}

func (t *Task) run() {
	t.fn(t.arg)
	t.k.exit(t)
}

// Remove deletes a task that is not running and not blocked on a kernel
// object or holding a mutex.
func (k *Kernel) Remove(t *Task) error {
	if t == nil {
		return oserr.InvalidArgument
	}
	sr := k.cpu.EnterCritical()
	if t == k.cur || t == k.idle || (t.state != StateReady && t.state != StateSleep) {
		k.cpu.ExitCritical(sr)
		return oserr.InvalidArgument
	}
	if t.flags&waitFlags != 0 || t.lockCnt > 0 {
		k.cpu.ExitCritical(sr)
		return oserr.Busy
	}
	k.unlink(t)
	k.cpu.Discard(t.ctx)
	k.cpu.ExitCritical(sr)

	k.log.Debug().Str("task", t.name).Msg("task removed")
	return nil
}

// exit ends the running task t and does not return.
func (k *Kernel) exit(t *Task) {
	// Exit resumes next with its own interrupt state.
	k.cpu.EnterCritical()
	fault.Assert(t == k.cur, t.name, "kernel: exit of task %s that is not running", t.name)
	fault.Assert(t.lockCnt == 0, t.name, "kernel: task %s exited holding %d mutexes", t.name, t.lockCnt)
	k.unlink(t)
	k.log.Debug().Str("task", t.name).Msg("task exited")

	next := k.ready.head
	k.account(next)
	k.cpu.Exit(next.ctx)
}

// unlink takes t off every kernel list.
func (k *Kernel) unlink(t *Task) {
	switch t.list {
	case listReady:
		k.ready.remove(t)
	case listSleep:
		k.sleeping.remove(t)
	}
	if t.wq != nil {
		t.wq.remove(t)
	}
	if t.sanity != nil {
		k.removeSanity(t.sanity)
	}
	t.state = StateNone
	t.flags = 0
	k.tasks = slices.DeleteFunc(k.tasks, func(o *Task) bool { return o == t })
}

// Tasks returns a snapshot of every live task in creation order.
func (k *Kernel) Tasks() []TaskInfo {
	sr := k.cpu.EnterCritical()
	defer k.cpu.ExitCritical(sr)

	out := make([]TaskInfo, 0, len(k.tasks))
	for _, t := range k.tasks {
		out = append(out, t.info())
	}
	return out
}

// Info returns a snapshot of t.
func (t *Task) Info() TaskInfo {
	sr := t.k.cpu.EnterCritical()
	defer t.k.cpu.ExitCritical(sr)
	return t.info()
}

func (t *Task) info() TaskInfo {
	ti := TaskInfo{
		Name:        t.name,
		ID:          t.id,
		Prio:        t.prio,
		State:       t.state,
		Flags:       t.flags,
		StackSize:   len(t.stack),
		StackUsage:  t.stackUsage(),
		CtxSwitches: t.ctxSwitches,
		RunTime:     t.runTime,
	}
	if t.sanity != nil {
		ti.LastCheckin = t.sanity.last
		ti.NextCheckin = t.sanity.last + t.sanity.Interval
	}
	return ti
}

// stackUsage counts the words above the untouched fill at the bottom.
func (t *Task) stackUsage() int {
	free := 0
	for _, w := range t.stack {
		if w != StackPattern {
			break
		}
		free++
	}
	return len(t.stack) - free
}

// SanityCheckin records that t is alive.
func (t *Task) SanityCheckin() {
	if t.sanity == nil {
		return
	}
	sr := t.k.cpu.EnterCritical()
	t.sanity.last = t.k.now
	t.k.cpu.ExitCritical(sr)
}

func (t *Task) Name() string     { return t.name }
func (t *Task) ID() uint8        { return t.id }
func (t *Task) Prio() uint8      { return t.prio }
func (t *Task) State() TaskState { return t.state }
func (t *Task) Flags() TaskFlags { return t.flags }
func (t *Task) LockCount() int   { return int(t.lockCnt) }
