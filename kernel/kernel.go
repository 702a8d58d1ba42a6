// Package kernel is a small preemptive RTOS core: priority scheduled tasks,
// mutexes with priority inheritance, counting semaphores, event queues,
// tick timers and a sanity watchdog.
//
// The kernel runs on a single logical CPU provided by package hal. All
// kernel state is guarded by the CPU's critical sections; interrupt
// handlers call into the kernel through the same entry points as tasks.
package kernel

import (
	"github.com/rs/zerolog"

	"nkern/hal"
	"nkern/internal/fault"
)

const (
	// IdlePrio is the priority of the idle task, the lowest there is.
	IdlePrio = 255

	defaultTicksPerSec    = 1000
	defaultIdleStackWords = 64
)

// Config parameterizes a Kernel.
type Config struct {
	// TicksPerSec is the rate TimeAdvance is driven at.
	TicksPerSec uint32
	// SanityInterval is how often, in ticks, the idle task runs the sanity
	// checks. Zero disables them.
	SanityInterval Time
	// IdleStackWords sizes the idle task stack.
	IdleStackWords int
	// Logger receives kernel events. The zero value discards them.
	Logger zerolog.Logger
}

// Kernel is one instance of the scheduler and its objects.
type Kernel struct {
	cpu hal.CPU
	cfg Config
	log zerolog.Logger

	tasks    []*Task
	nextID   uint8
	ready    taskList
	sleeping taskList
	cur      *Task
	idle     *Task
	started  bool

	suspended int
	deferred  bool

	now        Time
	lastSwitch Time
	callouts   calloutList
	dflt       *EventQ

	sanity     []*SanityCheck
	lastSanity Time
	idleLoops  uint64
}

// New creates a kernel on cpu and its idle task. Tasks may be created
// before Start.
func New(cpu hal.CPU, cfg Config) *Kernel {
	if cfg.TicksPerSec == 0 {
		cfg.TicksPerSec = defaultTicksPerSec
	}
	if cfg.IdleStackWords <= 0 {
		cfg.IdleStackWords = defaultIdleStackWords
	}
	k := &Kernel{
		cpu:      cpu,
		cfg:      cfg,
		log:      cfg.Logger.With().Str("component", "kernel").Logger(),
		ready:    taskList{tag: listReady},
		sleeping: taskList{tag: listSleep},
	}
	k.dflt = k.NewEventQ()

	idle, err := k.NewTask("idle", k.idleLoop, nil, IdlePrio, 0, make([]hal.StackWord, cfg.IdleStackWords))
	fault.Assert(err == nil, "", "kernel: idle task: %v", err)
	k.idle = idle

	cpu.SetIRQExit(k.sched)
	return k
}

// Start runs the highest priority ready task and blocks until the CPU
// halts. It returns the fault that stopped the CPU, if any.
func (k *Kernel) Start() error {
	sr := k.cpu.EnterCritical()
	fault.Assert(!k.started, "", "kernel: started twice")
	k.started = true
	k.lastSwitch = k.now
	k.lastSanity = k.now
	first := k.ready.head
	k.cur = first
	first.ctxSwitches++
	k.cpu.ExitCritical(sr)

	k.log.Info().Int("tasks", len(k.tasks)).Uint32("ticks_per_sec", k.cfg.TicksPerSec).Msg("start")
	err := k.cpu.Start(first.ctx)
	if err != nil {
		k.log.Error().Err(err).Msg("halted")
	} else {
		k.log.Info().Msg("halted")
	}
	return err
}

// Halt stops the CPU. Start returns.
func (k *Kernel) Halt() { k.cpu.Halt() }

// CPU returns the CPU the kernel runs on.
func (k *Kernel) CPU() hal.CPU { return k.cpu }

// Started reports whether Start has been called.
func (k *Kernel) Started() bool { return k.started }

// InISR reports whether the caller runs in interrupt context.
func (k *Kernel) InISR() bool { return k.cpu.InISR() }

// CurrentTask returns the running task, or nil before Start.
func (k *Kernel) CurrentTask() *Task { return k.cur }

// IdleTask returns the idle task.
func (k *Kernel) IdleTask() *Task { return k.idle }

// DefaultEventQ returns the kernel's default event queue.
func (k *Kernel) DefaultEventQ() *EventQ { return k.dflt }

// IdleLoops counts passes through the idle loop.
func (k *Kernel) IdleLoops() uint64 { return k.idleLoops }

func (k *Kernel) idleLoop(any) {
	for {
		k.idleLoops++
		if itvl := k.cfg.SanityInterval; itvl > 0 {
			now := k.Now()
			if TimeGEQ(now, k.lastSanity+itvl) {
				k.runSanity(now)
				k.lastSanity = now
			}
		}
		k.cpu.Idle()
	}
}

func (k *Kernel) curName() string {
	if k.cur == nil {
		return ""
	}
	return k.cur.name
}
