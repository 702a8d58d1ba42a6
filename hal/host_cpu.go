package hal

import (
	"fmt"
	"runtime"
	"sync"
)

// Sim is a single-core CPU simulated on the host.
//
// Every context is a goroutine, but only the one holding the baton runs.
// The baton moves on Switch, Exit and Start. All per-CPU state below the
// irq lock is only touched by the running context.
type Sim struct {
	irqMu   sync.Mutex
	pending []func()
	irq     chan struct{}

	depth   uint32
	inISR   bool
	started bool
	cur     *simContext
	irqExit func()
	nextID  uint32

	halted   chan struct{}
	haltOnce sync.Once
	errMu    sync.Mutex
	err      error

	qmu    sync.Mutex
	qcond  *sync.Cond
	idling bool
}

type simContext struct {
	id    uint32
	run   chan struct{}
	kill  chan struct{}
	depth uint32
	once  sync.Once
}

// NewSim returns a stopped simulated CPU.
func NewSim() *Sim {
	c := &Sim{
		irq:    make(chan struct{}, 1),
		halted: make(chan struct{}),
	}
	c.qcond = sync.NewCond(&c.qmu)
	return c
}

func (c *Sim) EnterCritical() SR {
	sr := SR(c.depth)
	c.depth++
	return sr
}

func (c *Sim) ExitCritical(sr SR) {
	c.depth = uint32(sr)
	if c.depth == 0 && !c.inISR && c.started {
		c.service()
	}
}

func (c *Sim) InISR() bool { return c.inISR }

func (c *Sim) SetIRQExit(fn func()) { c.irqExit = fn }

// NewContext writes a Cortex-M style exception frame at the top of stack
// and parks a goroutine that runs entry once the context is first resumed.
func (c *Sim) NewContext(entry func(), stack []StackWord) Context {
	c.nextID++
	ctx := &simContext{
		id:   c.nextID,
		run:  make(chan struct{}, 1),
		kill: make(chan struct{}),
	}
	writeFrame(stack, ctx.id)

	go func() {
		select {
		case <-ctx.run:
		case <-ctx.kill:
			return
		case <-c.halted:
			return
		}
		defer c.recoverFault()
		entry()
		panic(fmt.Sprintf("hal: context %d returned", ctx.id))
	}()
	return ctx
}

// frame layout: r4-r11, then r0-r3, r12, lr, pc, xpsr.
const frameWords = 16

func writeFrame(stack []StackWord, id uint32) {
	if len(stack) < frameWords {
		return
	}
	f := stack[len(stack)-frameWords:]
	for i := range f {
		f[i] = 0
	}
	f[8] = StackWord(id) // r0
	f[15] = 0x01000000   // xpsr: thumb
}

func (c *Sim) Start(first Context) error {
	ctx := first.(*simContext)
	c.started = true
	c.cur = ctx
	c.depth = ctx.depth
	ctx.run <- struct{}{}
	<-c.halted

	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Sim) Switch(to Context) {
	next := to.(*simContext)
	cur := c.cur
	if next == cur {
		return
	}
	if c.inISR {
		panic("hal: context switch from interrupt")
	}
	cur.depth = c.depth
	c.cur = next
	c.depth = next.depth
	next.run <- struct{}{}
	c.park(cur)
}

func (c *Sim) Exit(to Context) {
	next := to.(*simContext)
	c.cur = next
	c.depth = next.depth
	next.run <- struct{}{}
	runtime.Goexit()
}

func (c *Sim) Discard(ctx Context) {
	sc := ctx.(*simContext)
	if sc == c.cur {
		panic("hal: discard of running context")
	}
	sc.once.Do(func() { close(sc.kill) })
}

func (c *Sim) Halt() {
	c.haltOnce.Do(func() { close(c.halted) })
	c.qcond.Broadcast()
}

func (c *Sim) park(ctx *simContext) {
	select {
	case <-ctx.run:
	case <-ctx.kill:
		runtime.Goexit()
	case <-c.halted:
		runtime.Goexit()
	}
}

func (c *Sim) recoverFault() {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("hal: panic: %v", r)
	}
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	c.Halt()
}

func (c *Sim) Interrupt(fn func()) {
	c.irqMu.Lock()
	c.pending = append(c.pending, fn)
	c.irqMu.Unlock()
	select {
	case c.irq <- struct{}{}:
	default:
	}
}

func (c *Sim) takePending() []func() {
	c.irqMu.Lock()
	defer c.irqMu.Unlock()
	fns := c.pending
	c.pending = nil
	return fns
}

func (c *Sim) numPending() int {
	c.irqMu.Lock()
	defer c.irqMu.Unlock()
	return len(c.pending)
}

func (c *Sim) service() {
	for {
		fns := c.takePending()
		if len(fns) == 0 {
			return
		}
		c.inISR = true
		for _, fn := range fns {
			fn()
		}
		c.inISR = false
		if c.irqExit != nil {
			c.irqExit()
		}
	}
}

func (c *Sim) Idle() {
	for {
		if c.numPending() > 0 {
			c.service()
			return
		}
		c.setIdling(true)
		select {
		case <-c.irq:
		case <-c.halted:
			c.setIdling(false)
			runtime.Goexit()
		}
		c.setIdling(false)
	}
}

func (c *Sim) setIdling(v bool) {
	c.qmu.Lock()
	c.idling = v
	c.qmu.Unlock()
	c.qcond.Broadcast()
}

// Quiesce blocks until the CPU waits in Idle with no interrupt pending,
// or until it halts.
func (c *Sim) Quiesce() {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	for {
		select {
		case <-c.halted:
			return
		default:
		}
		if c.idling && c.numPending() == 0 {
			return
		}
		c.qcond.Wait()
	}
}

// Halted is closed once the CPU stops.
func (c *Sim) Halted() <-chan struct{} { return c.halted }
