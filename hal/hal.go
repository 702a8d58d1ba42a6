package hal

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// SR is the interrupt state saved by EnterCritical and restored by
// ExitCritical.
type SR uint32

// StackWord is one machine word of a task stack.
type StackWord uint32

// Critical masks interrupts around a list splice.
type Critical interface {
	// EnterCritical masks interrupts and returns the previous state.
	EnterCritical() SR
	// ExitCritical restores the state returned by the matching EnterCritical.
	// Interrupts that became pending while masked are taken once the
	// outermost section is left.
	ExitCritical(sr SR)
}

// Context is an opaque, architecture-owned register context.
type Context interface{}

// CPU is the architecture layer the kernel core runs on.
//
// There is a single logical core. Interrupt handlers and the currently
// running context are the only actors; a handler never runs while a
// critical section is held.
type CPU interface {
	Critical
	// InISR reports whether the caller runs in interrupt context.
	InISR() bool

	// NewContext builds the initial frame for entry on stack.
	NewContext(entry func(), stack []StackWord) Context
	// Start runs first and blocks until Halt. It returns the fault that
	// stopped the CPU, if any.
	Start(first Context) error
	// Switch saves the running context and resumes to.
	Switch(to Context)
	// Exit abandons the running context and resumes to. It does not return.
	Exit(to Context)
	// Discard releases a context that is not running.
	Discard(c Context)
	// Halt stops the CPU.
	Halt()

	// Idle waits for an interrupt and services it.
	Idle()
	// Interrupt raises an interrupt whose handler is fn. Safe from any
	// goroutine.
	Interrupt(fn func())
	// SetIRQExit installs the hook run after each batch of handlers, in
	// the interrupted context, with interrupts enabled.
	SetIRQExit(fn func())
}

// HWTimer is a free-running hardware counter with one compare channel.
type HWTimer interface {
	Counter() uint32
	// SetCompare arms the compare interrupt for counter value v.
	SetCompare(v uint32)
	// ForcePending raises the compare interrupt now.
	ForcePending()
	// SetHandler installs the compare interrupt handler.
	SetHandler(fn func())
}

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Time provides the board tick stream.
type Time interface {
	Ticks() <-chan uint64
}

// HAL is the board: a CPU plus the devices the kernel and demo use.
type HAL interface {
	CPU() CPU
	Timer() HWTimer
	Logger() Logger
	Display() Display
	Time() Time
}
