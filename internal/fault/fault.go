// Package fault reports fatal kernel invariant violations.
//
// A fault runs the installed handler once per process, then panics with
// the *Info. On the host CPU the panic stops the CPU and is returned by
// its Start.
package fault

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Info describes a fault.
type Info struct {
	Task  string
	Value any
	Stack []byte
}

func (i *Info) Error() string {
	if i.Task == "" {
		return fmt.Sprintf("fault: %v", i.Value)
	}
	return fmt.Sprintf("fault: task=%s: %v", i.Task, i.Value)
}

func (i *Info) Unwrap() error {
	err, _ := i.Value.(error)
	return err
}

var (
	active  atomic.Bool
	once    sync.Once
	handler atomic.Value // func(*Info)
)

// Active reports whether a fault has been raised.
func Active() bool {
	return active.Load()
}

// SetHandler installs the process-wide fault handler. It is invoked at
// most once, for the first fault, and must not panic.
func SetHandler(fn func(*Info)) {
	handler.Store(fn)
}

// Raise reports a fault from task and does not return.
func Raise(task string, v any) {
	info := &Info{Task: task, Value: v, Stack: debug.Stack()}
	active.Store(true)
	once.Do(func() {
		if fn, ok := handler.Load().(func(*Info)); ok && fn != nil {
			fn(info)
		}
	})
	panic(info)
}

// Assert raises a fault unless cond holds.
func Assert(cond bool, task, format string, args ...any) {
	if !cond {
		Raise(task, fmt.Sprintf(format, args...))
	}
}
