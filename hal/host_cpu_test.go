package hal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startSim(t *testing.T, c *Sim, first Context) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- c.Start(first) }()
	t.Cleanup(c.Halt)
	return errc
}

func quiesce(t *testing.T, c *Sim) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		c.Quiesce()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cpu did not go idle")
	}
}

func TestSimSwitchesBetweenContexts(t *testing.T) {
	c := NewSim()
	var trace []string
	var a, b, idle Context

	idle = c.NewContext(func() {
		for {
			c.Idle()
		}
	}, make([]StackWord, 64))
	b = c.NewContext(func() {
		trace = append(trace, "b1")
		c.Switch(a)
		trace = append(trace, "b2")
		c.Switch(idle)
	}, make([]StackWord, 64))
	a = c.NewContext(func() {
		trace = append(trace, "a1")
		c.Switch(b)
		trace = append(trace, "a2")
		c.Switch(b)
	}, make([]StackWord, 64))

	startSim(t, c, a)
	quiesce(t, c)
	require.Equal(t, []string{"a1", "b1", "a2", "b2"}, trace)
}

func TestSimDefersInterruptsUntilCriticalExit(t *testing.T) {
	c := NewSim()
	var trace []string
	var idle Context
	idle = c.NewContext(func() {
		for {
			c.Idle()
		}
	}, make([]StackWord, 64))
	task := c.NewContext(func() {
		sr := c.EnterCritical()
		inner := c.EnterCritical()
		c.Interrupt(func() {
			require.True(t, c.InISR())
			trace = append(trace, "isr")
		})
		c.ExitCritical(inner)
		trace = append(trace, "inner exit")
		c.ExitCritical(sr)
		trace = append(trace, "outer exit")
		c.Switch(idle)
	}, make([]StackWord, 64))

	startSim(t, c, task)
	quiesce(t, c)
	require.Equal(t, []string{"inner exit", "isr", "outer exit"}, trace)
}

func TestSimIdleRunsInterruptAndExitHook(t *testing.T) {
	c := NewSim()
	var isr, hook int
	c.SetIRQExit(func() {
		require.False(t, c.InISR())
		hook++
	})
	idle := c.NewContext(func() {
		for {
			c.Idle()
		}
	}, make([]StackWord, 64))

	startSim(t, c, idle)
	quiesce(t, c)
	c.Interrupt(func() { isr++ })
	quiesce(t, c)
	require.Equal(t, 1, isr)
	require.GreaterOrEqual(t, hook, 1)
}

func TestSimStartReturnsContextPanic(t *testing.T) {
	c := NewSim()
	boom := errors.New("boom")
	first := c.NewContext(func() { panic(boom) }, make([]StackWord, 64))

	errc := startSim(t, c, first)
	select {
	case err := <-errc:
		require.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}
}

func TestSimNewContextWritesFrame(t *testing.T) {
	c := NewSim()
	stack := make([]StackWord, 32)
	for i := range stack {
		stack[i] = 0xdeadbeef
	}
	c.NewContext(func() {}, stack)
	require.Equal(t, StackWord(0xdeadbeef), stack[len(stack)-frameWords-1])
	require.Equal(t, StackWord(0x01000000), stack[len(stack)-1])
}

func TestSimTimerFiresOnCrossing(t *testing.T) {
	c := NewSim()
	tm := NewSimTimer(c)
	fired := 0
	tm.SetHandler(func() { fired++ })
	idle := c.NewContext(func() {
		for {
			c.Idle()
		}
	}, make([]StackWord, 64))
	startSim(t, c, idle)

	tm.SetCompare(100)
	tm.Advance(99)
	quiesce(t, c)
	require.Equal(t, 0, fired)

	tm.Advance(1)
	quiesce(t, c)
	require.Equal(t, 1, fired)

	tm.Advance(1000)
	quiesce(t, c)
	require.Equal(t, 1, fired, "compare is one-shot")

	tm.ForcePending()
	quiesce(t, c)
	require.Equal(t, 2, fired)
}
