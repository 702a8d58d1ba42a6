package kernel

import (
	"math"

	"nkern/kernel/oserr"
)

// Sem is a counting semaphore. Released tokens go straight to the highest
// priority waiter.
type Sem struct {
	k       *Kernel
	tokens  uint16
	waiters waitQueue
}

// NewSem returns a semaphore holding tokens.
func (k *Kernel) NewSem(tokens uint16) *Sem {
	return &Sem{k: k, tokens: tokens}
}

// Pend takes a token, waiting at most timeout ticks. A zero timeout fails
// with WouldBlock instead of waiting.
func (s *Sem) Pend(timeout Time) error {
	k := s.k
	if !k.started {
		return oserr.NotStarted
	}
	if k.cpu.InISR() {
		return oserr.InvalidArgument
	}

	sr := k.cpu.EnterCritical()
	if s.tokens > 0 {
		s.tokens--
		k.cpu.ExitCritical(sr)
		return nil
	}
	if timeout == 0 {
		k.cpu.ExitCritical(sr)
		return oserr.WouldBlock
	}

	cur := k.cur
	cur.flags |= FlagSemWait
	s.waiters.insert(cur)
	k.sleep(cur, timeout)
	k.reschedule()

	// Release clears the flag when it hands over a token.
	timedOut := cur.flags&FlagSemWait != 0
	cur.flags &^= FlagSemWait
	k.cpu.ExitCritical(sr)

	if timedOut {
		return oserr.Timeout
	}
	return nil
}

// Release returns a token. It may be called from an interrupt.
func (s *Sem) Release() error {
	k := s.k
	sr := k.cpu.EnterCritical()
	defer k.cpu.ExitCritical(sr)

	if rdy := s.waiters.first(); rdy != nil {
		rdy.flags &^= FlagSemWait
		k.wakeup(rdy)
		k.reschedule()
		return nil
	}
	if s.tokens == math.MaxUint16 {
		return oserr.InvalidArgument
	}
	s.tokens++
	return nil
}

func (s *Sem) Tokens() int {
	sr := s.k.cpu.EnterCritical()
	defer s.k.cpu.ExitCritical(sr)
	return int(s.tokens)
}

func (s *Sem) NumWaiters() int {
	sr := s.k.cpu.EnterCritical()
	defer s.k.cpu.ExitCritical(sr)
	return s.waiters.len()
}
