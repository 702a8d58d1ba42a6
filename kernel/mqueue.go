package kernel

import (
	"nkern/kernel/mbuf"
	"nkern/kernel/oserr"
)

// Mqueue is a queue of packet chains with one notification event. Every
// Put posts the event; its handler drains the queue with Get.
type Mqueue struct {
	k  *Kernel
	q  mbuf.PacketQueue
	ev Event
}

// NewMqueue returns an empty queue notifying with fn(arg).
func (k *Kernel) NewMqueue(fn EventFunc, arg any) *Mqueue {
	return &Mqueue{k: k, ev: Event{Fn: fn, Arg: arg}}
}

// Put appends packet m and posts the notification event to evq.
func (mq *Mqueue) Put(evq *EventQ, m *mbuf.Mbuf) error {
	if m == nil || !m.IsPktHdr() {
		return oserr.InvalidArgument
	}
	sr := mq.k.cpu.EnterCritical()
	err := mq.q.Push(m)
	mq.k.cpu.ExitCritical(sr)
	if err != nil {
		return err
	}
	if evq != nil {
		evq.Put(&mq.ev)
	}
	return nil
}

// Get removes the oldest packet, or returns nil.
func (mq *Mqueue) Get() *mbuf.Mbuf {
	sr := mq.k.cpu.EnterCritical()
	defer mq.k.cpu.ExitCritical(sr)
	return mq.q.Pop()
}

// Len returns the number of queued packets.
func (mq *Mqueue) Len() int {
	sr := mq.k.cpu.EnterCritical()
	defer mq.k.cpu.ExitCritical(sr)
	return mq.q.Len()
}

// Event returns the notification event.
func (mq *Mqueue) Event() *Event { return &mq.ev }
