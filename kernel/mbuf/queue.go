package mbuf

import "nkern/kernel/oserr"

// PacketQueue is a FIFO of packets linked through their head mbufs.
// It does no locking.
type PacketQueue struct {
	head, tail *Mbuf
	n          int
}

// Push appends packet m. Only a packet head can be queued.
func (q *PacketQueue) Push(m *Mbuf) error {
	if m == nil || !m.IsPktHdr() {
		return oserr.InvalidArgument
	}
	m.pktNext = nil
	if q.tail == nil {
		q.head = m
	} else {
		q.tail.pktNext = m
	}
	q.tail = m
	q.n++
	return nil
}

// Pop removes the oldest packet, or returns nil.
func (q *PacketQueue) Pop() *Mbuf {
	m := q.head
	if m == nil {
		return nil
	}
	q.head = m.pktNext
	if q.head == nil {
		q.tail = nil
	}
	m.pktNext = nil
	q.n--
	return m
}

func (q *PacketQueue) Len() int    { return q.n }
func (q *PacketQueue) Empty() bool { return q.head == nil }
