// Package mbuf implements chained packet buffers on top of memory pools.
//
// An mbuf is one pool block plus a header record kept outside the block.
// The block holds the payload window; a chain head may reserve the front of
// its block for a packet header carrying the total chain length and flags,
// followed by an optional user header.
package mbuf

import (
	"encoding/binary"

	"nkern/internal/fault"
	"nkern/kernel/mempool"
)

// PktHdrSize is the size of the packet header that precedes any user
// header in the first block of a packet.
const PktHdrSize = 8

const maxPktHdrLen = 255

// Pool hands out mbufs backed by the blocks of a memory pool.
type Pool struct {
	mp   *mempool.Pool
	hdrs []Mbuf
}

// NewPool wraps mp. Every block of mp becomes one mbuf.
func NewPool(mp *mempool.Pool) *Pool {
	return &Pool{mp: mp, hdrs: make([]Mbuf, mp.NumBlocks())}
}

// DataLen is the payload capacity of one mbuf.
func (p *Pool) DataLen() int { return p.mp.BlockSize() }

// Mempool returns the backing memory pool.
func (p *Pool) Mempool() *mempool.Pool { return p.mp }

// NumFree returns the number of mbufs available.
func (p *Pool) NumFree() int { return p.mp.NumFree() }

// Get allocates an mbuf whose data starts leading bytes into its block.
// It returns nil when the pool is empty or leading exceeds the block.
func (p *Pool) Get(leading int) *Mbuf {
	if leading < 0 || leading > p.DataLen() {
		return nil
	}
	b := p.mp.Get()
	if b == nil {
		return nil
	}
	i, err := p.mp.Index(b)
	fault.Assert(err == nil, "", "mbuf: block outside pool")

	m := &p.hdrs[i]
	*m = Mbuf{pool: p, buf: b, data: leading}
	return m
}

// GetPktHdr allocates a packet head reserving userHdrLen bytes of user
// header after the packet header.
func (p *Pool) GetPktHdr(userHdrLen int) *Mbuf {
	if userHdrLen < 0 {
		return nil
	}
	n := userHdrLen + PktHdrSize
	if n > p.DataLen() || n > maxPktHdrLen {
		return nil
	}
	m := p.Get(0)
	if m == nil {
		return nil
	}
	m.pkthdrLen = n
	m.data += n
	clear(m.buf[:PktHdrSize])
	return m
}

// Mbuf is one link of a packet buffer chain.
type Mbuf struct {
	pool      *Pool
	buf       []byte
	data      int
	len       int
	pkthdrLen int
	flags     uint8

	next    *Mbuf
	pktNext *Mbuf
}

func (m *Mbuf) Pool() *Pool      { return m.pool }
func (m *Mbuf) Next() *Mbuf      { return m.next }
func (m *Mbuf) Len() int         { return m.len }
func (m *Mbuf) Flags() uint8     { return m.flags }
func (m *Mbuf) SetFlags(f uint8) { m.flags = f }

// Data returns the valid bytes of this mbuf.
func (m *Mbuf) Data() []byte { return m.buf[m.data : m.data+m.len] }

// IsPktHdr reports whether m carries a packet header.
func (m *Mbuf) IsPktHdr() bool { return m.pkthdrLen >= PktHdrSize }

// PktLen returns the packet length recorded in the header.
func (m *Mbuf) PktLen() int {
	if !m.IsPktHdr() {
		return 0
	}
	return int(binary.LittleEndian.Uint16(m.buf[0:2]))
}

func (m *Mbuf) setPktLen(n int) {
	binary.LittleEndian.PutUint16(m.buf[0:2], uint16(n))
}

func (m *Mbuf) addPktLen(n int) {
	if m.IsPktHdr() {
		m.setPktLen(m.PktLen() + n)
	}
}

// PktFlags returns the packet header flags.
func (m *Mbuf) PktFlags() uint16 {
	if !m.IsPktHdr() {
		return 0
	}
	return binary.LittleEndian.Uint16(m.buf[2:4])
}

func (m *Mbuf) SetPktFlags(f uint16) {
	if m.IsPktHdr() {
		binary.LittleEndian.PutUint16(m.buf[2:4], f)
	}
}

// UserHdr returns the user header area of a packet head.
func (m *Mbuf) UserHdr() []byte {
	if !m.IsPktHdr() {
		return nil
	}
	return m.buf[PktHdrSize:m.pkthdrLen]
}

// LeadingSpace is the room in front of the data, after any packet header.
func (m *Mbuf) LeadingSpace() int { return m.data - m.pkthdrLen }

// TrailingSpace is the room after the data.
func (m *Mbuf) TrailingSpace() int { return len(m.buf) - m.data - m.len }

// ChainLen sums the data length of every link starting at m.
func (m *Mbuf) ChainLen() int {
	n := 0
	for cur := m; cur != nil; cur = cur.next {
		n += cur.len
	}
	return n
}

// Free releases this mbuf only.
func (m *Mbuf) Free() error {
	if m.pool == nil {
		return nil
	}
	if err := m.pool.mp.Put(m.buf); err != nil {
		return err
	}
	m.buf = nil
	m.next = nil
	m.pktNext = nil
	return nil
}

// FreeChain releases every link starting at m.
func (m *Mbuf) FreeChain() error {
	for m != nil {
		next := m.next
		if err := m.Free(); err != nil {
			return err
		}
		m = next
	}
	return nil
}

func copyPktHdr(dst, src *Mbuf) {
	fault.Assert(dst.len == 0, "", "mbuf: packet header copied into non-empty mbuf")
	copy(dst.buf[:src.pkthdrLen], src.buf[:src.pkthdrLen])
	dst.pkthdrLen = src.pkthdrLen
	dst.data = src.pkthdrLen
}

func (m *Mbuf) last() *Mbuf {
	for m.next != nil {
		m = m.next
	}
	return m
}

// Concat appends second to the chain headed by m. Any packet header of
// second is dropped after its length is added to m's header.
func (m *Mbuf) Concat(second *Mbuf) {
	if second == nil {
		return
	}
	m.last().next = second

	if m.IsPktHdr() {
		if second.IsPktHdr() {
			m.addPktLen(second.PktLen())
		} else {
			m.addPktLen(second.ChainLen())
		}
	}
	second.pkthdrLen = 0
}
