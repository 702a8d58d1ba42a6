// Package mempool is a fixed-block memory allocator.
//
// A pool is laid over a caller supplied buffer and never grows. Free
// blocks are kept on a singly linked list threaded through their first
// word, so the pool needs no bookkeeping storage of its own.
package mempool

import (
	"encoding/binary"
	"unsafe"

	"nkern/hal"
	"nkern/internal/fault"
	"nkern/kernel/oserr"
)

// Align is the required alignment of pool buffers and block sizes.
const Align = 4

// links are stored as block index plus one; zero ends the list.
const endOfList = 0

// Option configures a Pool.
type Option func(*Pool)

// WithCheck enables the debug double-free scan on Put.
func WithCheck() Option {
	return func(p *Pool) { p.check = true }
}

// Pool is a memory pool.
type Pool struct {
	cs   hal.Critical
	name string
	buf  []byte

	blockSize int
	numBlocks int
	numFree   int
	minFree   int
	head      uint32

	check bool
}

// Info is a snapshot of pool usage.
type Info struct {
	Name      string
	BlockSize int
	NumBlocks int
	NumFree   int
	MinFree   int
}

// BlockSize rounds size up to the pool alignment.
func BlockSize(size int) int {
	return (size + Align - 1) &^ (Align - 1)
}

// Bytes returns the buffer length needed for n blocks of size bytes.
func Bytes(n, size int) int {
	return n * BlockSize(size)
}

// Buffer allocates an aligned buffer for n blocks of size bytes.
func Buffer(n, size int) []byte {
	words := make([]uint32, (Bytes(n, size)+Align-1)/Align)
	if len(words) == 0 {
		return []byte{}
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*Align)
}

// New initializes a pool of numBlocks blocks over buf.
func New(cs hal.Critical, numBlocks, blockSize int, buf []byte, name string, opts ...Option) (*Pool, error) {
	if numBlocks < 0 || blockSize <= 0 {
		return nil, oserr.InvalidArgument
	}
	blockSize = BlockSize(blockSize)
	if len(buf) < numBlocks*blockSize {
		return nil, oserr.InvalidArgument
	}
	if numBlocks > 0 && uintptr(unsafe.Pointer(unsafe.SliceData(buf)))%Align != 0 {
		return nil, oserr.NotAligned
	}

	p := &Pool{
		cs:        cs,
		name:      name,
		buf:       buf[:numBlocks*blockSize],
		blockSize: blockSize,
		numBlocks: numBlocks,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.thread()
	return p, nil
}

func (p *Pool) thread() {
	for i := 0; i < p.numBlocks; i++ {
		next := uint32(i + 2)
		if i == p.numBlocks-1 {
			next = endOfList
		}
		binary.LittleEndian.PutUint32(p.buf[i*p.blockSize:], next)
	}
	p.head = endOfList
	if p.numBlocks > 0 {
		p.head = 1
	}
	p.numFree = p.numBlocks
	p.minFree = p.numBlocks
}

// Block returns block i. It does not check whether the block is free.
func (p *Pool) Block(i int) []byte {
	off := i * p.blockSize
	return p.buf[off : off+p.blockSize : off+p.blockSize]
}

// Index returns the index of block b, which must start on a block
// boundary inside the pool.
func (p *Pool) Index(b []byte) (int, error) {
	if len(p.buf) == 0 || cap(b) == 0 {
		return 0, oserr.InvalidArgument
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.buf)))
	ptr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	if ptr < base {
		return 0, oserr.InvalidArgument
	}
	off := ptr - base
	if off >= uintptr(len(p.buf)) || off%uintptr(p.blockSize) != 0 {
		return 0, oserr.InvalidArgument
	}
	return int(off / uintptr(p.blockSize)), nil
}

// Contains reports whether b is a block of p.
func (p *Pool) Contains(b []byte) bool {
	_, err := p.Index(b)
	return err == nil
}

// Get removes a block from the pool. It returns nil when the pool is
// empty.
func (p *Pool) Get() []byte {
	sr := p.cs.EnterCritical()
	defer p.cs.ExitCritical(sr)

	if p.head == endOfList {
		return nil
	}
	i := int(p.head - 1)
	b := p.Block(i)
	p.head = binary.LittleEndian.Uint32(b)
	p.numFree--
	if p.numFree < p.minFree {
		p.minFree = p.numFree
	}
	return b
}

// Put returns block b to the pool.
func (p *Pool) Put(b []byte) error {
	i, err := p.Index(b)
	if err != nil {
		return err
	}

	sr := p.cs.EnterCritical()
	defer p.cs.ExitCritical(sr)

	if p.check {
		p.checkFree(i)
	}
	binary.LittleEndian.PutUint32(p.Block(i), p.head)
	p.head = uint32(i + 1)
	p.numFree++
	return nil
}

// checkFree faults if block i is already on the free list.
func (p *Pool) checkFree(i int) {
	fault.Assert(p.numFree < p.numBlocks, "", "mempool %s: put into full pool", p.name)
	for n, next := 0, p.head; next != endOfList && n < p.numBlocks; n++ {
		fault.Assert(int(next-1) != i, "", "mempool %s: double free of block %d", p.name, i)
		next = binary.LittleEndian.Uint32(p.Block(int(next - 1)))
	}
}

// IsSane walks the free list and reports whether it is consistent with
// the free count.
func (p *Pool) IsSane() bool {
	sr := p.cs.EnterCritical()
	defer p.cs.ExitCritical(sr)

	n := 0
	for next := p.head; next != endOfList; n++ {
		if n >= p.numBlocks || int(next) > p.numBlocks {
			return false
		}
		next = binary.LittleEndian.Uint32(p.Block(int(next - 1)))
	}
	return n == p.numFree
}

// Reset returns every block to the pool. Blocks held by callers must no
// longer be used.
func (p *Pool) Reset() {
	sr := p.cs.EnterCritical()
	p.thread()
	p.cs.ExitCritical(sr)
}

func (p *Pool) Name() string   { return p.name }
func (p *Pool) BlockSize() int { return p.blockSize }
func (p *Pool) NumBlocks() int { return p.numBlocks }

func (p *Pool) NumFree() int {
	sr := p.cs.EnterCritical()
	defer p.cs.ExitCritical(sr)
	return p.numFree
}

func (p *Pool) MinFree() int {
	sr := p.cs.EnterCritical()
	defer p.cs.ExitCritical(sr)
	return p.minFree
}

// Info returns a usage snapshot.
func (p *Pool) Info() Info {
	sr := p.cs.EnterCritical()
	defer p.cs.ExitCritical(sr)
	return Info{
		Name:      p.name,
		BlockSize: p.blockSize,
		NumBlocks: p.numBlocks,
		NumFree:   p.numFree,
		MinFree:   p.minFree,
	}
}
