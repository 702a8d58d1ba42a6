package mbuf

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nkern/hal"
	"nkern/kernel/mempool"
	"nkern/kernel/oserr"
)

const (
	testBufSize = 256
	testBufs    = 10
)

func newTestPool(t *testing.T, n, size int) *Pool {
	t.Helper()
	mp, err := mempool.New(hal.NewSim(), n, size, mempool.Buffer(n, size), "mbuf", mempool.WithCheck())
	require.NoError(t, err)
	return NewPool(mp)
}

func testData(n int) []byte {
	rng := rand.New(rand.NewSource(1001))
	b := make([]byte, n)
	rng.Read(b)
	return b
}

// requireSane checks that a packet header agrees with the chain.
func requireSane(t *testing.T, m *Mbuf, wantLen int) {
	t.Helper()
	require.Equal(t, wantLen, m.ChainLen())
	if m.IsPktHdr() {
		require.Equal(t, wantLen, m.PktLen())
	}
	for cur := m.next; cur != nil; cur = cur.next {
		require.False(t, cur.IsPktHdr(), "only the head carries a packet header")
	}
}

func TestGetBounds(t *testing.T) {
	p := newTestPool(t, testBufs, testBufSize)

	assert.Nil(t, p.Get(testBufSize+1))
	m := p.Get(testBufSize)
	require.NotNil(t, m)
	assert.Equal(t, testBufSize, m.LeadingSpace())
	assert.Equal(t, 0, m.TrailingSpace())

	assert.Nil(t, p.GetPktHdr(testBufSize))
	assert.Nil(t, p.GetPktHdr(maxPktHdrLen))
	h := p.GetPktHdr(4)
	require.NotNil(t, h)
	assert.True(t, h.IsPktHdr())
	assert.Len(t, h.UserHdr(), 4)
	assert.Equal(t, 0, h.LeadingSpace())
	assert.Equal(t, testBufSize-PktHdrSize-4, h.TrailingSpace())

	require.NoError(t, m.Free())
	require.NoError(t, h.Free())
	assert.Equal(t, testBufs, p.NumFree())
}

func TestFreeTwiceIsRejected(t *testing.T) {
	p := newTestPool(t, 2, 32)
	m := p.Get(0)
	require.NoError(t, m.Free())
	assert.ErrorIs(t, m.Free(), oserr.InvalidArgument)
}

func TestAppendSpansBuffers(t *testing.T) {
	p := newTestPool(t, testBufs, testBufSize)
	data := testData(1000)

	m := p.GetPktHdr(0)
	require.NoError(t, m.Append(data))
	requireSane(t, m, 1000)
	assert.Equal(t, data, m.Bytes())

	links := 0
	for cur := m; cur != nil; cur = cur.Next() {
		links++
	}
	assert.Equal(t, 4, links)

	require.NoError(t, m.FreeChain())
	assert.Equal(t, testBufs, p.NumFree())
}

func TestAppendOutOfMemoryKeepsPartialCopy(t *testing.T) {
	p := newTestPool(t, 2, 64)
	m := p.GetPktHdr(0)
	data := testData(200)

	err := m.Append(data)
	require.ErrorIs(t, err, oserr.OutOfMemory)
	partial := 64 - PktHdrSize + 64
	requireSane(t, m, partial)
	assert.Equal(t, data[:partial], m.Bytes())
}

func TestAppendGrowsFromHeadPool(t *testing.T) {
	big := newTestPool(t, 4, 128)
	small := newTestPool(t, 4, 32)

	m := big.GetPktHdr(0)
	require.NotNil(t, m)
	require.NoError(t, m.Append(testData(10)))
	tail := small.Get(0)
	require.NotNil(t, tail)
	m.Concat(tail)

	require.NoError(t, m.Append(testData(100)))
	requireSane(t, m, 110)
	assert.Equal(t, 3, small.NumFree(), "a small tail does not feed the chain")
	assert.Equal(t, 2, big.NumFree())
	assert.Same(t, big, m.Next().Next().Pool())

	require.NoError(t, m.CopyInto(110, testData(40)))
	requireSane(t, m, 150)
	assert.Equal(t, 3, small.NumFree())
	require.NoError(t, m.FreeChain())
}

func TestAppendFrom(t *testing.T) {
	p := newTestPool(t, testBufs, 64)
	data := testData(150)
	src := p.GetPktHdr(0)
	require.NoError(t, src.Append(data))

	dst := p.GetPktHdr(0)
	require.NoError(t, dst.AppendFrom(src, 50, 80))
	requireSane(t, dst, 80)
	assert.Equal(t, data[50:130], dst.Bytes())

	assert.ErrorIs(t, dst.AppendFrom(src, 100, 60), oserr.InvalidArgument)
}

func TestDup(t *testing.T) {
	p := newTestPool(t, testBufs, testBufSize)
	data := testData(600)
	m := p.GetPktHdr(2)
	require.NoError(t, m.Append(data))
	m.SetPktFlags(0x55)
	copy(m.UserHdr(), []byte{0xaa, 0xbb})

	d := m.Dup()
	require.NotNil(t, d)
	requireSane(t, d, 600)
	assert.Equal(t, data, d.Bytes())
	assert.Equal(t, uint16(0x55), d.PktFlags())
	assert.Equal(t, []byte{0xaa, 0xbb}, d.UserHdr())
	assert.NotSame(t, m, d)

	require.Equal(t, 4, p.NumFree())
	big := p.GetPktHdr(0)
	require.NoError(t, big.Append(testData(700)))
	require.Equal(t, 1, p.NumFree())
	assert.Nil(t, big.Dup(), "dup needs more links than are free")
	assert.Equal(t, 1, p.NumFree(), "partial copy is released")
}

func TestOffAndCopyData(t *testing.T) {
	p := newTestPool(t, testBufs, 64)
	data := testData(200)
	m := p.Get(0)
	require.NoError(t, m.Append(data))

	cur, off := m.Off(70)
	require.Same(t, m.Next(), cur)
	assert.Equal(t, 6, off)

	cur, off = m.Off(200)
	require.NotNil(t, cur)
	assert.Nil(t, cur.Next())
	assert.Equal(t, cur.Len(), off)

	cur, _ = m.Off(201)
	assert.Nil(t, cur)

	buf := make([]byte, 100)
	require.NoError(t, m.CopyData(60, buf))
	assert.Equal(t, data[60:160], buf)
	assert.ErrorIs(t, m.CopyData(150, buf), oserr.InvalidArgument)
}

func TestAdj(t *testing.T) {
	p := newTestPool(t, testBufs, 64)
	data := testData(200)

	m := p.GetPktHdr(0)
	require.NoError(t, m.Append(data))
	m.Adj(70)
	requireSane(t, m, 130)
	assert.Equal(t, data[70:], m.Bytes())

	m.Adj(-10)
	requireSane(t, m, 120)
	assert.Equal(t, data[70:190], m.Bytes())

	before := p.NumFree()
	m.Adj(-100)
	requireSane(t, m, 20)
	assert.Equal(t, data[70:90], m.Bytes())
	assert.Greater(t, p.NumFree(), before, "tail links are freed")

	m.Adj(-1000)
	requireSane(t, m, 0)
}

func TestCmpFAndCmpM(t *testing.T) {
	p := newTestPool(t, testBufs, 32)
	data := testData(100)
	a := p.Get(0)
	require.NoError(t, a.Append(data))
	b := p.Get(5)
	require.NoError(t, b.Append(data[10:]))

	assert.Equal(t, 0, a.CmpF(0, data))
	assert.Equal(t, 0, a.CmpF(33, data[33:90]))
	tail := append(append([]byte(nil), data[90:]...), 1, 2)
	assert.Equal(t, math.MaxInt, a.CmpF(90, tail))

	other := append([]byte(nil), data[40:60]...)
	other[15] ^= 0xff
	assert.NotEqual(t, 0, a.CmpF(40, other))

	assert.Equal(t, 0, a.CmpM(10, b, 0, 90))
	assert.Equal(t, 0, a.CmpM(45, b, 35, 30))
	assert.Equal(t, math.MaxInt, a.CmpM(60, b, 50, 60))
	assert.NotEqual(t, 0, a.CmpM(0, b, 0, 10))
}

func TestPrepend(t *testing.T) {
	p := newTestPool(t, testBufs, 64)
	m := p.GetPktHdr(0)
	m.data += 10
	require.NoError(t, m.Append([]byte("payload")))

	m = m.Prepend(4)
	require.NotNil(t, m)
	requireSane(t, m, 11)
	assert.Equal(t, 6, m.LeadingSpace())
	copy(m.Data()[:4], "hdr:")
	assert.Equal(t, "hdr:payload", string(m.Bytes()))

	m = m.Prepend(20)
	require.NotNil(t, m)
	requireSane(t, m, 31)
	assert.True(t, m.IsPktHdr())
	assert.Equal(t, 14, m.Len(), "new head filled from the back")

	m = m.PrependPullup(2)
	require.NotNil(t, m)
	requireSane(t, m, 33)
	assert.GreaterOrEqual(t, m.Len(), 2)
}

func TestPrependFailureFreesChain(t *testing.T) {
	p := newTestPool(t, 1, 64)
	m := p.Get(0)
	require.NoError(t, m.Append([]byte("x")))
	assert.Nil(t, m.Prepend(8))
	assert.Equal(t, 1, p.NumFree())
}

func TestCopyInto(t *testing.T) {
	p := newTestPool(t, testBufs, 64)
	data := testData(300)
	m := p.GetPktHdr(0)
	require.NoError(t, m.Append(data[:100]))

	require.NoError(t, m.CopyInto(20, data[20:40]))
	requireSane(t, m, 100)

	require.NoError(t, m.CopyInto(80, data[80:300]))
	requireSane(t, m, 300)
	assert.Equal(t, data, m.Bytes())

	assert.ErrorIs(t, m.CopyInto(301, []byte{1}), oserr.InvalidArgument)
}

func TestExtend(t *testing.T) {
	p := newTestPool(t, testBufs, 64)
	m := p.GetPktHdr(0)
	require.NoError(t, m.Append(testData(50)))

	b := m.Extend(6)
	require.Len(t, b, 6)
	assert.Nil(t, m.Next())
	requireSane(t, m, 56)

	b = m.Extend(20)
	require.Len(t, b, 20)
	require.NotNil(t, m.Next())
	requireSane(t, m, 76)

	assert.Nil(t, m.Extend(65))
}

func TestPullup(t *testing.T) {
	p := newTestPool(t, testBufs, 64)
	data := testData(150)
	m := p.GetPktHdr(0)
	require.NoError(t, m.Append(data))
	m.Adj(30)

	m = m.Pullup(40)
	require.NotNil(t, m)
	assert.GreaterOrEqual(t, m.Len(), 40)
	requireSane(t, m, 120)
	assert.Equal(t, data[30:], m.Bytes())

	m = m.Pullup(64 - PktHdrSize)
	require.NotNil(t, m)
	assert.Equal(t, 64-PktHdrSize, m.Len())
	requireSane(t, m, 120)
	assert.Equal(t, data[30:], m.Bytes())

	assert.Nil(t, m.Pullup(64))
	assert.Equal(t, testBufs, p.NumFree(), "failed pullup frees the chain")
}

func TestTrimFront(t *testing.T) {
	p := newTestPool(t, testBufs, 64)
	m := p.GetPktHdr(0)
	empty := p.Get(0)
	tail := p.Get(16)
	require.NoError(t, tail.Append(testData(10)))
	m.Concat(empty)
	m.Concat(tail)
	requireSane(t, m, 10)

	free := p.NumFree()
	head := m.TrimFront()
	assert.Same(t, tail, head)
	assert.True(t, head.IsPktHdr())
	requireSane(t, head, 10)
	assert.Equal(t, free+2, p.NumFree())

	assert.Same(t, head, head.TrimFront())
}

func TestConcat(t *testing.T) {
	p := newTestPool(t, testBufs, 64)
	a := p.GetPktHdr(0)
	require.NoError(t, a.Append([]byte("first ")))
	b := p.GetPktHdr(0)
	require.NoError(t, b.Append([]byte("second")))

	a.Concat(b)
	requireSane(t, a, 12)
	assert.Equal(t, "first second", string(a.Bytes()))
}

func TestPackChains(t *testing.T) {
	p := newTestPool(t, 20, testBufSize)
	data := testData(2048)

	build := func(lens, leading []int, src []byte) *Mbuf {
		m := p.GetPktHdr(0)
		m.data += leading[0]
		require.NoError(t, m.CopyInto(0, src[:lens[0]]))
		src = src[lens[0]:]
		cur := m
		for i := 1; i < len(lens); i++ {
			nm := p.Get(leading[i])
			require.NoError(t, nm.CopyInto(0, src[:lens[i]]))
			src = src[lens[i]:]
			m.addPktLen(lens[i])
			cur.next = nm
			cur = nm
		}
		return m
	}

	m1 := build([]int{10, 0, 100, 200, 50}, []int{20, 0, 16, 0, 8}, data)
	m2 := build([]int{200, 140}, []int{0, 100}, data[360:])

	start := p.NumFree()
	m := m1.PackChains(m2)
	require.Same(t, m1, m)
	requireSane(t, m, 700)
	assert.Equal(t, data[:700], m.Bytes())

	links := 0
	for cur := m; cur != nil; cur = cur.next {
		require.NotZero(t, cur.len)
		require.Zero(t, cur.LeadingSpace())
		if cur.next != nil {
			require.Zero(t, cur.TrailingSpace(), "every link but the last is full")
		}
		links++
	}
	assert.Equal(t, 3, links)
	assert.Equal(t, start+4, p.NumFree())

	assert.Nil(t, (*Mbuf)(nil).PackChains(nil))
}

func TestRegistry(t *testing.T) {
	small := newTestPool(t, 4, 64)
	large := newTestPool(t, 2, 256)
	mid := newTestPool(t, 3, 128)

	var r Registry
	assert.Nil(t, r.Get(10, 0))
	r.Register(large)
	r.Register(small)
	r.Register(mid)
	assert.Equal(t, []*Pool{small, mid, large}, r.Pools())
	assert.Equal(t, 9, r.Count())

	m := r.Get(100, 0)
	require.NotNil(t, m)
	assert.Same(t, mid, m.Pool())

	m = r.Get(1000, 0)
	require.NotNil(t, m)
	assert.Same(t, large, m.Pool(), "oversized requests use the largest pool")

	h := r.GetPktHdr(60, 0)
	require.NotNil(t, h)
	assert.Same(t, mid, h.Pool(), "packet header counts toward the size")
	assert.Equal(t, 6, r.NumFree())

	r.Reset()
	assert.Equal(t, 0, r.Count())
}

func TestPacketQueue(t *testing.T) {
	p := newTestPool(t, 4, 64)
	var q PacketQueue
	assert.Nil(t, q.Pop())
	assert.ErrorIs(t, q.Push(p.Get(0)), oserr.InvalidArgument)

	a, b := p.GetPktHdr(0), p.GetPktHdr(0)
	require.NoError(t, q.Push(a))
	require.NoError(t, q.Push(b))
	assert.Equal(t, 2, q.Len())
	assert.Same(t, a, q.Pop())
	assert.Same(t, b, q.Pop())
	assert.True(t, q.Empty())
}
