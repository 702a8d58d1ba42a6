package mbuf

import (
	"bytes"
	"math"

	"nkern/kernel/oserr"
)

// fill copies data into the trailing space of last, then into new links
// from pool chained after it. It returns the number of bytes that did not
// fit.
func fill(pool *Pool, last *Mbuf, data []byte) int {
	if space := last.TrailingSpace(); space > 0 {
		n := copy(last.buf[last.data+last.len:], data[:min(space, len(data))])
		last.len += n
		data = data[n:]
	}
	for len(data) > 0 {
		nm := pool.Get(0)
		if nm == nil {
			break
		}
		nm.len = copy(nm.buf[nm.data:], data)
		data = data[nm.len:]
		last.next = nm
		last = nm
	}
	return len(data)
}

// Append copies data to the end of the chain, allocating links from the
// head's pool as needed. If the pool runs dry it returns OutOfMemory; the
// bytes copied so far stay in the chain and are counted in the header.
func (m *Mbuf) Append(data []byte) error {
	if m == nil || len(data) > math.MaxUint16 {
		return oserr.InvalidArgument
	}
	rem := fill(m.pool, m.last(), data)
	m.addPktLen(len(data) - rem)
	if rem != 0 {
		return oserr.OutOfMemory
	}
	return nil
}

// AppendFrom appends n bytes of src starting at offset off.
func (m *Mbuf) AppendFrom(src *Mbuf, off, n int) error {
	cur, coff := src.Off(off)
	for n > 0 {
		if cur == nil {
			return oserr.InvalidArgument
		}
		chunk := min(n, cur.len-coff)
		if err := m.Append(cur.buf[cur.data+coff : cur.data+coff+chunk]); err != nil {
			return err
		}
		n -= chunk
		cur = cur.next
		coff = 0
	}
	return nil
}

// Dup copies the chain into newly allocated links of the same pool. It
// returns nil, freeing any partial copy, if the pool runs dry.
func (m *Mbuf) Dup() *Mbuf {
	var head, cp *Mbuf
	for om := m; om != nil; om = om.next {
		nm := m.pool.Get(om.LeadingSpace())
		if nm == nil {
			if head != nil {
				_ = head.FreeChain()
			}
			return nil
		}
		if head == nil {
			head = nm
			if om.IsPktHdr() {
				copyPktHdr(nm, om)
			}
		} else {
			cp.next = nm
		}
		cp = nm
		cp.flags = om.flags
		cp.len = om.len
		copy(cp.Data(), om.Data())
	}
	return head
}

// Off locates absolute offset off in the chain. It returns the link holding
// that byte and the offset within it. An offset equal to the chain length
// resolves to the end of the last link. It returns nil past the end.
func (m *Mbuf) Off(off int) (*Mbuf, int) {
	if off < 0 {
		return nil, 0
	}
	for cur := m; cur != nil; cur = cur.next {
		if cur.len > off || (cur.len == off && cur.next == nil) {
			return cur, off
		}
		off -= cur.len
	}
	return nil, 0
}

// CopyData copies len(dst) bytes starting at offset off into dst.
func (m *Mbuf) CopyData(off int, dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	cur := m
	for off > 0 {
		if cur == nil {
			return oserr.InvalidArgument
		}
		if off < cur.len {
			break
		}
		off -= cur.len
		cur = cur.next
	}
	w := 0
	for w < len(dst) && cur != nil {
		w += copy(dst[w:], cur.buf[cur.data+off:cur.data+cur.len])
		off = 0
		cur = cur.next
	}
	if w < len(dst) {
		return oserr.InvalidArgument
	}
	return nil
}

// Bytes returns a copy of the whole chain's data.
func (m *Mbuf) Bytes() []byte {
	out := make([]byte, 0, m.ChainLen())
	for cur := m; cur != nil; cur = cur.next {
		out = append(out, cur.Data()...)
	}
	return out
}

// Adj trims n bytes from the head of the chain, or -n bytes from the tail
// when n is negative. Emptied head links stay in the chain; tail links past
// the new end are freed.
func (m *Mbuf) Adj(n int) {
	if m == nil {
		return
	}
	if n >= 0 {
		left := n
		for cur := m; cur != nil && left > 0; {
			if cur.len <= left {
				left -= cur.len
				cur.len = 0
				cur = cur.next
			} else {
				cur.len -= left
				cur.data += left
				left = 0
			}
		}
		m.addPktLen(-(n - left))
		return
	}

	n = -n
	count := 0
	last := m
	for {
		count += last.len
		if last.next == nil {
			break
		}
		last = last.next
	}
	if last.len >= n {
		last.len -= n
		m.addPktLen(-n)
		return
	}
	count = max(count-n, 0)

	if m.IsPktHdr() {
		m.setPktLen(count)
	}
	for cur := m; cur != nil; cur = cur.next {
		if cur.len >= count {
			cur.len = count
			if cur.next != nil {
				_ = cur.next.FreeChain()
				cur.next = nil
			}
			break
		}
		count -= cur.len
	}
}

// CmpF compares the chain starting at offset off with data. It returns
// math.MaxInt if the chain ends first, otherwise the bytes.Compare result
// of the first differing chunk.
func (m *Mbuf) CmpF(off int, data []byte) int {
	if len(data) == 0 {
		return 0
	}
	cur, coff := m.Off(off)
	doff := 0
	for cur != nil {
		chunk := min(cur.len-coff, len(data)-doff)
		if chunk > 0 {
			seg := cur.buf[cur.data+coff : cur.data+coff+chunk]
			if rc := bytes.Compare(seg, data[doff:doff+chunk]); rc != 0 {
				return rc
			}
		}
		doff += chunk
		if doff == len(data) {
			return 0
		}
		cur = cur.next
		coff = 0
	}
	return math.MaxInt
}

// CmpM compares n bytes of m starting at off1 with n bytes of other
// starting at off2.
func (m *Mbuf) CmpM(off1 int, other *Mbuf, off2 int, n int) int {
	cur1, o1 := m.Off(off1)
	cur2, o2 := other.Off(off2)

	for n > 0 {
		for cur1 != nil && o1 >= cur1.len {
			cur1 = cur1.next
			o1 = 0
		}
		for cur2 != nil && o2 >= cur2.len {
			cur2 = cur2.next
			o2 = 0
		}
		if cur1 == nil || cur2 == nil {
			return math.MaxInt
		}

		chunk := min(cur1.len-o1, cur2.len-o2, n)
		a := cur1.buf[cur1.data+o1 : cur1.data+o1+chunk]
		b := cur2.buf[cur2.data+o2 : cur2.data+o2+chunk]
		if rc := bytes.Compare(a, b); rc != 0 {
			return rc
		}
		o1 += chunk
		o2 += chunk
		n -= chunk
	}
	return 0
}

// Prepend grows the chain by n bytes at the front and returns the new
// head. Leading space is used first; new heads are allocated for the rest
// and inherit the packet header. On allocation failure the whole chain is
// freed and nil is returned.
func (m *Mbuf) Prepend(n int) *Mbuf {
	om := m
	for n > 0 {
		lead := min(n, om.LeadingSpace())
		om.data -= lead
		om.len += lead
		om.addPktLen(lead)
		n -= lead
		if n == 0 {
			break
		}

		var p *Mbuf
		if om.IsPktHdr() {
			p = om.pool.GetPktHdr(om.pkthdrLen - PktHdrSize)
		} else {
			p = om.pool.Get(0)
		}
		if p == nil {
			_ = om.FreeChain()
			return nil
		}
		if om.IsPktHdr() {
			copyPktHdr(p, om)
			om.pkthdrLen = 0
		}
		p.data += p.TrailingSpace()
		p.next = om
		om = p
	}
	return om
}

// PrependPullup prepends n bytes and makes them contiguous in the head.
func (m *Mbuf) PrependPullup(n int) *Mbuf {
	om := m.Prepend(n)
	if om == nil {
		return nil
	}
	return om.Pullup(n)
}

// CopyInto overwrites the chain with src starting at offset off, extending
// the chain when src runs past its end.
func (m *Mbuf) CopyInto(off int, src []byte) error {
	cur, coff := m.Off(off)
	if cur == nil {
		return oserr.InvalidArgument
	}
	total := len(src)
	for {
		n := copy(cur.buf[cur.data+coff:cur.data+cur.len], src)
		src = src[n:]
		if len(src) == 0 {
			return nil
		}
		if cur.next == nil {
			break
		}
		cur = cur.next
		coff = 0
	}

	rem := fill(m.pool, cur, src)
	if m.IsPktHdr() {
		m.setPktLen(max(m.PktLen(), off+total-rem))
	}
	if rem != 0 {
		return oserr.OutOfMemory
	}
	return nil
}

// Extend grows the chain by n bytes and returns them for the caller to
// fill. A new link is added when the last one lacks room. It returns nil if
// n exceeds one block or the pool is empty.
func (m *Mbuf) Extend(n int) []byte {
	if n < 0 || n > m.pool.DataLen() {
		return nil
	}
	last := m.last()
	if last.TrailingSpace() < n {
		nm := m.pool.Get(0)
		if nm == nil {
			return nil
		}
		last.next = nm
		last = nm
	}
	start := last.data + last.len
	last.len += n
	m.addPktLen(n)
	return last.buf[start : start+n : start+n]
}

// Pullup rearranges the front of the chain so that its first n bytes are
// contiguous in the head, and returns the new head. If that cannot be done
// the chain is freed and nil is returned.
func (m *Mbuf) Pullup(n int) *Mbuf {
	om := m
	if om.len >= n {
		return om
	}

	var om2 *Mbuf
	if om.len+om.TrailingSpace() >= n && om.next != nil {
		om2 = om
		om = om.next
		n -= om2.len
	} else {
		if n > om.pool.DataLen()-om.pkthdrLen {
			_ = om.FreeChain()
			return nil
		}
		om2 = om.pool.Get(0)
		if om2 == nil {
			_ = om.FreeChain()
			return nil
		}
		if om.IsPktHdr() {
			copyPktHdr(om2, om)
			om.pkthdrLen = 0
		}
	}

	space := om2.TrailingSpace()
	for n > 0 && om != nil {
		count := min(n, space, om.len)
		copy(om2.buf[om2.data+om2.len:], om.buf[om.data:om.data+count])
		n -= count
		om2.len += count
		om.len -= count
		space -= count
		if om.len != 0 {
			om.data += count
		} else {
			next := om.next
			_ = om.Free()
			om = next
		}
	}
	if n > 0 {
		_ = om2.Free()
		_ = om.FreeChain()
		return nil
	}
	om2.next = om
	return om2
}

// TrimFront frees empty links at the front of the chain and returns the
// new head. An empty head is only dropped when the next link has room in
// front for the head's packet header.
func (m *Mbuf) TrimFront() *Mbuf {
	if m.len != 0 {
		return m
	}

	cur := m.next
	for cur != nil && cur.len == 0 {
		next := cur.next
		m.next = next
		_ = cur.Free()
		cur = next
	}
	if cur == nil {
		return m
	}

	if cur.LeadingSpace() >= m.pkthdrLen {
		cur.pkthdrLen = m.pkthdrLen
		copy(cur.buf[:m.pkthdrLen], m.buf[:m.pkthdrLen])
		_ = m.Free()
		return cur
	}
	return m
}

// PackChains concatenates m2 onto m and compacts the result so that every
// link but the last is full and no empty links remain. It returns the head.
func (m *Mbuf) PackChains(m2 *Mbuf) *Mbuf {
	if m == nil {
		return nil
	}
	if m2 != nil {
		m.Concat(m2)
	}

	cur := m
	for {
		if cur.LeadingSpace() > 0 {
			start := cur.pkthdrLen
			copy(cur.buf[start:], cur.buf[cur.data:cur.data+cur.len])
			cur.data = start
		}

		next := cur.next
		rem := cur.TrailingSpace()
		for rem > 0 && next != nil {
			n := copy(cur.buf[cur.data+cur.len:cur.data+cur.len+rem], next.buf[next.data:next.data+next.len])
			cur.len += n
			rem -= n
			next.data += n
			next.len -= n

			for next.len == 0 {
				cur.next = next.next
				_ = next.Free()
				next = cur.next
				if next == nil {
					break
				}
			}
		}
		if next == nil {
			break
		}
		cur = next
	}
	return m
}
