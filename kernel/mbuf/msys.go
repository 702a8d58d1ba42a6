package mbuf

// Registry is the system mbuf pool set (msys). Pools are kept sorted by
// ascending data length so a request is served by the smallest pool that
// fits it.
type Registry struct {
	pools []*Pool
}

// Register adds p after every pool with the same or a smaller data length.
func (r *Registry) Register(p *Pool) {
	i := 0
	for i < len(r.pools) && r.pools[i].DataLen() <= p.DataLen() {
		i++
	}
	r.pools = append(r.pools, nil)
	copy(r.pools[i+1:], r.pools[i:])
	r.pools[i] = p
}

// Reset forgets every registered pool.
func (r *Registry) Reset() {
	r.pools = nil
}

// Pools returns the registered pools in ascending data length.
func (r *Registry) Pools() []*Pool {
	return append([]*Pool(nil), r.pools...)
}

// find returns the first pool that holds dsize bytes, or the largest pool
// if none does.
func (r *Registry) find(dsize int) *Pool {
	if len(r.pools) == 0 {
		return nil
	}
	for _, p := range r.pools {
		if dsize <= p.DataLen() {
			return p
		}
	}
	return r.pools[len(r.pools)-1]
}

// Get allocates an mbuf sized for dsize bytes of data.
func (r *Registry) Get(dsize, leading int) *Mbuf {
	p := r.find(dsize)
	if p == nil {
		return nil
	}
	return p.Get(leading)
}

// GetPktHdr allocates a packet head sized for dsize bytes of data plus the
// packet and user headers.
func (r *Registry) GetPktHdr(dsize, userHdrLen int) *Mbuf {
	p := r.find(dsize + userHdrLen + PktHdrSize)
	if p == nil {
		return nil
	}
	return p.GetPktHdr(userHdrLen)
}

// Count returns the number of mbufs across all pools.
func (r *Registry) Count() int {
	n := 0
	for _, p := range r.pools {
		n += p.mp.NumBlocks()
	}
	return n
}

// NumFree returns the number of free mbufs across all pools.
func (r *Registry) NumFree() int {
	n := 0
	for _, p := range r.pools {
		n += p.NumFree()
	}
	return n
}
