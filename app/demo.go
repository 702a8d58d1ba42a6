package app

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"nkern/hal"
	"nkern/kernel"
	"nkern/kernel/cputime"
	"nkern/kernel/mbuf"
)

const (
	prioConsumer = 10
	prioProducer = 20
	prioWorker   = 30
	prioMonitor  = 200

	maxWorkers = 16
	stackWords = 256
	seqHdrLen  = 8
)

// Counters are the demo statistics. They are safe to read from any
// goroutine.
type Counters struct {
	Sent     atomic.Uint32
	Received atomic.Uint32
	Corrupt  atomic.Uint32
	Dropped  atomic.Uint32
	Work     atomic.Uint32

	// MaxLatencyUs is the worst producer to consumer delay seen.
	MaxLatencyUs atomic.Uint32
}

// demo is the packet pipeline: a producer callout builds sequence-stamped
// packets and queues them for a consumer that verifies them. Workers
// contend for a mutex, paced by a semaphore the producer releases.
type demo struct {
	k    *kernel.Kernel
	msys *mbuf.Registry
	log  zerolog.Logger
	c    *Counters
	ct   *cputime.Cputime

	size   int
	period kernel.Time
	seq    uint32

	prodQ  *kernel.EventQ
	consQ  *kernel.EventQ
	mq     *kernel.Mqueue
	ticker *kernel.Callout

	mu     *kernel.Mutex
	work   *kernel.Sem
	shared uint32
}

func newDemo(k *kernel.Kernel, msys *mbuf.Registry, ct *cputime.Cputime, cfg DemoConfig, log zerolog.Logger, c *Counters) (*demo, error) {
	period, err := k.MsToTicks(cfg.PeriodMs)
	if err != nil {
		return nil, err
	}
	d := &demo{
		k:      k,
		msys:   msys,
		log:    log.With().Str("component", "demo").Logger(),
		c:      c,
		ct:     ct,
		size:   cfg.PacketSize,
		period: max(period, 1),
		prodQ:  k.NewEventQ(),
		consQ:  k.NewEventQ(),
		mu:     k.NewMutex(),
		work:   k.NewSem(0),
	}
	d.mq = k.NewMqueue(d.drain, nil)
	d.ticker = k.NewCallout(d.prodQ, d.produce, nil)

	itvl := 4 * d.period
	if _, err := k.NewTask("consumer", d.eventLoop, d.consQ, prioConsumer, 0, make([]hal.StackWord, stackWords)); err != nil {
		return nil, err
	}
	if _, err := k.NewTask("producer", d.producer, nil, prioProducer, itvl, make([]hal.StackWord, stackWords)); err != nil {
		return nil, err
	}
	for i := 0; i < cfg.Workers; i++ {
		if _, err := k.NewTask(fmt.Sprintf("worker%d", i), d.worker, nil, prioWorker+uint8(i), itvl, make([]hal.StackWord, stackWords)); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *demo) eventLoop(arg any) {
	q := arg.(*kernel.EventQ)
	for {
		q.Run()
	}
}

func (d *demo) producer(any) {
	_ = d.ticker.Reset(d.period)
	for {
		d.prodQ.Run()
		d.k.CurrentTask().SanityCheckin()
	}
}

// produce runs on every callout expiry.
func (d *demo) produce(*kernel.Event) {
	_ = d.ticker.Reset(d.period)
	_ = d.work.Release()

	m := d.msys.GetPktHdr(d.size, seqHdrLen)
	if m == nil {
		d.c.Dropped.Add(1)
		return
	}
	d.seq++
	hdr := m.UserHdr()
	binary.LittleEndian.PutUint32(hdr, d.seq)
	binary.LittleEndian.PutUint32(hdr[4:], d.stamp())
	if err := m.Append(payload(d.seq, d.size)); err != nil {
		_ = m.FreeChain()
		d.c.Dropped.Add(1)
		return
	}
	if err := d.mq.Put(d.consQ, m); err != nil {
		_ = m.FreeChain()
		d.c.Dropped.Add(1)
		return
	}
	d.c.Sent.Add(1)
}

// drain is the mqueue notification handler.
func (d *demo) drain(*kernel.Event) {
	for m := d.mq.Get(); m != nil; m = d.mq.Get() {
		hdr := m.UserHdr()
		seq := binary.LittleEndian.Uint32(hdr)
		d.latency(binary.LittleEndian.Uint32(hdr[4:]))
		if m.PktLen() != d.size || m.CmpF(0, payload(seq, d.size)) != 0 {
			d.c.Corrupt.Add(1)
			d.log.Warn().Uint32("seq", seq).Int("len", m.PktLen()).Msg("corrupt packet")
		}
		if err := m.FreeChain(); err != nil {
			d.log.Error().Err(err).Msg("free packet")
		}
		d.c.Received.Add(1)
	}
}

func (d *demo) stamp() uint32 {
	if d.ct == nil {
		return 0
	}
	return d.ct.Get32()
}

func (d *demo) latency(sent uint32) {
	if d.ct == nil {
		return
	}
	us := d.ct.TicksToUsecs(d.ct.Get32() - sent)
	for {
		cur := d.c.MaxLatencyUs.Load()
		if us <= cur || d.c.MaxLatencyUs.CompareAndSwap(cur, us) {
			return
		}
	}
}

func (d *demo) worker(any) {
	self := d.k.CurrentTask()
	for {
		if err := d.work.Pend(2 * d.period); err != nil {
			self.SanityCheckin()
			continue
		}
		if err := d.mu.Pend(kernel.TimeoutNever); err != nil {
			d.log.Error().Err(err).Str("task", self.Name()).Msg("mutex pend")
			continue
		}
		d.shared++
		d.k.Delay(1)
		_ = d.mu.Release()
		d.c.Work.Add(1)
		self.SanityCheckin()
	}
}

// payload is the expected content of packet seq.
func payload(seq uint32, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(seq + uint32(i))
	}
	return b
}
