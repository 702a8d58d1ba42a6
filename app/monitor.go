package app

import (
	"fmt"

	"nkern/hal"
	"nkern/kernel"
	"nkern/kernel/mbuf"
	"nkern/kernel/mempool"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

// Snapshot is one sample of the running system taken by the monitor task.
type Snapshot struct {
	Now      kernel.Time
	Tasks    []kernel.TaskInfo
	Pools    []mempool.Info
	Sent     uint32
	Received uint32
	Dropped  uint32
}

// monitor samples the kernel once per second, draws the sample on a
// terminal and hands it to the host side reporter.
type monitor struct {
	k     *kernel.Kernel
	msys  *mbuf.Registry
	c     *Counters
	out   chan<- Snapshot
	fb    hal.Framebuffer
	term  *tinyterm.Terminal
	every kernel.Time
}

func newMonitor(k *kernel.Kernel, msys *mbuf.Registry, c *Counters, disp hal.Display, out chan<- Snapshot) (*monitor, error) {
	every, err := k.MsToTicks(1000)
	if err != nil {
		return nil, err
	}
	m := &monitor{k: k, msys: msys, c: c, out: out, every: max(every, 1)}
	if disp != nil {
		m.fb = disp.Framebuffer()
	}
	if _, err := k.NewTask("monitor", m.run, nil, prioMonitor, 0, make([]hal.StackWord, stackWords)); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *monitor) run(any) {
	if m.fb != nil {
		m.fb.ClearRGB(0, 0, 0)
		m.term = tinyterm.NewTerminal(newScreen(m.fb))
		m.term.Configure(&tinyterm.Config{
			Font:              &proggy.TinySZ8pt7b,
			FontHeight:        10,
			FontOffset:        6,
			UseSoftwareScroll: true,
		})
	}
	for {
		m.k.Delay(m.every)
		s := m.sample()
		if m.term != nil {
			m.draw(s)
		}
		select {
		case m.out <- s:
		default:
		}
	}
}

func (m *monitor) sample() Snapshot {
	s := Snapshot{
		Now:      m.k.Now(),
		Tasks:    m.k.Tasks(),
		Sent:     m.c.Sent.Load(),
		Received: m.c.Received.Load(),
		Dropped:  m.c.Dropped.Load(),
	}
	for _, p := range m.msys.Pools() {
		s.Pools = append(s.Pools, p.Mempool().Info())
	}
	return s
}

func (m *monitor) draw(s Snapshot) {
	m.fb.ClearRGB(0, 0, 0)
	// restart at the top left
	m.term.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        10,
		FontOffset:        6,
		UseSoftwareScroll: true,
	})
	fmt.Fprintf(m.term, "t=%d pkts sent=%d recv=%d drop=%d\n", s.Now, s.Sent, s.Received, s.Dropped)
	fmt.Fprintf(m.term, "%-9s %3s %4s %5s %6s %5s\n", "task", "pri", "st", "stack", "csw", "run")
	for _, t := range s.Tasks {
		fmt.Fprintf(m.term, "%-9s %3d %4s %2d/%-3d %6d %5d\n",
			t.Name, t.Prio, t.State, t.StackUsage, t.StackSize, t.CtxSwitches, t.RunTime)
	}
	for _, p := range s.Pools {
		fmt.Fprintf(m.term, "\x1b[33m%-9s %4d/%-4d min %d\x1b[0m\n", p.Name, p.NumFree, p.NumBlocks, p.MinFree)
	}
	m.term.Display()
}
