package trafficshaper

import (
	"sort"
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/simerr"
)

// PacketState is an EtfPacket's lifecycle state.
type PacketState int

const (
	Queued PacketState = iota
	PacketReady
	Transmitting
	Completed
	Dropped
)

// EtfPacket is one packet managed by the deadline-ordered scheduler.
type EtfPacket struct {
	ID             uint64
	Size           int
	Priority       int // 0..4
	State          PacketState
	Arrival        time.Duration
	Deadline       time.Duration
	CompletionTime time.Duration

	insertSeq uint64
}

// EtfConfig configures an EtfScheduler.
type EtfConfig struct {
	BandwidthBytesPerSec float64
	MaxQueueDepth        int
}

// EtfScheduler dequeues packets in ascending-deadline order (spec.md §4.3).
// The queued list is kept sorted by deadline at all times (ties broken by
// insertion order, per §5's ordering guarantee); a separate transmission
// list holds packets currently "in flight".
type EtfScheduler struct {
	cfg EtfConfig

	queued       []*EtfPacket // ascending by (deadline, insertSeq)
	transmitting []*EtfPacket

	nextSeq uint64

	queueOverflow uint64
	deadlineMiss  uint64
	completed     uint64
}

func NewEtfScheduler(cfg EtfConfig) *EtfScheduler {
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = 1024
	}
	return &EtfScheduler{cfg: cfg}
}

// Enqueue inserts pkt at the position that keeps the queue ascending by
// deadline. If the queue is at MaxQueueDepth, pkt is dropped instead and the
// overflow counter increments.
func (s *EtfScheduler) Enqueue(pkt *EtfPacket) error {
	if len(s.queued) >= s.cfg.MaxQueueDepth {
		s.queueOverflow++
		pkt.State = Dropped
		return simerr.New(simerr.CapacityExceeded, "trafficshaper.etf", "Enqueue", nil)
	}
	pkt.insertSeq = s.nextSeq
	s.nextSeq++
	pkt.State = Queued

	idx := sort.Search(len(s.queued), func(i int) bool {
		return s.queued[i].Deadline > pkt.Deadline
	})
	s.queued = append(s.queued, nil)
	copy(s.queued[idx+1:], s.queued[idx:])
	s.queued[idx] = pkt
	return nil
}

// Dequeue pops the head (earliest-deadline) packet. If it has already
// passed its deadline, it is marked Dropped and counted as a deadline-miss
// instead of being transmitted.
func (s *EtfScheduler) Dequeue(now time.Duration) *EtfPacket {
	if len(s.queued) == 0 {
		return nil
	}
	pkt := s.queued[0]
	s.queued = s.queued[1:]

	if now > pkt.Deadline {
		pkt.State = Dropped
		s.deadlineMiss++
		return pkt
	}

	pkt.State = Transmitting
	txTime := s.transmissionTime(pkt)
	pkt.CompletionTime = now + txTime
	s.transmitting = append(s.transmitting, pkt)
	return pkt
}

func (s *EtfScheduler) transmissionTime(pkt *EtfPacket) time.Duration {
	if s.cfg.BandwidthBytesPerSec <= 0 {
		return 0
	}
	seconds := float64(pkt.Size) / s.cfg.BandwidthBytesPerSec
	return time.Duration(seconds * float64(time.Second))
}

// UpdateSchedulerTime walks the transmission list, marking Completed any
// packet whose CompletionTime has elapsed.
func (s *EtfScheduler) UpdateSchedulerTime(now time.Duration) {
	remaining := s.transmitting[:0]
	for _, pkt := range s.transmitting {
		if pkt.CompletionTime <= now {
			pkt.State = Completed
			s.completed++
		} else {
			remaining = append(remaining, pkt)
		}
	}
	s.transmitting = remaining
}

// EtfStats is a snapshot of queue counters.
type EtfStats struct {
	QueueLen      int
	Transmitting  int
	QueueOverflow uint64
	DeadlineMiss  uint64
	Completed     uint64
}

func (s *EtfScheduler) Snapshot() EtfStats {
	return EtfStats{
		QueueLen:      len(s.queued),
		Transmitting:  len(s.transmitting),
		QueueOverflow: s.queueOverflow,
		DeadlineMiss:  s.deadlineMiss,
		Completed:     s.completed,
	}
}
