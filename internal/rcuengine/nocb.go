package rcuengine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/collab"
)

// MaxNocbWorkers bounds the worker pool size.
const MaxNocbWorkers = 4

// NocbBatchSize is the maximum callbacks a single worker pass drains across
// all enabled CPUs combined.
const NocbBatchSize = 32

// NocbIdleSleep is how long a worker sleeps after finding no work.
const NocbIdleSleep = 100 * time.Microsecond

// cpuQueue is a per-CPU callback queue a NocbWorker may drain. NocbWorkers
// hold only a non-owning reference to these; the engine owns them.
type cpuQueue struct {
	mu      sync.Mutex
	enabled bool
	items   []*Callback
}

func (q *cpuQueue) pop() *Callback {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.enabled || len(q.items) == 0 {
		return nil
	}
	cb := q.items[0]
	q.items = q.items[1:]
	return cb
}

func (q *cpuQueue) push(cb *Callback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, cb)
}

// NocbWorker drains callbacks from nocb_enabled per-CPU queues in batches of
// <= NocbBatchSize, round-robining across them (spec.md §4.2).
type NocbWorker struct {
	ID        int
	Processed atomic.Uint64
	Busy      atomic.Int64 // nanoseconds spent executing callbacks, written by run()
}

// nocbPool is the fixed pool of up to MaxNocbWorkers workers sharing a
// single clock/logger, each round-robining across the same non-owning slice
// of per-CPU queues.
type nocbPool struct {
	workers []*NocbWorker
	queues  []*cpuQueue // non-owning: engine.go owns the backing queues
	clock   collab.Clock
	logger  *collab.Logger
	stopCh  chan struct{}
	wg      *sync.WaitGroup
}

func newNocbPool(n int, queues []*cpuQueue, clock collab.Clock, logger *collab.Logger) *nocbPool {
	if n > MaxNocbWorkers {
		n = MaxNocbWorkers
	}
	if n < 1 {
		n = 1
	}
	p := &nocbPool{queues: queues, clock: clock, logger: logger.With("nocb")}
	for i := 0; i < n; i++ {
		p.workers = append(p.workers, &NocbWorker{ID: i})
	}
	return p
}

func (p *nocbPool) start(stopCh chan struct{}, wg *sync.WaitGroup) {
	p.stopCh = stopCh
	p.wg = wg
	for _, w := range p.workers {
		wg.Add(1)
		go p.run(w)
	}
}

// run implements one NocbWorker's loop: build a batch of <= NocbBatchSize by
// popping one callback from each enabled CPU in sequence, execute outside
// all locks, then sleep if nothing was found.
func (p *nocbPool) run(w *NocbWorker) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		var batch []*Callback
		for _, q := range p.queues {
			if len(batch) >= NocbBatchSize {
				break
			}
			if cb := q.pop(); cb != nil {
				batch = append(batch, cb)
			}
		}

		if len(batch) == 0 {
			p.clock.Sleep(NocbIdleSleep)
			continue
		}

		start := p.clock.NowMonotonic()
		for _, cb := range batch {
			cb.State = CBProcessing
			runCallbackSafely(cb)
			cb.State = CBDone
		}
		w.Busy.Add(int64(p.clock.NowMonotonic() - start))
		w.Processed.Add(uint64(len(batch)))
	}
}
