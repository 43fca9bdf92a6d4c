package trader

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/aitrader/internal/listener"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DISPATCHER - Decouples cheap ingestion from slow handling
// ═══════════════════════════════════════════════════════════════════════════════
//
// The subscription transport must never stall behind an advisor call or a
// pending transaction, so Dispatch only enqueues. Events are routed to a
// fixed worker by item address, which keeps all events for one item on one
// goroutine: same-item cycles run in arrival order and never overlap, while
// distinct items reprice in parallel.
//
// Queues are bounded. On overflow the oldest queued event for that worker
// is dropped: a lost event costs one demand tick, the same accepted
// staleness as an event missed during a reconnect.
//
// ═══════════════════════════════════════════════════════════════════════════════

type Dispatcher struct {
	queues  []chan listener.Event
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// Guards closed so Dispatch from the subscription goroutine cannot
	// race a shutdown onto closed queues.
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// NewDispatcher starts workers goroutines, each draining its own queue
// into handle. Stop must be called to drain and join them.
func NewDispatcher(ctx context.Context, workers, queueSize int, handle func(context.Context, listener.Event)) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	d := &Dispatcher{queues: make([]chan listener.Event, workers)}
	for i := range d.queues {
		queue := make(chan listener.Event, queueSize)
		d.queues[i] = queue

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for ev := range queue {
				if ctx.Err() != nil {
					continue
				}
				handle(ctx, ev)
			}
		}()
	}

	log.Debug().Int("workers", workers).Int("queue_size", queueSize).Msg("Dispatcher started")
	return d
}

// Dispatch enqueues one event without blocking. Events arriving after
// Stop are dropped.
func (d *Dispatcher) Dispatch(ev listener.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}

	queue := d.queues[d.workerIndex(ev)]

	select {
	case queue <- ev:
		return
	default:
	}

	// Queue full: evict the oldest entry to make room.
	select {
	case old := <-queue:
		d.dropped.Add(1)
		log.Warn().
			Str("item", old.Item.Hex()).
			Uint64("dropped_total", d.dropped.Load()).
			Msg("Queue overflow, dropped oldest event")
	default:
	}

	select {
	case queue <- ev:
	default:
		d.dropped.Add(1)
	}
}

// Dropped returns how many events were lost to overflow.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Stop closes the queues and waits for in-flight cycles to finish.
// Dispatch calls racing or following Stop become drops, never panics.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, queue := range d.queues {
			close(queue)
		}
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) workerIndex(ev listener.Event) int {
	h := fnv.New32a()
	h.Write(ev.Item.Bytes())
	return int(h.Sum32() % uint32(len(d.queues)))
}
