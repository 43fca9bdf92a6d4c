package demand

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Demand index bounds. A fresh item starts neutral.
const (
	Min     = 0
	Max     = 10
	Neutral = 5
)

// Kind is the direction of a market event.
type Kind int

const (
	Bought Kind = iota
	Sold
)

func (k Kind) String() string {
	if k == Bought {
		return "bought"
	}
	return "sold"
}

// Tracker keeps a bounded in-memory demand index per item. The state is
// deliberately not persisted: after a restart every item starts neutral
// again, which is a stale signal but never a corrupt one.
type Tracker struct {
	mu      sync.Mutex
	signals map[common.Address]int
}

func NewTracker() *Tracker {
	return &Tracker{signals: make(map[common.Address]int)}
}

// Observe applies one event to the item's demand index and returns the
// resulting value. The read-modify-write is one critical section so
// concurrent events for the same item never lose an update.
func (t *Tracker) Observe(item common.Address, kind Kind) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	index, ok := t.signals[item]
	if !ok {
		index = Neutral
	}

	if kind == Bought {
		index++
	} else {
		index--
	}

	if index < Min {
		index = Min
	} else if index > Max {
		index = Max
	}

	t.signals[item] = index
	return index
}

// Index returns the current demand index for an item, Neutral if unseen.
func (t *Tracker) Index(item common.Address) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index, ok := t.signals[item]; ok {
		return index
	}
	return Neutral
}

// Snapshot returns a copy of all tracked signals.
func (t *Tracker) Snapshot() map[common.Address]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[common.Address]int, len(t.signals))
	for item, index := range t.signals {
		out[item] = index
	}
	return out
}
