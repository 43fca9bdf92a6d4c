package trader

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/web3guy0/aitrader/internal/demand"
	"github.com/web3guy0/aitrader/internal/listener"
)

func TestDispatcherPreservesPerItemOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []int64

	d := NewDispatcher(context.Background(), 4, 64, func(_ context.Context, ev listener.Event) {
		mu.Lock()
		seen = append(seen, ev.Qty.Int64())
		mu.Unlock()
	})

	for i := 1; i <= 50; i++ {
		d.Dispatch(listener.Event{Kind: demand.Bought, Item: itemA, Qty: big.NewInt(int64(i))})
	}
	d.Stop()

	require.Len(t, seen, 50)
	for i, qty := range seen {
		require.Equal(t, int64(i+1), qty)
	}
}

func TestDispatcherRoutesSameItemToSameWorker(t *testing.T) {
	d := NewDispatcher(context.Background(), 8, 8, func(context.Context, listener.Event) {})
	defer d.Stop()

	ev := listener.Event{Item: itemA, Qty: big.NewInt(1)}
	first := d.workerIndex(ev)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, d.workerIndex(ev))
	}
}

func TestDispatcherDropsOldestOnOverflow(t *testing.T) {
	block := make(chan struct{})
	var mu sync.Mutex
	var handled []int64

	d := NewDispatcher(context.Background(), 1, 2, func(_ context.Context, ev listener.Event) {
		<-block
		mu.Lock()
		handled = append(handled, ev.Qty.Int64())
		mu.Unlock()
	})

	for i := 1; i <= 10; i++ {
		d.Dispatch(listener.Event{Item: itemA, Qty: big.NewInt(int64(i))})
	}

	require.Greater(t, d.Dropped(), uint64(0))

	close(block)
	d.Stop()

	mu.Lock()
	defer mu.Unlock()
	// Bounded memory: only the queue capacity plus the in-flight event survive.
	require.LessOrEqual(t, len(handled), 3)
	// The newest event always wins a full queue.
	require.Equal(t, int64(10), handled[len(handled)-1])
}

func TestDispatcherDispatchAfterStopDoesNotPanic(t *testing.T) {
	d := NewDispatcher(context.Background(), 2, 8, func(context.Context, listener.Event) {})
	d.Stop()

	require.NotPanics(t, func() {
		d.Dispatch(listener.Event{Item: itemA, Qty: big.NewInt(1)})
	})
	require.Greater(t, d.Dropped(), uint64(0))
}

func TestDispatcherStopRacingDispatchDoesNotPanic(t *testing.T) {
	d := NewDispatcher(context.Background(), 2, 8, func(context.Context, listener.Event) {})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			d.Dispatch(listener.Event{Item: itemA, Qty: big.NewInt(int64(i))})
		}
	}()

	d.Stop()
	<-done
}

func TestDispatcherStopDrainsQueues(t *testing.T) {
	var mu sync.Mutex
	count := 0

	d := NewDispatcher(context.Background(), 2, 32, func(_ context.Context, _ listener.Event) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		count++
		mu.Unlock()
	})

	for i := 0; i < 20; i++ {
		d.Dispatch(listener.Event{Item: itemA, Qty: big.NewInt(int64(i))})
	}
	d.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 20, count)
}
