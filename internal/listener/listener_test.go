package listener

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/aitrader/internal/demand"
)

// flakyTransport fails its first run, then delivers one event and holds
// the connection open until ctx is cancelled.
type flakyTransport struct {
	mu   sync.Mutex
	runs int
}

func (t *flakyTransport) Name() string { return "flaky" }

func (t *flakyTransport) Run(ctx context.Context, deliver Handler) error {
	t.mu.Lock()
	run := t.runs
	t.runs++
	t.mu.Unlock()

	if run == 0 {
		return &TransportError{Op: "stream", Err: errors.New("connection reset")}
	}

	deliver(Event{
		Kind: demand.Bought,
		Item: common.HexToAddress("0x00000000000000000000000000000000000A11cE"),
		Qty:  big.NewInt(1),
	})
	<-ctx.Done()
	return nil
}

func TestSubscribeResumesAfterTransportFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := &flakyTransport{}
	events := make(chan Event, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewManager(transport).Subscribe(ctx, func(ev Event) { events <- ev })
	}()

	select {
	case ev := <-events:
		require.Equal(t, demand.Bought, ev.Kind)
	case <-time.After(10 * time.Second):
		t.Fatal("no event delivered after reconnect")
	}

	transport.mu.Lock()
	require.Equal(t, 2, transport.runs)
	transport.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subscribe did not stop on cancel")
	}
}

func TestNextRetryBacksOffAndResetsAfterHealthyRun(t *testing.T) {
	retries, delay := nextRetry(0, time.Second)
	require.Equal(t, 1, retries)
	require.Equal(t, 1*time.Second, delay)

	retries, delay = nextRetry(retries, time.Second)
	require.Equal(t, 2, retries)
	require.Equal(t, 2*time.Second, delay)

	retries, delay = nextRetry(retries, time.Second)
	require.Equal(t, 3, retries)
	require.Equal(t, 4*time.Second, delay)

	// A connection that held for a while restarts the sequence.
	retries, delay = nextRetry(retries, healthyRunThreshold+time.Second)
	require.Equal(t, 1, retries)
	require.Equal(t, 1*time.Second, delay)
}
