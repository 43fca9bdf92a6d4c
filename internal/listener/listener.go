package listener

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EVENT SUBSCRIPTION MANAGER
// ═══════════════════════════════════════════════════════════════════════════════
//
// Keeps a live subscription to ItemBought/ItemSold logs through transport
// failures. On any failure the broken connection is discarded and a new one
// established after an exponential backoff, starting again from the current
// ledger head. Events missed during an outage are not replayed: a missed
// event only leaves the demand signal temporarily stale.
//
// Two transport strategies behind one interface: a streaming subscription
// over websocket RPC, and a fixed-interval log poll for HTTP-only nodes.
//
// ═══════════════════════════════════════════════════════════════════════════════

// A run that survives this long counts as a healthy connection and
// resets the backoff sequence.
const healthyRunThreshold = 30 * time.Second

// Handler consumes one decoded event. It runs on the transport's delivery
// goroutine, so it must hand slow work off rather than block ingestion.
type Handler func(Event)

// Transport establishes one connection and delivers events until it fails
// or ctx is done. Returning nil means a clean shutdown.
type Transport interface {
	Name() string
	Run(ctx context.Context, deliver Handler) error
}

// Manager runs a transport forever, reconnecting on failure.
type Manager struct {
	transport Transport
}

func NewManager(transport Transport) *Manager {
	return &Manager{transport: transport}
}

// Subscribe blocks, delivering events to handler until ctx is cancelled.
// Per-connection failures are logged and retried, never escalated.
func (m *Manager) Subscribe(ctx context.Context, handler Handler) {
	retries := 0

	for {
		start := time.Now()
		err := m.transport.Run(ctx, handler)

		if ctx.Err() != nil {
			log.Info().Str("transport", m.transport.Name()).Msg("Subscription stopped")
			return
		}

		var delay time.Duration
		retries, delay = nextRetry(retries, time.Since(start))

		log.Error().
			Err(err).
			Str("transport", m.transport.Name()).
			Dur("retry_in", delay).
			Msg("Subscription lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// nextRetry advances the reconnect schedule. A run that survived long
// enough to count as healthy restarts the backoff sequence.
func nextRetry(retries int, runDuration time.Duration) (int, time.Duration) {
	if runDuration > healthyRunThreshold {
		retries = 0
	}
	return retries + 1, Backoff(retries)
}

// ───────────────────────────────────────────────────────────────────────────────
// Websocket transport
// ───────────────────────────────────────────────────────────────────────────────

type WSTransport struct {
	url      string
	contract common.Address
	codec    *Codec
}

func NewWSTransport(url string, contractABI abi.ABI, contract common.Address) *WSTransport {
	return &WSTransport{url: url, contract: contract, codec: NewCodec(contractABI)}
}

func (t *WSTransport) Name() string { return "websocket" }

func (t *WSTransport) Run(ctx context.Context, deliver Handler) error {
	client, err := ethclient.DialContext(ctx, t.url)
	if err != nil {
		return &TransportError{Op: "dial", Err: err}
	}
	defer client.Close()

	logs := make(chan types.Log, 128)
	sub, err := client.SubscribeFilterLogs(ctx, t.query(), logs)
	if err != nil {
		return &TransportError{Op: "subscribe", Err: err}
	}
	defer sub.Unsubscribe()

	log.Info().Str("url", t.url).Msg("📡 Subscribed to ledger events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return &TransportError{Op: "stream", Err: err}
		case lg := <-logs:
			if lg.Removed {
				continue
			}
			ev, err := t.codec.Decode(lg)
			if err != nil {
				log.Warn().Err(err).Uint64("block", lg.BlockNumber).Msg("Skipping undecodable log")
				continue
			}
			deliver(ev)
		}
	}
}

func (t *WSTransport) query() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{t.contract},
		Topics:    t.codec.Topics(),
	}
}

// ───────────────────────────────────────────────────────────────────────────────
// Polling transport
// ───────────────────────────────────────────────────────────────────────────────

type PollTransport struct {
	url      string
	contract common.Address
	codec    *Codec
	interval time.Duration
}

func NewPollTransport(url string, contractABI abi.ABI, contract common.Address, interval time.Duration) *PollTransport {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &PollTransport{url: url, contract: contract, codec: NewCodec(contractABI), interval: interval}
}

func (t *PollTransport) Name() string { return "poll" }

func (t *PollTransport) Run(ctx context.Context, deliver Handler) error {
	client, err := ethclient.DialContext(ctx, t.url)
	if err != nil {
		return &TransportError{Op: "dial", Err: err}
	}
	defer client.Close()

	// Start from the current head; blocks before the connection are history.
	lastSeen, err := client.BlockNumber(ctx)
	if err != nil {
		return &TransportError{Op: "head", Err: err}
	}

	log.Info().Str("url", t.url).Uint64("from_block", lastSeen).Dur("interval", t.interval).Msg("📡 Polling ledger events")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		head, err := client.BlockNumber(ctx)
		if err != nil {
			return &TransportError{Op: "head", Err: err}
		}
		if head <= lastSeen {
			continue
		}

		query := ethereum.FilterQuery{
			Addresses: []common.Address{t.contract},
			Topics:    t.codec.Topics(),
			FromBlock: new(big.Int).SetUint64(lastSeen + 1),
			ToBlock:   new(big.Int).SetUint64(head),
		}
		entries, err := client.FilterLogs(ctx, query)
		if err != nil {
			return &TransportError{Op: "filter", Err: err}
		}

		for _, lg := range entries {
			if lg.Removed {
				continue
			}
			ev, err := t.codec.Decode(lg)
			if err != nil {
				log.Warn().Err(err).Uint64("block", lg.BlockNumber).Msg("Skipping undecodable log")
				continue
			}
			deliver(ev)
		}

		lastSeen = head
	}
}
