package trader

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/aitrader/internal/demand"
	"github.com/web3guy0/aitrader/internal/ledger"
	"github.com/web3guy0/aitrader/internal/listener"
	"github.com/web3guy0/aitrader/internal/pricing"
)

// ═══════════════════════════════════════════════════════════════════════════════
// REPRICING ORCHESTRATOR
// ═══════════════════════════════════════════════════════════════════════════════
//
// One event drives one cycle:
//
//   event → demand update → ledger read → oracle suggestion → conditional write
//
// Every stage can fail; a failed stage abandons the cycle with a log line
// and hands control back for the next event. Nothing here ever takes the
// subscription down.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Gateway is the ledger surface the orchestrator drives.
type Gateway interface {
	Read(ctx context.Context, item common.Address) (ledger.State, error)
	Write(ctx context.Context, item common.Address, newPrice *big.Int) (*types.Receipt, error)
}

// Suggester produces a candidate price, or an error meaning "leave it alone".
type Suggester interface {
	Suggest(ctx context.Context, req pricing.Request) (*big.Int, error)
}

// Notifier is told about applied repricings.
type Notifier interface {
	NotifyReprice(item common.Address, oldPrice, newPrice *big.Int)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) NotifyReprice(common.Address, *big.Int, *big.Int) {}

// NameResolver maps an item address to a display name for advisor prompts.
// Ledger-facing paths always key by address; the name is cosmetic.
type NameResolver func(common.Address) string

type Trader struct {
	gateway  Gateway
	oracle   Suggester
	tracker  *demand.Tracker
	notifier Notifier
	itemName NameResolver

	readTimeout  time.Duration
	writeTimeout time.Duration
}

func New(gateway Gateway, oracle Suggester, tracker *demand.Tracker) *Trader {
	return &Trader{
		gateway:      gateway,
		oracle:       oracle,
		tracker:      tracker,
		notifier:     NopNotifier{},
		itemName:     func(item common.Address) string { return item.Hex() },
		readTimeout:  10 * time.Second,
		writeTimeout: 3 * time.Minute,
	}
}

// SetNotifier replaces the no-op notifier.
func (t *Trader) SetNotifier(n Notifier) {
	if n != nil {
		t.notifier = n
	}
}

// SetNameResolver replaces the default hex-address resolver.
func (t *Trader) SetNameResolver(r NameResolver) {
	if r != nil {
		t.itemName = r
	}
}

// HandleEvent runs one full repricing cycle for one event. Events for the
// same item must be handed to the same dispatcher worker so cycles for one
// item never interleave.
func (t *Trader) HandleEvent(ctx context.Context, ev listener.Event) {
	index := t.tracker.Observe(ev.Item, ev.Kind)

	log.Info().
		Str("item", ev.Item.Hex()).
		Str("kind", ev.Kind.String()).
		Str("qty", ev.Qty.String()).
		Int("demand_index", index).
		Msg("🔔 Market event")

	rctx, cancel := context.WithTimeout(ctx, t.readTimeout)
	state, err := t.gateway.Read(rctx, ev.Item)
	cancel()
	if err != nil {
		log.Error().Err(err).
			Str("item", ev.Item.Hex()).
			Str("kind", ev.Kind.String()).
			Str("stage", "read").
			Msg("Cycle abandoned")
		return
	}

	// The update/loop modes build a formula-only trader without an
	// advisor; events reaching it still feed the demand signal above.
	if t.oracle == nil {
		log.Warn().
			Str("item", ev.Item.Hex()).
			Str("stage", "oracle").
			Msg("No advisor configured, price unchanged")
		return
	}

	proposed, err := t.oracle.Suggest(ctx, pricing.Request{
		ItemName:    t.itemName(ev.Item),
		BasePrice:   state.Price,
		DemandIndex: index,
		Supply:      state.Inventory,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("item", ev.Item.Hex()).
			Str("kind", ev.Kind.String()).
			Str("stage", "oracle").
			Msg("No suggestion, price unchanged")
		return
	}

	if proposed.Cmp(state.Price) == 0 {
		log.Debug().
			Str("item", ev.Item.Hex()).
			Str("price", state.Price.String()).
			Msg("Proposed price equals current, skipping write")
		return
	}

	wctx, cancel := context.WithTimeout(ctx, t.writeTimeout)
	_, err = t.gateway.Write(wctx, ev.Item, proposed)
	cancel()
	if err != nil {
		log.Error().Err(err).
			Str("item", ev.Item.Hex()).
			Str("kind", ev.Kind.String()).
			Str("stage", "write").
			Msg("Cycle abandoned")
		return
	}

	log.Info().
		Str("item", ev.Item.Hex()).
		Str("old_price", state.Price.String()).
		Str("new_price", proposed.String()).
		Msg("💰 Price updated")

	t.notifier.NotifyReprice(ev.Item, state.Price, proposed)
}

// RepriceAll runs one deterministic repricing pass over the given items.
// Used by the update and loop CLI modes: no advisor involved, the formula
// is applied with the tracked demand index and an inventory-derived
// supply-pressure factor.
func (t *Trader) RepriceAll(ctx context.Context, items []common.Address) {
	for _, item := range items {
		rctx, cancel := context.WithTimeout(ctx, t.readTimeout)
		state, err := t.gateway.Read(rctx, item)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("item", item.Hex()).Str("stage", "read").Msg("Reprice pass skipped item")
			continue
		}

		proposed := pricing.ComputePrice(state.Price, t.tracker.Index(item), supplyFactor(state.Inventory))
		if proposed.Cmp(state.Price) == 0 {
			log.Debug().Str("item", item.Hex()).Str("price", state.Price.String()).Msg("No price change")
			continue
		}

		wctx, cancel := context.WithTimeout(ctx, t.writeTimeout)
		_, err = t.gateway.Write(wctx, item, proposed)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("item", item.Hex()).Str("stage", "write").Msg("Reprice pass skipped item")
			continue
		}

		log.Info().
			Str("item", item.Hex()).
			Str("old_price", state.Price.String()).
			Str("new_price", proposed.String()).
			Msg("💰 Price updated")

		t.notifier.NotifyReprice(item, state.Price, proposed)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// supplyFactor maps on-chain inventory onto the formula's [0,10] range.
func supplyFactor(inventory *big.Int) int {
	if inventory == nil || inventory.Sign() < 1 {
		return 0
	}
	if inventory.Cmp(big.NewInt(demand.Max)) >= 0 {
		return demand.Max
	}
	return int(inventory.Int64())
}
