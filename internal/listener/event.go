package listener

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/web3guy0/aitrader/internal/demand"
	"github.com/web3guy0/aitrader/internal/ledger"
)

// Event is one decoded ItemBought/ItemSold occurrence.
type Event struct {
	Kind    demand.Kind
	Item    common.Address
	Actor   common.Address // buyer or seller
	Qty     *big.Int
	Block   uint64
	TxIndex uint
}

// TransportError wraps a subscription-level failure. Recoverable:
// the manager drops the connection and reconnects with backoff.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("subscription transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Codec decodes raw contract logs into Events.
type Codec struct {
	abi      abi.ABI
	boughtID common.Hash
	soldID   common.Hash
}

func NewCodec(contractABI abi.ABI) *Codec {
	return &Codec{
		abi:      contractABI,
		boughtID: contractABI.Events[ledger.EventItemBought].ID,
		soldID:   contractABI.Events[ledger.EventItemSold].ID,
	}
}

// Topics returns the filter topics matching both event kinds.
func (c *Codec) Topics() [][]common.Hash {
	return [][]common.Hash{{c.boughtID, c.soldID}}
}

// Decode turns a raw log into an Event. Logs that do not match either
// event signature or carry a malformed payload are rejected, not guessed at.
func (c *Codec) Decode(lg types.Log) (Event, error) {
	if len(lg.Topics) == 0 {
		return Event{}, fmt.Errorf("log without topics")
	}

	var name string
	var kind demand.Kind
	var actorField string
	switch lg.Topics[0] {
	case c.boughtID:
		name, kind, actorField = ledger.EventItemBought, demand.Bought, "buyer"
	case c.soldID:
		name, kind, actorField = ledger.EventItemSold, demand.Sold, "seller"
	default:
		return Event{}, fmt.Errorf("unknown event signature %s", lg.Topics[0].Hex())
	}

	values := make(map[string]interface{})
	if err := c.abi.UnpackIntoMap(values, name, lg.Data); err != nil {
		return Event{}, fmt.Errorf("unpack %s data: %w", name, err)
	}

	var indexed abi.Arguments
	for _, arg := range c.abi.Events[name].Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, lg.Topics[1:]); err != nil {
		return Event{}, fmt.Errorf("parse %s topics: %w", name, err)
	}

	item, ok := values["item"].(common.Address)
	if !ok {
		return Event{}, fmt.Errorf("%s log without item address", name)
	}
	actor, _ := values[actorField].(common.Address)
	qty, ok := values["qty"].(*big.Int)
	if !ok {
		return Event{}, fmt.Errorf("%s log without qty", name)
	}

	return Event{
		Kind:    kind,
		Item:    item,
		Actor:   actor,
		Qty:     qty,
		Block:   lg.BlockNumber,
		TxIndex: lg.TxIndex,
	}, nil
}
