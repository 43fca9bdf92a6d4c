package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// LEDGER GATEWAY - Contract reads and signed price updates
// ═══════════════════════════════════════════════════════════════════════════════
//
// Wraps call access (getPrice/getInventory) and the updatePrice write path
// for a single AITrader contract. Owns the signing identity and its nonce
// sequence: writes are serialized behind a mutex, one in-flight transaction
// at a time, nonce fetched fresh right before building each transaction.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	updateGasLimit  = 200_000
	receiptInterval = 1 * time.Second
)

// Backend is the subset of ethclient.Client the gateway needs.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// State is the ledger-owned view of one item.
type State struct {
	Price     *big.Int
	Inventory *big.Int
}

type Gateway struct {
	backend  Backend
	abi      abi.ABI
	contract common.Address

	key  *ecdsa.PrivateKey
	from common.Address

	chainID *big.Int
	dryRun  bool

	// Single-writer discipline for the shared nonce sequence.
	writeMu sync.Mutex
}

// New creates a gateway. keyHex may be empty for read-only use
// (the listen mode never writes).
func New(backend Backend, contractABI abi.ABI, contract common.Address, keyHex string, chainID *big.Int, dryRun bool) (*Gateway, error) {
	g := &Gateway{
		backend:  backend,
		abi:      contractABI,
		contract: contract,
		chainID:  chainID,
		dryRun:   dryRun,
	}

	if keyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		g.key = key
		g.from = crypto.PubkeyToAddress(key.PublicKey)
		log.Info().Str("address", g.from.Hex()).Bool("dry_run", dryRun).Msg("🔑 Signing identity loaded")
	}

	return g, nil
}

// Signer returns the signing identity address, zero if read-only.
func (g *Gateway) Signer() common.Address { return g.from }

// Read fetches the current price and inventory for an item.
func (g *Gateway) Read(ctx context.Context, item common.Address) (State, error) {
	price, err := g.callUint(ctx, MethodGetPrice, item)
	if err != nil {
		return State{}, &ReadError{Item: item, Err: err}
	}
	inventory, err := g.callUint(ctx, MethodGetInventory, item)
	if err != nil {
		return State{}, &ReadError{Item: item, Err: err}
	}
	return State{Price: price, Inventory: inventory}, nil
}

// Write submits updatePrice(item, newPrice) from the signing identity and
// blocks until the transaction is mined. A reverted transaction is a
// WriteError; the gateway never resubmits on its own.
func (g *Gateway) Write(ctx context.Context, item common.Address, newPrice *big.Int) (*types.Receipt, error) {
	if g.key == nil {
		return nil, &WriteError{Item: item, Err: errors.New("no signing key configured")}
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	data, err := g.abi.Pack(MethodUpdatePrice, item, newPrice)
	if err != nil {
		return nil, &WriteError{Item: item, Err: fmt.Errorf("pack updatePrice: %w", err)}
	}

	if g.dryRun {
		log.Info().
			Str("item", item.Hex()).
			Str("new_price", newPrice.String()).
			Msg("📝 DRY RUN: updatePrice would be submitted")
		return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
	}

	nonce, err := g.backend.PendingNonceAt(ctx, g.from)
	if err != nil {
		return nil, &WriteError{Item: item, Err: fmt.Errorf("fetch nonce: %w", err)}
	}
	gasPrice, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &WriteError{Item: item, Err: fmt.Errorf("suggest gas price: %w", err)}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &g.contract,
		Value:    big.NewInt(0),
		Gas:      updateGasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(g.chainID), g.key)
	if err != nil {
		return nil, &WriteError{Item: item, Err: fmt.Errorf("sign transaction: %w", err)}
	}

	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		return nil, &WriteError{Item: item, Err: fmt.Errorf("submit transaction: %w", err)}
	}

	log.Debug().
		Str("item", item.Hex()).
		Str("tx", signed.Hash().Hex()).
		Uint64("nonce", nonce).
		Msg("Price update submitted")

	receipt, err := g.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, &WriteError{Item: item, Err: err}
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, &WriteError{Item: item, Err: fmt.Errorf("transaction %s reverted", signed.Hash().Hex())}
	}

	log.Info().
		Str("item", item.Hex()).
		Str("new_price", newPrice.String()).
		Str("tx", signed.Hash().Hex()).
		Msg("✅ Price update mined")

	return receipt, nil
}

func (g *Gateway) callUint(ctx context.Context, method string, item common.Address) (*big.Int, error) {
	data, err := g.abi.Pack(method, item)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := g.backend.CallContract(ctx, ethereum.CallMsg{To: &g.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := g.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s output arity %d", method, len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", method, values[0])
	}
	return value, nil
}

func (g *Gateway) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			log.Debug().Err(err).Str("tx", txHash.Hex()).Msg("Receipt lookup failed, retrying")
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for receipt %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
