package listener

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/aitrader/internal/demand"
	"github.com/web3guy0/aitrader/internal/ledger"
)

var (
	buyer  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	seller = common.HexToAddress("0x2222222222222222222222222222222222222222")
	item   = common.HexToAddress("0x00000000000000000000000000000000000A11cE")
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	contractABI, err := ledger.LoadABI("../../abi/AITrader.json")
	require.NoError(t, err)
	return NewCodec(contractABI)
}

func eventLog(c *Codec, sig common.Hash, actor common.Address, qty int64, block uint64) types.Log {
	return types.Log{
		Topics: []common.Hash{
			sig,
			common.BytesToHash(actor.Bytes()),
			common.BytesToHash(item.Bytes()),
		},
		Data:        common.LeftPadBytes(big.NewInt(qty).Bytes(), 32),
		BlockNumber: block,
		TxIndex:     3,
	}
}

func TestDecodeItemBought(t *testing.T) {
	c := testCodec(t)

	ev, err := c.Decode(eventLog(c, c.boughtID, buyer, 2, 100))
	require.NoError(t, err)
	require.Equal(t, demand.Bought, ev.Kind)
	require.Equal(t, item, ev.Item)
	require.Equal(t, buyer, ev.Actor)
	require.Equal(t, int64(2), ev.Qty.Int64())
	require.Equal(t, uint64(100), ev.Block)
}

func TestDecodeItemSold(t *testing.T) {
	c := testCodec(t)

	ev, err := c.Decode(eventLog(c, c.soldID, seller, 7, 200))
	require.NoError(t, err)
	require.Equal(t, demand.Sold, ev.Kind)
	require.Equal(t, item, ev.Item)
	require.Equal(t, seller, ev.Actor)
	require.Equal(t, int64(7), ev.Qty.Int64())
}

func TestDecodeRejectsUnknownSignature(t *testing.T) {
	c := testCodec(t)

	lg := eventLog(c, common.HexToHash("0xdead"), buyer, 1, 1)
	_, err := c.Decode(lg)
	require.Error(t, err)
}

func TestDecodeRejectsEmptyLog(t *testing.T) {
	c := testCodec(t)

	_, err := c.Decode(types.Log{})
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedData(t *testing.T) {
	c := testCodec(t)

	lg := eventLog(c, c.boughtID, buyer, 2, 100)
	lg.Data = lg.Data[:8]
	_, err := c.Decode(lg)
	require.Error(t, err)
}

func TestTopicsCoverBothEvents(t *testing.T) {
	c := testCodec(t)

	topics := c.Topics()
	require.Len(t, topics, 1)
	require.Contains(t, topics[0], c.boughtID)
	require.Contains(t, topics[0], c.soldID)
}
