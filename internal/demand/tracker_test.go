package demand

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var itemA = common.HexToAddress("0x00000000000000000000000000000000000A11cE")
var itemB = common.HexToAddress("0x0000000000000000000000000000000000000B0b")

func TestObserveFirstEvent(t *testing.T) {
	tr := NewTracker()

	require.Equal(t, Neutral+1, tr.Observe(itemA, Bought))
	require.Equal(t, Neutral-1, tr.Observe(itemB, Sold))
}

func TestObserveClampsToBounds(t *testing.T) {
	tr := NewTracker()

	for i := 0; i < 20; i++ {
		index := tr.Observe(itemA, Bought)
		require.LessOrEqual(t, index, Max)
	}
	require.Equal(t, Max, tr.Index(itemA))

	for i := 0; i < 40; i++ {
		index := tr.Observe(itemA, Sold)
		require.GreaterOrEqual(t, index, Min)
	}
	require.Equal(t, Min, tr.Index(itemA))
}

func TestObserveMatchesCountsWhileInRange(t *testing.T) {
	// As long as the running index never hits a bound, the value from a
	// fresh tracker is exactly 5 + bought - sold.
	sequences := [][]Kind{
		{Bought, Bought, Sold},
		{Sold, Bought, Sold, Sold},
		{Bought, Sold, Bought, Sold, Bought},
	}

	for _, seq := range sequences {
		tr := NewTracker()
		bought, sold := 0, 0
		for _, kind := range seq {
			index := tr.Observe(itemA, kind)
			if kind == Bought {
				bought++
			} else {
				sold++
			}
			require.Equal(t, Neutral+bought-sold, index)
		}
	}
}

func TestObserveRandomSequenceStaysBounded(t *testing.T) {
	tr := NewTracker()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		kind := Bought
		if rng.Intn(2) == 0 {
			kind = Sold
		}
		index := tr.Observe(itemA, kind)
		require.GreaterOrEqual(t, index, Min)
		require.LessOrEqual(t, index, Max)
	}
}

func TestObserveConcurrentSameItem(t *testing.T) {
	// Concurrent observes must not lose updates: equal bought/sold counts
	// that never leave the bounds cancel out exactly.
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.Observe(itemA, Bought)
		}()
		go func() {
			defer wg.Done()
			tr.Observe(itemA, Sold)
		}()
		wg.Wait()
	}

	// Each pair nets to zero and never reaches a bound, so nothing clamps.
	require.Equal(t, Neutral, tr.Index(itemA))
}

func TestIndexUnseenIsNeutral(t *testing.T) {
	tr := NewTracker()
	require.Equal(t, Neutral, tr.Index(itemA))
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker()
	tr.Observe(itemA, Bought)

	snap := tr.Snapshot()
	snap[itemA] = 0

	require.Equal(t, Neutral+1, tr.Index(itemA))
}
