package pricing

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputePrice(t *testing.T) {
	tests := []struct {
		name         string
		basePrice    int64
		demandFactor int
		supplyFactor int
		want         int64
	}{
		{"reference case", 100, 5, 2, 115}, // 100 × 1.25 × 0.92
		{"neutral factors keep base", 100, 0, 0, 100},
		{"max demand no supply", 100, 10, 0, 150},
		{"max supply pressure", 100, 0, 10, 60},
		{"both maxed", 100, 10, 10, 90}, // 100 × 1.5 × 0.6
		{"floors fractional result", 101, 5, 2, 116}, // 116.15
		{"floor clamps to one", 1, 0, 10, 1},
		{"zero base clamps to one", 0, 10, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePrice(big.NewInt(tt.basePrice), tt.demandFactor, tt.supplyFactor)
			require.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestComputePriceDeterministic(t *testing.T) {
	base := big.NewInt(12345)
	first := ComputePrice(base, 7, 3)
	for i := 0; i < 10; i++ {
		require.Zero(t, first.Cmp(ComputePrice(base, 7, 3)))
	}
}

func TestComputePriceNeverBelowOne(t *testing.T) {
	for _, base := range []int64{0, 1, 2, 10, 1000} {
		for df := 0; df <= 10; df++ {
			for sf := 0; sf <= 10; sf++ {
				got := ComputePrice(big.NewInt(base), df, sf)
				require.GreaterOrEqual(t, got.Int64(), int64(1),
					"base=%d df=%d sf=%d", base, df, sf)
			}
		}
	}
}

func TestComputePriceLargeBase(t *testing.T) {
	// Wei-scale prices must not lose precision.
	base, ok := new(big.Int).SetString("1000000000000000000", 10) // 1e18
	require.True(t, ok)

	got := ComputePrice(base, 5, 2)
	want, _ := new(big.Int).SetString("1150000000000000000", 10)
	require.Zero(t, want.Cmp(got))
}
