package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DETERMINISTIC PRICING FORMULA
// ═══════════════════════════════════════════════════════════════════════════════
//
// newPrice = max(1, floor(basePrice × (1 + demandFactor×0.05) × (1 − supplyFactor×0.04)))
//
// The weights are part of the contract with the rest of the economy and
// must not drift: 5% per demand point, 4% per supply-pressure point.
//
// ═══════════════════════════════════════════════════════════════════════════════

var (
	demandWeight = decimal.New(5, -2) // 0.05
	supplyWeight = decimal.New(4, -2) // 0.04
	one          = decimal.NewFromInt(1)
)

// ComputePrice applies the deterministic formula. demandFactor raises the
// price, supplyFactor presses it down (higher supply pressure, lower price).
func ComputePrice(basePrice *big.Int, demandFactor, supplyFactor int) *big.Int {
	base := decimal.NewFromBigInt(basePrice, 0)

	demandAdj := one.Add(decimal.NewFromInt(int64(demandFactor)).Mul(demandWeight))
	supplyAdj := one.Sub(decimal.NewFromInt(int64(supplyFactor)).Mul(supplyWeight))

	price := base.Mul(demandAdj).Mul(supplyAdj).Floor()
	if price.LessThan(one) {
		return big.NewInt(1)
	}
	return price.BigInt()
}
