// Package dex decodes liquidity-pool accounts from three independently
// schemaed pool families and derives a normalized price from each. Prices
// are integers scaled by 10^6. A price of 0 is a sentinel meaning "no price
// currently derivable" (zero reserves, zero bin step, zero sqrt price) and
// is distinct from a decode error.
package dex

import (
	"math"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// PriceScale is the fixed-point scale of every derived price: 1.0 == 1e6.
const PriceScale = 1_000_000

// Family identifies the pool account schema a quote came from.
type Family string

const (
	FamilyConstantProduct Family = "constant-product"
	FamilyConcentrated    Family = "concentrated-liquidity"
	FamilyBin             Family = "discretized-bin"
)

// PriceQuote is the normalized output of every pool family.
type PriceQuote struct {
	Family    Family
	BaseMint  solana.PublicKey
	QuoteMint solana.PublicKey
	Price     uint64
}

var (
	priceScaleBig = big.NewInt(PriceScale)

	// fixed18 is the 18-decimal working domain for bin-pool exponentiation;
	// fixed36 is its square, used to invert negative powers.
	fixed18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	fixed36 = new(big.Int).Exp(big.NewInt(10), big.NewInt(36), nil)

	// fixed18ToPrice rescales the 1e18 domain down to the 1e6 price domain.
	fixed18ToPrice = new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)
)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// saturateUint64 clamps a non-negative big.Int into uint64 range.
func saturateUint64(v *big.Int) uint64 {
	if !v.IsUint64() {
		return math.MaxUint64
	}
	return v.Uint64()
}
