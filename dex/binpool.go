package dex

import (
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/dcccrypto/percolator-sdk/codec"
)

// Discretized-bin pool account layout.
const (
	binStatus    = 0
	binBaseMint  = 8
	binQuoteMint = 40
	binStep      = 72
	binActiveID  = 76

	// BinPoolLen is the minimum account length for this family.
	BinPoolLen = 80
)

// BinPool is a discretized-bin pool: price levels are the powers of
// (1 + BinStep/10000) and ActiveBinID selects the current one.
type BinPool struct {
	Status      uint64
	BaseMint    solana.PublicKey
	QuoteMint   solana.PublicKey
	BinStep     uint16
	ActiveBinID int32
}

// DecodeBinPool decodes a discretized-bin pool account.
func DecodeBinPool(data []byte) (BinPool, error) {
	if len(data) < BinPoolLen {
		return BinPool{}, &codec.LengthError{Schema: "discretized-bin pool", Need: BinPoolLen, Got: len(data)}
	}
	return BinPool{
		Status:      codec.U64(data, binStatus),
		BaseMint:    codec.Pubkey(data, binBaseMint),
		QuoteMint:   codec.Pubkey(data, binQuoteMint),
		BinStep:     codec.U16(data, binStep),
		ActiveBinID: codec.I32(data, binActiveID),
	}, nil
}

// Price derives (1 + BinStep/10000)^ActiveBinID, computed by
// exponentiation-by-squaring in an 18-decimal fixed-point domain and
// rescaled to 1e6. A negative bin index is handled by raising to the
// positive power and inverting, not by negating the base. BinStep 0 returns
// the sentinel 0.
func (p BinPool) Price() uint64 {
	return binPrice(p.BinStep, p.ActiveBinID)
}

func binPrice(step uint16, activeID int32) uint64 {
	if step == 0 {
		return 0
	}

	// base = 1e18 * (1 + step/10000)
	base := new(big.Int).SetUint64(uint64(step))
	base.Mul(base, fixed18)
	base.Quo(base, big.NewInt(10_000))
	base.Add(base, fixed18)

	exp := int64(activeID)
	neg := exp < 0
	if neg {
		exp = -exp
	}

	result := powFixed18(base, uint64(exp))
	if neg {
		result.Quo(new(big.Int).Set(fixed36), result)
	}

	result.Quo(result, fixed18ToPrice)
	return saturateUint64(result)
}

// powFixed18 raises base to exp, both in the 1e18 fixed-point domain,
// dividing the scale back out after every multiplication.
func powFixed18(base *big.Int, exp uint64) *big.Int {
	result := new(big.Int).Set(fixed18)
	b := new(big.Int).Set(base)
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, b)
			result.Quo(result, fixed18)
		}
		exp >>= 1
		if exp > 0 {
			b.Mul(b, b)
			b.Quo(b, fixed18)
		}
	}
	return result
}

// Quote packages the derived price with the pool identities.
func (p BinPool) Quote() PriceQuote {
	return PriceQuote{
		Family:    FamilyBin,
		BaseMint:  p.BaseMint,
		QuoteMint: p.QuoteMint,
		Price:     p.Price(),
	}
}
