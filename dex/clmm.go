package dex

import (
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/dcccrypto/percolator-sdk/codec"
)

// Concentrated-liquidity pool account layout.
const (
	clmmStatus        = 0
	clmmBaseMint      = 8
	clmmQuoteMint     = 40
	clmmBaseDecimals  = 72
	clmmQuoteDecimals = 73
	clmmSqrtPrice     = 80

	// ClmmPoolLen is the minimum account length for this family.
	ClmmPoolLen = 96
)

// ClmmPool is a concentrated-liquidity pool. SqrtPriceX64 is the stored
// square-root price in 64.64 fixed point: the low 64 bits are the
// fractional part.
type ClmmPool struct {
	Status        uint64
	BaseMint      solana.PublicKey
	QuoteMint     solana.PublicKey
	BaseDecimals  uint8
	QuoteDecimals uint8
	SqrtPriceX64  *big.Int
}

// DecodeClmmPool decodes a concentrated-liquidity pool account.
func DecodeClmmPool(data []byte) (ClmmPool, error) {
	if len(data) < ClmmPoolLen {
		return ClmmPool{}, &codec.LengthError{Schema: "concentrated-liquidity pool", Need: ClmmPoolLen, Got: len(data)}
	}
	return ClmmPool{
		Status:        codec.U64(data, clmmStatus),
		BaseMint:      codec.Pubkey(data, clmmBaseMint),
		QuoteMint:     codec.Pubkey(data, clmmQuoteMint),
		BaseDecimals:  codec.U8(data, clmmBaseDecimals),
		QuoteDecimals: codec.U8(data, clmmQuoteDecimals),
		SqrtPriceX64:  codec.U128(data, clmmSqrtPrice),
	}, nil
}

// Price derives the pool price from the 64.64 square-root price.
//
// Squaring and shifting right by 128 first would truncate every sqrt price
// below 2^64 to zero before the decimal scaling runs, even though the true
// price is a small but valid positive number. Instead the price scale (and
// any positive decimal adjustment) is multiplied in ahead of the first
// 64-bit shift, so the intermediate term keeps the significant bits; the
// result comes out already in the 1e6 price domain and only a negative
// decimal adjustment remains to divide out. The order of operations here is
// load-bearing: reordering changes outputs for small sqrt prices.
func (p ClmmPool) Price() uint64 {
	return clmmPrice(p.SqrtPriceX64, p.BaseDecimals, p.QuoteDecimals)
}

func clmmPrice(sqrtPrice *big.Int, baseDecimals, quoteDecimals uint8) uint64 {
	if sqrtPrice.Sign() == 0 {
		return 0
	}

	adj := int(baseDecimals) - int(quoteDecimals)

	term := new(big.Int).Mul(sqrtPrice, priceScaleBig)
	if adj > 0 {
		term.Mul(term, pow10(adj))
	}
	term.Rsh(term, 64)
	term.Mul(term, sqrtPrice)
	term.Rsh(term, 64)
	if adj < 0 {
		term.Quo(term, pow10(-adj))
	}
	return saturateUint64(term)
}

// Quote packages the derived price with the pool identities.
func (p ClmmPool) Quote() PriceQuote {
	return PriceQuote{
		Family:    FamilyConcentrated,
		BaseMint:  p.BaseMint,
		QuoteMint: p.QuoteMint,
		Price:     p.Price(),
	}
}
