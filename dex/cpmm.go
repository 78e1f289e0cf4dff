package dex

import (
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/dcccrypto/percolator-sdk/codec"
)

// Constant-product pool account layout.
const (
	cpmmStatus     = 0
	cpmmBaseMint   = 8
	cpmmQuoteMint  = 40
	cpmmBaseVault  = 72
	cpmmQuoteVault = 104
	cpmmLpMint     = 136

	// CpmmPoolLen is the minimum account length for this family.
	CpmmPoolLen = 168
)

// Token balance account layout (SPL token account).
const (
	tokenAmount = 64

	// TokenAccountLen is the minimum length of a token balance account.
	TokenAccountLen = 72
)

// CpmmPool is a constant-product pool. The pool account itself carries only
// identities; the price needs the two vault token balances, which the caller
// fetches and supplies separately.
type CpmmPool struct {
	Status     uint64
	BaseMint   solana.PublicKey
	QuoteMint  solana.PublicKey
	BaseVault  solana.PublicKey
	QuoteVault solana.PublicKey
	LpMint     solana.PublicKey
}

// DecodeCpmmPool decodes a constant-product pool account.
func DecodeCpmmPool(data []byte) (CpmmPool, error) {
	if len(data) < CpmmPoolLen {
		return CpmmPool{}, &codec.LengthError{Schema: "constant-product pool", Need: CpmmPoolLen, Got: len(data)}
	}
	return CpmmPool{
		Status:     codec.U64(data, cpmmStatus),
		BaseMint:   codec.Pubkey(data, cpmmBaseMint),
		QuoteMint:  codec.Pubkey(data, cpmmQuoteMint),
		BaseVault:  codec.Pubkey(data, cpmmBaseVault),
		QuoteVault: codec.Pubkey(data, cpmmQuoteVault),
		LpMint:     codec.Pubkey(data, cpmmLpMint),
	}, nil
}

// DecodeTokenBalance reads the amount from a token balance account, used
// for the two vault accounts backing a constant-product price.
func DecodeTokenBalance(data []byte) (uint64, error) {
	if len(data) < TokenAccountLen {
		return 0, &codec.LengthError{Schema: "token balance account", Need: TokenAccountLen, Got: len(data)}
	}
	return codec.U64(data, tokenAmount), nil
}

// Price derives the pool price from the two vault balances:
// quote * 1e6 / base. A zero base balance means no price is derivable yet
// and returns the sentinel 0.
func (p CpmmPool) Price(baseBalance, quoteBalance uint64) uint64 {
	if baseBalance == 0 {
		return 0
	}
	num := new(big.Int).SetUint64(quoteBalance)
	num.Mul(num, priceScaleBig)
	num.Quo(num, new(big.Int).SetUint64(baseBalance))
	return saturateUint64(num)
}

// Quote packages the derived price with the pool identities.
func (p CpmmPool) Quote(baseBalance, quoteBalance uint64) PriceQuote {
	return PriceQuote{
		Family:    FamilyConstantProduct,
		BaseMint:  p.BaseMint,
		QuoteMint: p.QuoteMint,
		Price:     p.Price(baseBalance, quoteBalance),
	}
}
