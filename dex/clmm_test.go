package dex_test

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/dcccrypto/percolator-sdk/codec"
	"github.com/dcccrypto/percolator-sdk/dex"
)

// makeClmmPool builds a pool buffer with the sqrt price given as (hi, lo)
// 64-bit halves.
func makeClmmPool(t *testing.T, baseDecimals, quoteDecimals uint8, sqrtLo, sqrtHi uint64) []byte {
	t.Helper()
	buf := make([]byte, dex.ClmmPoolLen)
	for i := 8; i < 40; i++ {
		buf[i] = 0xC1
	}
	for i := 40; i < 72; i++ {
		buf[i] = 0xC2
	}
	buf[72] = baseDecimals
	buf[73] = quoteDecimals
	binary.LittleEndian.PutUint64(buf[80:], sqrtLo)
	binary.LittleEndian.PutUint64(buf[88:], sqrtHi)
	return buf
}

func clmmPrice(t *testing.T, baseDecimals, quoteDecimals uint8, sqrtLo, sqrtHi uint64) uint64 {
	t.Helper()
	pool, err := dex.DecodeClmmPool(makeClmmPool(t, baseDecimals, quoteDecimals, sqrtLo, sqrtHi))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return pool.Price()
}

func TestClmmPriceZeroSqrt(t *testing.T) {
	if got := clmmPrice(t, 6, 6, 0, 0); got != 0 {
		t.Errorf("zero sqrt price: got %d, want sentinel 0", got)
	}
}

func TestClmmPriceUnit(t *testing.T) {
	// sqrt price 2^64 is 1.0 in 64.64 fixed point; with equal decimals the
	// price is exactly 1e6.
	if got := clmmPrice(t, 6, 6, 0, 1); got != 1_000_000 {
		t.Errorf("unit sqrt price: got %d, want 1000000", got)
	}
}

func TestClmmPriceSmallSqrt(t *testing.T) {
	// sqrt price 2^56 with base decimals 9, quote decimals 6. Squaring first
	// and shifting 128 would floor this to 0; the reformulated order keeps
	// the bits: floor(1e9 / 2^16) = 15258.
	got := clmmPrice(t, 9, 6, 1<<56, 0)
	if got == 0 {
		t.Fatal("small sqrt price truncated to 0")
	}
	if got != 15_258 {
		t.Errorf("got %d, want 15258", got)
	}
}

func TestClmmPriceNegativeAdjustment(t *testing.T) {
	// quote decimals exceed base decimals: the adjustment divides last.
	// price = 1e6 / 10^3 for a unit sqrt price.
	if got := clmmPrice(t, 6, 9, 0, 1); got != 1_000 {
		t.Errorf("got %d, want 1000", got)
	}
}

func TestClmmPriceMonotonic(t *testing.T) {
	sqrts := [][2]uint64{ // (lo, hi), increasing
		{1 << 56, 0},
		{1 << 60, 0},
		{0, 1},
		{0, 1 << 4},
	}
	prev := uint64(0)
	for _, s := range sqrts {
		got := clmmPrice(t, 6, 6, s[0], s[1])
		if got <= prev {
			t.Fatalf("price not strictly increasing: %d after %d (sqrt lo=%#x hi=%#x)", got, prev, s[0], s[1])
		}
		prev = got
	}
}

func TestDecodeClmmPoolShort(t *testing.T) {
	_, err := dex.DecodeClmmPool(make([]byte, dex.ClmmPoolLen-1))
	var le *codec.LengthError
	if !errors.As(err, &le) {
		t.Fatalf("got %T, want *codec.LengthError", err)
	}
	if !strings.Contains(le.Error(), "concentrated-liquidity") {
		t.Errorf("error does not name the pool family: %q", le.Error())
	}
}

func TestClmmQuote(t *testing.T) {
	pool, err := dex.DecodeClmmPool(makeClmmPool(t, 6, 6, 0, 1))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	q := pool.Quote()
	if q.Family != dex.FamilyConcentrated {
		t.Errorf("family: got %q", q.Family)
	}
	if q.Price != 1_000_000 {
		t.Errorf("price: got %d", q.Price)
	}
}
