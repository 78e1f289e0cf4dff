package codec_test

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/dcccrypto/percolator-sdk/codec"
)

func TestFixedWidthReaders(t *testing.T) {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint16(buf[0:], 0xBEEF)
	binary.LittleEndian.PutUint32(buf[4:], 0xDEADBEEF)
	binary.LittleEndian.PutUint64(buf[8:], 0x0102030405060708)
	buf[16] = 0x7F
	buf[17] = 0xFF // -1 as int8

	if got := codec.U16(buf, 0); got != 0xBEEF {
		t.Errorf("U16: got %#x, want 0xBEEF", got)
	}
	if got := codec.U32(buf, 4); got != 0xDEADBEEF {
		t.Errorf("U32: got %#x, want 0xDEADBEEF", got)
	}
	if got := codec.U64(buf, 8); got != 0x0102030405060708 {
		t.Errorf("U64: got %#x", got)
	}
	if got := codec.U8(buf, 16); got != 0x7F {
		t.Errorf("U8: got %#x, want 0x7F", got)
	}
	if got := codec.I8(buf, 17); got != -1 {
		t.Errorf("I8: got %d, want -1", got)
	}
}

func TestSignedReaders(t *testing.T) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[0:], 0xFFFF)
	binary.LittleEndian.PutUint32(buf[2:], 0xFFFFFFFE)
	binary.LittleEndian.PutUint64(buf[8:], 0xFFFFFFFFFFFFFFFD)

	if got := codec.I16(buf, 0); got != -1 {
		t.Errorf("I16: got %d, want -1", got)
	}
	if got := codec.I32(buf, 2); got != -2 {
		t.Errorf("I32: got %d, want -2", got)
	}
	if got := codec.I64(buf, 8); got != -3 {
		t.Errorf("I64: got %d, want -3", got)
	}
}

func TestU128Compose(t *testing.T) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:], 1)  // lo
	binary.LittleEndian.PutUint64(buf[8:], 2)  // hi

	want := new(big.Int).Lsh(big.NewInt(2), 64)
	want.Add(want, big.NewInt(1))
	if got := codec.U128(buf, 0); got.Cmp(want) != 0 {
		t.Errorf("U128: got %s, want %s", got, want)
	}
}

// encodeI128 writes v as a little-endian two's-complement 128-bit value.
func encodeI128(t *testing.T, v *big.Int) []byte {
	t.Helper()
	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	buf := make([]byte, 16)
	raw := u.Bytes() // big-endian
	for i := 0; i < len(raw); i++ {
		buf[i] = raw[len(raw)-1-i]
	}
	return buf
}

func TestI128RoundTrip(t *testing.T) {
	minI128 := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxI128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

	cases := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(-1),
		minI128,
		maxI128,
	}
	for _, want := range cases {
		buf := encodeI128(t, want)
		if got := codec.I128(buf, 0); got.Cmp(want) != 0 {
			t.Errorf("I128 round trip: got %s, want %s", got, want)
		}
	}
}

func TestPubkey(t *testing.T) {
	buf := make([]byte, 33)
	for i := 1; i < 33; i++ {
		buf[i] = byte(i)
	}
	key := codec.Pubkey(buf, 1)
	for i, b := range key.Bytes() {
		if b != byte(i+1) {
			t.Fatalf("pubkey byte %d: got %d, want %d", i, b, i+1)
		}
	}
}
