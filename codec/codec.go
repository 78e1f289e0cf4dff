// Package codec provides the primitive little-endian readers shared by the
// slab and pool decoders, plus the decode error taxonomy.
//
// The readers are unchecked: callers must have validated offset+width against
// the buffer length before reading. All bounds enforcement lives in the
// decoder layer, which fails before any read that would run off the buffer.
package codec

import (
	"encoding/binary"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// U8 reads an unsigned byte at off.
func U8(data []byte, off int) uint8 {
	return data[off]
}

// I8 reads a signed byte at off.
func I8(data []byte, off int) int8 {
	return int8(data[off])
}

// U16 reads a little-endian uint16 at off.
func U16(data []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(data[off:])
}

// I16 reads a little-endian int16 at off.
func I16(data []byte, off int) int16 {
	return int16(binary.LittleEndian.Uint16(data[off:]))
}

// U32 reads a little-endian uint32 at off.
func U32(data []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(data[off:])
}

// I32 reads a little-endian int32 at off.
func I32(data []byte, off int) int32 {
	return int32(binary.LittleEndian.Uint32(data[off:]))
}

// U64 reads a little-endian uint64 at off.
func U64(data []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(data[off:])
}

// I64 reads a little-endian int64 at off.
func I64(data []byte, off int) int64 {
	return int64(binary.LittleEndian.Uint64(data[off:]))
}

// twoPow128 and twoPow127 bound the two's-complement reconstruction in I128.
var (
	twoPow128 = new(big.Int).Lsh(big.NewInt(1), 128)
	twoPow127 = new(big.Int).Lsh(big.NewInt(1), 127)
)

// U128 reads a little-endian unsigned 128-bit integer at off, composed from
// two 64-bit halves: (hi << 64) | lo.
func U128(data []byte, off int) *big.Int {
	lo := binary.LittleEndian.Uint64(data[off:])
	hi := binary.LittleEndian.Uint64(data[off+8:])

	v := new(big.Int).SetUint64(hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(lo))
}

// I128 reads a little-endian signed 128-bit integer at off. The unsigned
// value is reconstructed first, then 2^128 is subtracted when the sign bit
// is set, reproducing two's-complement semantics without a native wide type.
func I128(data []byte, off int) *big.Int {
	v := U128(data, off)
	if v.Cmp(twoPow127) >= 0 {
		v.Sub(v, twoPow128)
	}
	return v
}

// Pubkey reads a 32-byte account identity at off.
func Pubkey(data []byte, off int) solana.PublicKey {
	return solana.PublicKeyFromBytes(data[off : off+32])
}
