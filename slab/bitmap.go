package slab

import (
	"math/bits"

	"github.com/dcccrypto/percolator-sdk/codec"
)

// OccupiedSlots decodes the occupancy bitmap into an ascending list of
// occupied slot indices. O(BitmapWords); meant for full snapshots, not the
// hot path.
func OccupiedSlots(data []byte, l Layout) ([]int, error) {
	end := BitmapOffset + l.BitmapWords*8
	if len(data) < end {
		return nil, &codec.LengthError{Schema: "slab bitmap", Need: end, Got: len(data)}
	}

	var out []int
	for w := 0; w < l.BitmapWords; w++ {
		word := codec.U64(data, BitmapOffset+w*8)
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			out = append(out, w*64+bit)
			word &= word - 1
		}
	}
	return out, nil
}

// IsOccupied reports whether the slot at index is in use. Out-of-range
// indices are simply not present, so the answer is false, never an error.
// O(1); this is the hot-path membership check.
func IsOccupied(data []byte, l Layout, index int) bool {
	if index < 0 || index >= l.SlotCapacity {
		return false
	}
	off := BitmapOffset + (index/64)*8
	if len(data) < off+8 {
		return false
	}
	return codec.U64(data, off)>>(uint(index)%64)&1 == 1
}
