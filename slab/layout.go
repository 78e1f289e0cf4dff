// Package slab decodes the market slab account: header, config, engine
// aggregates, occupancy bitmap, and the position slot table. All reads are
// little-endian against caller-owned byte buffers; nothing here mutates
// state or holds a reference to the buffer past the call that produced it.
package slab

import (
	"fmt"

	"github.com/dcccrypto/percolator-sdk/codec"
)

// Region sizes and offsets for the current slab revision. The slot table
// offset is the only layout-dependent quantity; everything before the bitmap
// sits at a constant offset.
const (
	HeaderLen = 104
	ConfigLen = 496

	// EngineOffset is align8(HeaderLen + ConfigLen).
	EngineOffset   = 600
	EngineFixedLen = 576

	// BitmapOffset is where the occupancy bitmap starts.
	BitmapOffset = EngineOffset + EngineFixedLen

	// PreambleLen covers slotCount u16 + pad[6] + nextIdentity u64 +
	// freeListHead u16, packed directly after the bitmap.
	PreambleLen = 18

	SlotSize = 248
)

// Layout describes a resolved slab: the sparse-table capacity, the number of
// 64-bit bitmap words, and the absolute byte offset of the slot table.
type Layout struct {
	SlotCapacity int
	BitmapWords  int
	TableOffset  int
}

// tier is a pre-deployed capacity with its verified total account size.
// layout_test.go asserts each entry against layoutFor/TotalLength so the
// table and the general formula cannot drift apart.
type tier struct {
	capacity int
	totalLen int
}

var knownTiers = []tier{
	{capacity: 256, totalLen: 65232},
	{capacity: 1024, totalLen: 257328},
	{capacity: 4096, totalLen: 1025712},
}

func alignUp8(n int) int {
	return (n + 7) &^ 7
}

// layoutFor builds the layout for a given slot capacity.
func layoutFor(capacity int) Layout {
	words := (capacity + 63) / 64
	// bitmap, then preamble, then the next-free-list table (u16 per slot),
	// then padding up to the 8-byte-aligned slot table.
	tableOffset := alignUp8(BitmapOffset + words*8 + PreambleLen + capacity*2)
	return Layout{
		SlotCapacity: capacity,
		BitmapWords:  words,
		TableOffset:  tableOffset,
	}
}

// TotalLength returns the exact account size this layout occupies.
func (l Layout) TotalLength() int {
	return l.TableOffset + l.SlotCapacity*SlotSize
}

// ResolveLayout maps a total buffer length to a concrete layout. Known tiers
// are matched first; any other length is solved against the general size
// formula. Only an exact length match is accepted: a partial match would
// silently misalign every read past the bitmap, so an unmatched length
// yields a FormatError instead of a guess.
func ResolveLayout(bufLen int) (Layout, error) {
	for _, t := range knownTiers {
		if bufLen == t.totalLen {
			return layoutFor(t.capacity), nil
		}
	}

	// TotalLength is strictly increasing in capacity, so binary search for
	// an exact match.
	lo, hi := 1, bufLen/SlotSize+1
	for lo <= hi {
		mid := (lo + hi) / 2
		total := layoutFor(mid).TotalLength()
		switch {
		case total == bufLen:
			return layoutFor(mid), nil
		case total < bufLen:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}

	return Layout{}, &codec.FormatError{
		Reason: fmt.Sprintf("no slab layout matches buffer length %d", bufLen),
	}
}
