package slab_test

import (
	"errors"
	"testing"

	"github.com/dcccrypto/percolator-sdk/codec"
	"github.com/dcccrypto/percolator-sdk/slab"
)

// slabLen computes the total account size for a capacity from the layout
// contract, independently of the resolver, so the two cannot agree by
// accident.
func slabLen(capacity int) int {
	words := (capacity + 63) / 64
	tableOff := slab.BitmapOffset + words*8 + slab.PreambleLen + capacity*2
	tableOff = (tableOff + 7) &^ 7
	return tableOff + capacity*slab.SlotSize
}

func TestResolveKnownTiers(t *testing.T) {
	tiers := map[int]int{
		256:  65232,
		1024: 257328,
		4096: 1025712,
	}
	for capacity, total := range tiers {
		if got := slabLen(capacity); got != total {
			t.Fatalf("capacity %d: formula gives %d bytes, verified tier is %d", capacity, got, total)
		}

		l, err := slab.ResolveLayout(total)
		if err != nil {
			t.Fatalf("resolve %d: %v", total, err)
		}
		if l.SlotCapacity != capacity {
			t.Errorf("resolve %d: capacity %d, want %d", total, l.SlotCapacity, capacity)
		}
		if l.TotalLength() != total {
			t.Errorf("capacity %d: TotalLength %d, want %d (round trip)", capacity, l.TotalLength(), total)
		}
		if l.BitmapWords != (capacity+63)/64 {
			t.Errorf("capacity %d: bitmap words %d", capacity, l.BitmapWords)
		}
		if l.TableOffset%8 != 0 {
			t.Errorf("capacity %d: table offset %d not 8-byte aligned", capacity, l.TableOffset)
		}
	}
}

func TestResolveFormulaFallback(t *testing.T) {
	// Capacities outside the deployed tier set resolve through the general
	// size formula.
	for _, capacity := range []int{1, 64, 100, 512, 2048, 8192} {
		l, err := slab.ResolveLayout(slabLen(capacity))
		if err != nil {
			t.Fatalf("capacity %d: %v", capacity, err)
		}
		if l.SlotCapacity != capacity {
			t.Errorf("capacity: got %d, want %d", l.SlotCapacity, capacity)
		}
	}
}

func TestResolveUnknownLength(t *testing.T) {
	for _, n := range []int{0, 1, 104, 600, 65231, 65233, 257329} {
		_, err := slab.ResolveLayout(n)
		if err == nil {
			t.Fatalf("length %d: expected an error", n)
		}
		var fe *codec.FormatError
		if !errors.As(err, &fe) {
			t.Errorf("length %d: got %T, want *codec.FormatError", n, err)
		}
	}
}
