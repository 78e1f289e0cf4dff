package slab_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/dcccrypto/percolator-sdk/codec"
	"github.com/dcccrypto/percolator-sdk/slab"
)

func setBit(buf []byte, index int) {
	off := slab.BitmapOffset + index/8
	buf[off] |= 1 << (uint(index) % 8)
}

func TestOccupiedSlots(t *testing.T) {
	buf, l := makeSlab(t, 256)
	want := []int{0, 5, 63, 64, 127, 200, 255}
	for _, i := range want {
		setBit(buf, i)
	}

	got, err := slab.OccupiedSlots(buf, l)
	if err != nil {
		t.Fatalf("occupied slots: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d indices, want %d", len(got), len(want))
	}
	if !sort.IntsAreSorted(got) {
		t.Error("enumeration is not ascending")
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestOccupiedSlotsEmpty(t *testing.T) {
	buf, l := makeSlab(t, 1024)
	got, err := slab.OccupiedSlots(buf, l)
	if err != nil {
		t.Fatalf("occupied slots: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d indices from an empty bitmap", len(got))
	}
}

func TestOccupiedSlotsShort(t *testing.T) {
	buf, l := makeSlab(t, 256)
	_, err := slab.OccupiedSlots(buf[:slab.BitmapOffset+3], l)
	var le *codec.LengthError
	if !errors.As(err, &le) {
		t.Fatalf("got %T, want *codec.LengthError", err)
	}
}

// Point queries and the full scan must agree for every index in range.
func TestIsOccupiedAgreesWithEnumeration(t *testing.T) {
	buf, l := makeSlab(t, 256)
	occupied := map[int]bool{}
	// A deterministic scatter touching word boundaries.
	for i := 0; i < 256; i += 7 {
		setBit(buf, i)
		occupied[i] = true
	}
	setBit(buf, 63)
	occupied[63] = true

	enum, err := slab.OccupiedSlots(buf, l)
	if err != nil {
		t.Fatalf("occupied slots: %v", err)
	}
	inEnum := map[int]bool{}
	for _, i := range enum {
		inEnum[i] = true
	}

	for i := 0; i < l.SlotCapacity; i++ {
		point := slab.IsOccupied(buf, l, i)
		if point != occupied[i] {
			t.Errorf("IsOccupied(%d): got %v, want %v", i, point, occupied[i])
		}
		if point != inEnum[i] {
			t.Errorf("index %d: point query %v disagrees with enumeration %v", i, point, inEnum[i])
		}
	}
}

func TestIsOccupiedOutOfRange(t *testing.T) {
	buf, l := makeSlab(t, 256)
	for i := range buf[slab.BitmapOffset : slab.BitmapOffset+l.BitmapWords*8] {
		buf[slab.BitmapOffset+i] = 0xFF
	}
	// Out-of-range membership is "not present", never an error.
	for _, idx := range []int{-1, 256, 1 << 30} {
		if slab.IsOccupied(buf, l, idx) {
			t.Errorf("IsOccupied(%d): got true for out-of-range index", idx)
		}
	}
}
