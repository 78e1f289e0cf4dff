package stream

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/dcccrypto/percolator-sdk/codec"
	"github.com/dcccrypto/percolator-sdk/dex"
)

func TestAccountFromSubject(t *testing.T) {
	cases := []struct {
		subject string
		want    string
	}{
		{"percolator.accounts.slab.9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"},
		{"percolator.accounts.pool.cpmm.abc", "abc"},
		{"nodots", "nodots"},
	}
	for _, c := range cases {
		if got := AccountFromSubject(c.subject); got != c.want {
			t.Errorf("AccountFromSubject(%q) = %q, want %q", c.subject, got, c.want)
		}
	}
}

func newTestDecoder() *Decoder {
	return NewDecoder(nil, nil, zerolog.Nop(), nil)
}

func cpmmPoolBuf(t *testing.T, baseVault, quoteVault solana.PublicKey) []byte {
	t.Helper()
	buf := make([]byte, dex.CpmmPoolLen)
	copy(buf[72:104], baseVault[:])
	copy(buf[104:136], quoteVault[:])
	return buf
}

func balanceBuf(t *testing.T, amount uint64) []byte {
	t.Helper()
	buf := make([]byte, dex.TokenAccountLen)
	binary.LittleEndian.PutUint64(buf[64:72], amount)
	return buf
}

func fillKey(b byte) solana.PublicKey {
	var raw [32]byte
	for i := range raw {
		raw[i] = b
	}
	return solana.PublicKeyFromBytes(raw[:])
}

// A constant-product pool prices off two external balance accounts. No
// quote should come out until the pool and both vault balances have all
// been observed; after that, a balance refresh re-prices the pool.
func TestDecodeCpmmPairing(t *testing.T) {
	d := newTestDecoder()

	baseVault := fillKey(0xAA)
	quoteVault := fillKey(0xBB)

	poolRaw := RawUpdate{
		Kind:    KindCpmmPool,
		Account: "pool-1",
		Data:    cpmmPoolBuf(t, baseVault, quoteVault),
	}
	updates, err := d.decode(poolRaw)
	if err != nil {
		t.Fatalf("decode pool: %v", err)
	}
	if len(updates) != 0 {
		t.Fatalf("expected no quotes before balances arrive, got %d", len(updates))
	}

	updates, err = d.decode(RawUpdate{
		Kind:    KindBalance,
		Account: baseVault.String(),
		Data:    balanceBuf(t, 2_000),
	})
	if err != nil {
		t.Fatalf("decode base balance: %v", err)
	}
	if len(updates) != 0 {
		t.Fatalf("expected no quotes with one balance, got %d", len(updates))
	}

	updates, err = d.decode(RawUpdate{
		Kind:    KindBalance,
		Account: quoteVault.String(),
		Data:    balanceBuf(t, 6_000),
	})
	if err != nil {
		t.Fatalf("decode quote balance: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected 1 quote after both balances, got %d", len(updates))
	}

	upd := updates[0]
	if upd.Quote == nil {
		t.Fatal("expected a quote update")
	}
	if upd.Account != "pool-1" {
		t.Errorf("quote account = %q, want pool-1", upd.Account)
	}
	if upd.Quote.Price != 3_000_000 {
		t.Errorf("price = %d, want 3000000", upd.Quote.Price)
	}

	// A direct pool refresh now prices immediately.
	updates, err = d.decode(poolRaw)
	if err != nil {
		t.Fatalf("decode pool refresh: %v", err)
	}
	if len(updates) != 1 || updates[0].Quote.Price != 3_000_000 {
		t.Fatalf("pool refresh should re-quote, got %+v", updates)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	d := newTestDecoder()
	_, err := d.decode(RawUpdate{Kind: AccountKind("mystery"), Data: []byte{1}})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	var fe *codec.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %T: %v", err, err)
	}
}

func TestErrorClass(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&codec.LengthError{Schema: "x", Need: 8, Got: 0}, "length"},
		{&codec.FormatError{Reason: "bad"}, "format"},
		{&codec.RangeError{Index: 9, Capacity: 4}, "range"},
		{errFake, "other"},
	}
	for _, c := range cases {
		if got := errorClass(c.err); got != c.want {
			t.Errorf("errorClass(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

var errFake = &fakeError{}

type fakeError struct{}

func (*fakeError) Error() string { return "fake" }
