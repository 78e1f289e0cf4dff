package stream

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dcccrypto/percolator-sdk/codec"
	"github.com/dcccrypto/percolator-sdk/dex"
	"github.com/dcccrypto/percolator-sdk/internal/observability"
	"github.com/dcccrypto/percolator-sdk/slab"
)

// SlabSnapshot is the outbound summary of one decoded slab account.
type SlabSnapshot struct {
	Version       uint32 `json:"version"`
	Resolved      bool   `json:"resolved"`
	Paused        bool   `json:"paused"`
	Admin         string `json:"admin"`
	CollateralMint string `json:"collateral_mint"`

	CurrentSlot      uint64 `json:"current_slot"`
	VaultBalance     uint64 `json:"vault_balance"`
	InsuranceBalance uint64 `json:"insurance_balance"`

	// 128-bit aggregates travel as decimal strings.
	FundingIndex      string `json:"funding_index"`
	TotalOpenInterest string `json:"total_open_interest"`
	TotalCapital      string `json:"total_capital"`

	InitialMarginBps     uint64 `json:"initial_margin_bps"`
	MaintenanceMarginBps uint64 `json:"maintenance_margin_bps"`

	SlotCapacity  int `json:"slot_capacity"`
	SlotCount     int `json:"slot_count"`
	OccupiedSlots int `json:"occupied_slots"`
}

// QuoteSnapshot is the outbound form of a derived pool price.
type QuoteSnapshot struct {
	Family    string `json:"family"`
	BaseMint  string `json:"base_mint"`
	QuoteMint string `json:"quote_mint"`
	Price     uint64 `json:"price"`
}

// StateUpdate is one decoded result, ready for publishing and persistence.
type StateUpdate struct {
	SnapshotID uuid.UUID
	Kind       AccountKind
	Account    string
	ObservedAt time.Time

	Slab  *SlabSnapshot
	Quote *QuoteSnapshot
}

// Decoder drains raw account updates, runs them through the codec, and
// emits state updates. Decode failures are terminal for the message:
// decoding is deterministic, so redelivery cannot succeed, and the message
// is ACKed and counted rather than NAKed into a redelivery loop.
type Decoder struct {
	in      <-chan RawUpdate
	out     chan<- StateUpdate
	log     zerolog.Logger
	metrics *observability.Metrics

	// Constant-product pools price off two external balance accounts, so
	// the decoder pairs the latest balance per vault with the pools that
	// reference it.
	balances    map[string]uint64
	cpmmPools   map[string]dex.CpmmPool
	vaultToPool map[string][]string
}

func NewDecoder(in <-chan RawUpdate, out chan<- StateUpdate, log zerolog.Logger, metrics *observability.Metrics) *Decoder {
	return &Decoder{
		in:          in,
		out:         out,
		log:         log,
		metrics:     metrics,
		balances:    make(map[string]uint64),
		cpmmPools:   make(map[string]dex.CpmmPool),
		vaultToPool: make(map[string][]string),
	}
}

// Run processes updates until ctx is cancelled or the input channel closes.
func (d *Decoder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-d.in:
			if !ok {
				return nil
			}
			d.handle(ctx, raw)
		}
	}
}

func (d *Decoder) handle(ctx context.Context, raw RawUpdate) {
	start := time.Now()
	updates, err := d.decode(raw)
	d.metrics.DecodeDuration.WithLabelValues(string(raw.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		d.metrics.DecodeFailures.WithLabelValues(string(raw.Kind), errorClass(err)).Inc()
		d.log.Warn().
			Err(err).
			Str("kind", string(raw.Kind)).
			Str("account", raw.Account).
			Int("bytes", len(raw.Data)).
			Msg("decode failed, dropping")
		raw.AckFunc()
		return
	}

	d.metrics.AccountsDecoded.WithLabelValues(string(raw.Kind)).Inc()
	for _, upd := range updates {
		if upd.Quote != nil {
			d.metrics.QuotesDerived.WithLabelValues(upd.Quote.Family).Inc()
			if upd.Quote.Price == 0 {
				d.metrics.SentinelQuotes.WithLabelValues(upd.Quote.Family).Inc()
			}
		}
		select {
		case d.out <- upd:
		case <-ctx.Done():
			raw.NakFunc()
			return
		}
	}
	raw.AckFunc()
}

// decode dispatches one raw payload to its schema. A single update can fan
// out to several results: a balance refresh re-prices every pool holding
// that vault.
func (d *Decoder) decode(raw RawUpdate) ([]StateUpdate, error) {
	switch raw.Kind {
	case KindSlab:
		upd, err := d.decodeSlab(raw)
		if err != nil {
			return nil, err
		}
		return []StateUpdate{upd}, nil

	case KindCpmmPool:
		pool, err := dex.DecodeCpmmPool(raw.Data)
		if err != nil {
			return nil, err
		}
		d.trackCpmmPool(raw.Account, pool)
		return d.cpmmQuotes(raw, []string{raw.Account}), nil

	case KindClmmPool:
		pool, err := dex.DecodeClmmPool(raw.Data)
		if err != nil {
			return nil, err
		}
		q := pool.Quote()
		return []StateUpdate{newQuoteUpdate(raw, q)}, nil

	case KindBinPool:
		pool, err := dex.DecodeBinPool(raw.Data)
		if err != nil {
			return nil, err
		}
		q := pool.Quote()
		return []StateUpdate{newQuoteUpdate(raw, q)}, nil

	case KindBalance:
		amount, err := dex.DecodeTokenBalance(raw.Data)
		if err != nil {
			return nil, err
		}
		d.balances[raw.Account] = amount
		return d.cpmmQuotes(raw, d.vaultToPool[raw.Account]), nil

	default:
		return nil, &codec.FormatError{Reason: "unknown account kind " + string(raw.Kind)}
	}
}

func (d *Decoder) decodeSlab(raw RawUpdate) (StateUpdate, error) {
	layout, err := slab.ResolveLayout(len(raw.Data))
	if err != nil {
		return StateUpdate{}, err
	}
	header, err := slab.DecodeHeader(raw.Data)
	if err != nil {
		return StateUpdate{}, err
	}
	cfg, err := slab.DecodeConfig(raw.Data)
	if err != nil {
		return StateUpdate{}, err
	}
	engine, err := slab.DecodeEngine(raw.Data, layout)
	if err != nil {
		return StateUpdate{}, err
	}
	params, err := slab.DecodeParams(raw.Data)
	if err != nil {
		return StateUpdate{}, err
	}
	occupied, err := slab.OccupiedSlots(raw.Data, layout)
	if err != nil {
		return StateUpdate{}, err
	}

	return StateUpdate{
		SnapshotID: uuid.New(),
		Kind:       raw.Kind,
		Account:    raw.Account,
		ObservedAt: raw.Timestamp,
		Slab: &SlabSnapshot{
			Version:        header.Version,
			Resolved:       header.Resolved,
			Paused:         header.Paused,
			Admin:          header.Admin.String(),
			CollateralMint: cfg.CollateralMint.String(),

			CurrentSlot:      engine.CurrentSlot,
			VaultBalance:     engine.VaultBalance,
			InsuranceBalance: engine.InsuranceBalance,

			FundingIndex:      engine.FundingIndex.String(),
			TotalOpenInterest: engine.TotalOpenInterest.String(),
			TotalCapital:      engine.TotalCapital.String(),

			InitialMarginBps:     params.InitialMarginBps,
			MaintenanceMarginBps: params.MaintenanceMarginBps,

			SlotCapacity:  layout.SlotCapacity,
			SlotCount:     int(engine.SlotCount),
			OccupiedSlots: len(occupied),
		},
	}, nil
}

func (d *Decoder) trackCpmmPool(account string, pool dex.CpmmPool) {
	if _, known := d.cpmmPools[account]; !known {
		base := pool.BaseVault.String()
		quote := pool.QuoteVault.String()
		d.vaultToPool[base] = append(d.vaultToPool[base], account)
		d.vaultToPool[quote] = append(d.vaultToPool[quote], account)
	}
	d.cpmmPools[account] = pool
}

// cpmmQuotes derives quotes for the given pool accounts, skipping any pool
// whose vault balances have not both been observed yet.
func (d *Decoder) cpmmQuotes(raw RawUpdate, poolAccounts []string) []StateUpdate {
	var out []StateUpdate
	for _, account := range poolAccounts {
		pool, ok := d.cpmmPools[account]
		if !ok {
			continue
		}
		base, haveBase := d.balances[pool.BaseVault.String()]
		quote, haveQuote := d.balances[pool.QuoteVault.String()]
		if !haveBase || !haveQuote {
			continue
		}
		upd := newQuoteUpdate(raw, pool.Quote(base, quote))
		upd.Account = account
		out = append(out, upd)
	}
	return out
}

func newQuoteUpdate(raw RawUpdate, q dex.PriceQuote) StateUpdate {
	return StateUpdate{
		SnapshotID: uuid.New(),
		Kind:       raw.Kind,
		Account:    raw.Account,
		ObservedAt: raw.Timestamp,
		Quote: &QuoteSnapshot{
			Family:    string(q.Family),
			BaseMint:  q.BaseMint.String(),
			QuoteMint: q.QuoteMint.String(),
			Price:     q.Price,
		},
	}
}

// errorClass buckets decode failures for metrics labels.
func errorClass(err error) string {
	var le *codec.LengthError
	var fe *codec.FormatError
	var re *codec.RangeError
	switch {
	case errors.As(err, &le):
		return "length"
	case errors.As(err, &fe):
		return "format"
	case errors.As(err, &re):
		return "range"
	default:
		return "other"
	}
}
