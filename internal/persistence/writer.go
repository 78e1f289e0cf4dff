// Package persistence projects decoded state into Postgres for offline
// consumers: one table of slab snapshots, one of derived price quotes.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SnapshotRow is one row in percolator.slab_snapshots.
type SnapshotRow struct {
	SnapshotID    string
	Account       string
	CurrentSlot   int64
	SlotCapacity  int
	SlotCount     int
	OccupiedSlots int
	Payload       []byte // JSON-encoded SlabSnapshot
	ObservedAt    time.Time
}

// QuoteRow is one row in percolator.price_quotes. Price is a 1e6-scaled
// integer; it crosses the wire as a decimal string because a uint64 can
// exceed bigint range.
type QuoteRow struct {
	QuoteID    string
	Account    string
	Family     string
	BaseMint   string
	QuoteMint  string
	Price      uint64
	ObservedAt time.Time
}

// StateWriter batch-writes decoded state using multi-row INSERT.
type StateWriter struct {
	db *sql.DB
}

func NewStateWriter(db *sql.DB) *StateWriter {
	return &StateWriter{db: db}
}

// WriteSnapshotBatch inserts a batch of slab snapshots. Conflicting
// snapshot ids are ignored so retried flushes stay idempotent.
func (w *StateWriter) WriteSnapshotBatch(ctx context.Context, rows []SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO percolator.slab_snapshots
		(snapshot_id, account, current_slot, slot_capacity, slot_count, occupied_slots, payload, observed_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*8)
	for i, r := range rows {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			r.SnapshotID, r.Account, r.CurrentSlot, r.SlotCapacity,
			r.SlotCount, r.OccupiedSlots, r.Payload, r.ObservedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (snapshot_id) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

// WriteQuoteBatch inserts a batch of derived price quotes.
func (w *StateWriter) WriteQuoteBatch(ctx context.Context, rows []QuoteRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO percolator.price_quotes
		(quote_id, account, family, base_mint, quote_mint, price, observed_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*7)
	for i, r := range rows {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			r.QuoteID, r.Account, r.Family, r.BaseMint, r.QuoteMint,
			strconv.FormatUint(r.Price, 10), r.ObservedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (quote_id) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}
