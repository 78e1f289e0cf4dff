package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/dcccrypto/percolator-sdk/internal/observability"
)

// Record is one unit of persistable state. Exactly one field is set; the
// orchestrator in cmd bridges stream.StateUpdate into this.
type Record struct {
	Snapshot *SnapshotRow
	Quote    *QuoteRow
}

// Worker drains the persist channel and batch-writes to Postgres. Flushes
// happen when a batch fills or the flush timeout expires, and failed
// flushes retry with backoff until the context is cancelled: decoded state
// is cheap to re-derive but expensive to lose silently.
type Worker struct {
	writer       *StateWriter
	in           <-chan Record
	batchSize    int
	flushTimeout time.Duration
	log          zerolog.Logger
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	in <-chan Record,
	batchSize int,
	flushTimeout time.Duration,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewStateWriter(db),
		in:           in,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		log:          log,
		metrics:      metrics,
	}
}

// Run blocks until ctx is cancelled or the input channel closes, flushing
// whatever remains on the way out.
func (w *Worker) Run(ctx context.Context) error {
	snapshots := make([]SnapshotRow, 0, w.batchSize)
	quotes := make([]QuoteRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	flush := func(ctx context.Context) {
		if len(snapshots) == 0 && len(quotes) == 0 {
			return
		}
		if err := w.flushWithRetry(ctx, snapshots, quotes); err != nil {
			w.log.Error().Err(err).Int("snapshots", len(snapshots)).Int("quotes", len(quotes)).
				Msg("flush abandoned")
		}
		snapshots = snapshots[:0]
		quotes = quotes[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush(context.Background())
			return ctx.Err()

		case rec, ok := <-w.in:
			if !ok {
				flush(context.Background())
				return nil
			}
			if rec.Snapshot != nil {
				snapshots = append(snapshots, *rec.Snapshot)
			}
			if rec.Quote != nil {
				quotes = append(quotes, *rec.Quote)
			}
			if len(snapshots)+len(quotes) >= w.batchSize {
				flush(ctx)
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			flush(ctx)
			timer.Reset(w.flushTimeout)
		}
	}
}

func (w *Worker) flushWithRetry(ctx context.Context, snapshots []SnapshotRow, quotes []QuoteRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.metrics.PersistRetries.Inc()
			w.log.Warn().Int("attempt", attempt).Dur("backoff", backoff).Msg("persist retry")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		start := time.Now()
		err := w.flushOnce(ctx, snapshots, quotes)
		if err == nil {
			w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
			w.metrics.PersistBatchSize.Observe(float64(len(snapshots) + len(quotes)))
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		w.log.Warn().Err(err).Msg("persist flush failed")
	}
}

func (w *Worker) flushOnce(ctx context.Context, snapshots []SnapshotRow, quotes []QuoteRow) error {
	if err := w.writer.WriteSnapshotBatch(ctx, snapshots); err != nil {
		return err
	}
	return w.writer.WriteQuoteBatch(ctx, quotes)
}
