package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/dcccrypto/percolator-sdk/internal/observability"
)

// envelope is the outbound wire format. Snake_case to match the subjects'
// downstream consumers.
type envelope struct {
	SnapshotID string         `json:"snapshot_id"`
	Kind       string         `json:"kind"`
	Account    string         `json:"account"`
	ObservedAt time.Time      `json:"observed_at"`
	Slab       *SlabSnapshot  `json:"slab,omitempty"`
	Quote      *QuoteSnapshot `json:"quote,omitempty"`
}

// Publisher pushes decoded state to percolator.state.{kind}.{account}.
// Publish failures are logged and counted, never fatal: downstream
// consumers can replay from the raw account stream.
type Publisher struct {
	js      jetstream.JetStream
	in      <-chan StateUpdate
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewPublisher(js jetstream.JetStream, in <-chan StateUpdate, log zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		js:      js,
		in:      in,
		log:     log,
		metrics: metrics,
	}
}

// Run drains the input channel until ctx is cancelled or it closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-p.in:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, upd); err != nil {
				p.metrics.PublishDrops.Inc()
				p.log.Warn().
					Err(err).
					Str("kind", string(upd.Kind)).
					Str("account", upd.Account).
					Msg("outbound publish failed")
				continue
			}
			p.metrics.StatePublished.WithLabelValues(string(upd.Kind)).Inc()
		}
	}
}

func (p *Publisher) publish(ctx context.Context, upd StateUpdate) error {
	data, err := json.Marshal(envelope{
		SnapshotID: upd.SnapshotID.String(),
		Kind:       string(upd.Kind),
		Account:    upd.Account,
		ObservedAt: upd.ObservedAt,
		Slab:       upd.Slab,
		Quote:      upd.Quote,
	})
	if err != nil {
		return fmt.Errorf("marshal state update: %w", err)
	}

	subject := fmt.Sprintf("percolator.state.%s.%s", upd.Kind, upd.Account)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the decoded-state stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "PERC_STATE",
		Subjects:  []string{"percolator.state.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream PERC_STATE: %w", err)
	}
	log.Info().Str("stream", "PERC_STATE").Msg("ensured stream")
	return nil
}
