// Package stream moves raw account bytes from the ledger-reading
// collaborator into the decoders and decoded state back out, over NATS
// JetStream. The daemon never talks to the ledger itself: upstream fetchers
// publish raw account payloads, this package decodes and republishes.
package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// AccountKind names the schema a raw payload should be decoded with. The
// kind is carried in the subject, not the payload.
type AccountKind string

const (
	KindSlab     AccountKind = "slab"
	KindCpmmPool AccountKind = "cpmm"
	KindClmmPool AccountKind = "clmm"
	KindBinPool  AccountKind = "bin"
	KindBalance  AccountKind = "balance"
)

// RawUpdate is an account payload pulled off NATS, ready for decoding.
type RawUpdate struct {
	Kind      AccountKind
	Account   string // base58 account address, from the subject tail
	Data      []byte
	Timestamp time.Time
	AckFunc   func()
	NakFunc   func()
}

// SubjectConfig maps one subject filter to an account kind.
type SubjectConfig struct {
	Subject      string
	Kind         AccountKind
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject map. Each account kind gets
// its own durable consumer so a slow pool feed cannot starve slab updates.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "percolator.accounts.slab.>", Kind: KindSlab, ConsumerName: "decoder-slab", StreamName: "PERC_ACCOUNTS"},
		{Subject: "percolator.accounts.pool.cpmm.>", Kind: KindCpmmPool, ConsumerName: "decoder-cpmm", StreamName: "PERC_ACCOUNTS"},
		{Subject: "percolator.accounts.pool.clmm.>", Kind: KindClmmPool, ConsumerName: "decoder-clmm", StreamName: "PERC_ACCOUNTS"},
		{Subject: "percolator.accounts.pool.bin.>", Kind: KindBinPool, ConsumerName: "decoder-bin", StreamName: "PERC_ACCOUNTS"},
		{Subject: "percolator.accounts.balance.>", Kind: KindBalance, ConsumerName: "decoder-balance", StreamName: "PERC_ACCOUNTS"},
	}
}

// AccountFromSubject extracts the account address from a subject's last
// token, e.g. "percolator.accounts.slab.<address>".
func AccountFromSubject(subject string) string {
	if i := strings.LastIndexByte(subject, '.'); i >= 0 {
		return subject[i+1:]
	}
	return subject
}

// Subscriber owns the JetStream consumers feeding the decode worker.
type Subscriber struct {
	js         jetstream.JetStream
	updateChan chan<- RawUpdate
	consumers  []jetstream.ConsumeContext
	log        zerolog.Logger
}

func NewSubscriber(js jetstream.JetStream, updateChan chan<- RawUpdate, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		js:         js,
		updateChan: updateChan,
		log:        log,
	}
}

// Subscribe creates durable consumers for all configured subjects.
// Explicit ACK, max_deliver=5, ack_wait=30s.
func (s *Subscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		kind := cfg.Kind
		consumer, err := s.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		cc, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawUpdate{
				Kind:      kind,
				Account:   AccountFromSubject(msg.Subject()),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case s.updateChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		s.consumers = append(s.consumers, cc)
		s.log.Info().Str("subject", cfg.Subject).Str("consumer", cfg.ConsumerName).Msg("subscribed")
	}

	return nil
}

// EnsureStreams creates the raw account stream if it does not exist.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "PERC_ACCOUNTS",
		Subjects:  []string{"percolator.accounts.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream PERC_ACCOUNTS: %w", err)
	}
	log.Info().Str("stream", "PERC_ACCOUNTS").Msg("ensured stream")
	return nil
}

// Stop gracefully stops all consumers.
func (s *Subscriber) Stop() {
	for _, cc := range s.consumers {
		cc.Stop()
	}
	s.log.Info().Msg("subscribers stopped")
}

// ConnectNATS establishes a NATS connection and a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
