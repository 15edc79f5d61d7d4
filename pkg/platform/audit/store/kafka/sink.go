// Package kafka publishes audit events to a Kafka topic. Events are keyed by
// user ID so a user's history stays ordered within one partition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	audit "entrypass/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink is a write-only audit.Store. Reads go to the store that materializes
// the topic (postgres) or to a local mirror.
type Sink struct {
	producer Producer
	topic    string
	mirror   audit.Store
}

type Option func(*Sink)

// WithMirror also appends every event to a local store that serves ListByUser.
func WithMirror(store audit.Store) Option {
	return func(s *Sink) {
		s.mirror = store
	}
}

func NewSink(producer Producer, topic string, opts ...Option) *Sink {
	s := &Sink{producer: producer, topic: topic}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient builds a franz-go client for the given seed brokers.
func NewClient(brokers []string, topic string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates topic unless it already exists.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicas int16) error {
	resp, err := kadm.NewClient(client).CreateTopic(ctx, partitions, replicas, nil, topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create audit topic: %w", resp.Err)
	}
	return nil
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.UserID.String()),
		Value: value,
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	if s.mirror != nil {
		return s.mirror.Append(ctx, event)
	}
	return nil
}

func (s *Sink) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	if s.mirror == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "audit sink is write-only")
	}
	return s.mirror.ListByUser(ctx, userID)
}
