//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "entrypass/pkg/domain"
	audit "entrypass/pkg/platform/audit"
	"entrypass/pkg/platform/audit/store/kafka"
	"entrypass/pkg/testutil/containers"
)

func TestSink_RoundTripThroughBroker(t *testing.T) {
	broker := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "audit-" + uuid.NewString()[:8]
	producer, err := kafka.NewClient(broker.Brokers, topic)
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, kafka.EnsureTopic(ctx, producer, topic, 1, 1))
	require.NoError(t, kafka.EnsureTopic(ctx, producer, topic, 1, 1), "existing topic is not an error")

	userID := id.UserID(uuid.New())
	sink := kafka.NewSink(producer, topic)
	require.NoError(t, sink.Append(ctx, audit.Event{
		UserID:      userID,
		Destination: "th",
		Subject:     "snap-1",
		Action:      string(audit.EventEntrySubmitted),
		Timestamp:   time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, userID.String(), string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, "snap-1", got.Subject)
	assert.Equal(t, id.DestinationID("th"), got.Destination)
}
