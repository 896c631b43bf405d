package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs     []kafka.Message
	writeErr error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a write deadline")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherPublish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, zap.NewNop())

	err := p.Publish(context.Background(), AccountEventsStream, BalanceUpdated, BalanceUpdatedEvent{
		AccountID:  "acc-1",
		NewBalance: decimal.NewFromInt(150),
		Change:     decimal.NewFromInt(50),
		Reason:     ReasonDeposit,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, AccountEventsStream, msg.Topic)
	assert.Equal(t, "acc-1", string(msg.Key))
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, BalanceUpdated, string(msg.Headers[0].Value))

	var decoded struct {
		Type      string          `json:"type"`
		Timestamp time.Time       `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, BalanceUpdated, decoded.Type)
	assert.False(t, decoded.Timestamp.IsZero())
	assert.JSONEq(t, `{"accountId":"acc-1","newBalance":"150","change":"50","reason":"deposit"}`, string(decoded.Data))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWriteError(t *testing.T) {
	w := &fakeWriter{writeErr: errors.New("broker down")}
	p := NewKafkaPublisher(w, zap.NewNop())

	err := p.Publish(context.Background(), AccountEventsStream, AccountCreated, AccountCreatedEvent{AccountID: "a"})
	assert.ErrorContains(t, err, "broker down")
}

func TestPartitionKey(t *testing.T) {
	assert.Equal(t, "a", partitionKey(AccountCreatedEvent{AccountID: "a"}))
	assert.Equal(t, "src", partitionKey(TransferCompletedEvent{SourceAccountID: "src", DestinationAccountID: "dst"}))
	assert.Equal(t, "", partitionKey("unknown"))
}

func TestRedisPublisherReturnsErrorWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	p := NewRedisPublisher(client, 1000)
	err := p.Publish(context.Background(), AccountEventsStream, AccountCreated, AccountCreatedEvent{AccountID: "a"})
	assert.ErrorContains(t, err, "failed to publish event")
	assert.NoError(t, p.Close())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), AccountEventsStream, AccountCreated, nil))
	assert.NoError(t, p.Close())
}
