package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	AccountCreated    = "account.created"
	BalanceUpdated    = "balance.updated"
	TransferCompleted = "transfer.completed"
)

// Stream names. With the Kafka sink the stream name is the topic.
const (
	AccountEventsStream = "account.events"
)

// Balance change reasons carried by BalanceUpdatedEvent.
const (
	ReasonDeposit  = "deposit"
	ReasonWithdraw = "withdraw"
)

// Publisher delivers events to a stream. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
	Close() error
}

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func newEvent(eventType string, data any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Account events
type AccountCreatedEvent struct {
	AccountID string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
}

type BalanceUpdatedEvent struct {
	AccountID  string          `json:"accountId"`
	NewBalance decimal.Decimal `json:"newBalance"`
	Change     decimal.Decimal `json:"change"`
	Reason     string          `json:"reason"`
}

type TransferCompletedEvent struct {
	SourceAccountID           string          `json:"sourceAccountId"`
	DestinationAccountID      string          `json:"destinationAccountId"`
	Amount                    decimal.Decimal `json:"amount"`
	SourceAccountBalance      decimal.Decimal `json:"sourceAccountBalance"`
	DestinationAccountBalance decimal.Decimal `json:"destinationAccountBalance"`
}

// NopPublisher drops every event. Used when no event sink is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
