package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the write model persisted in the account store.
type Account struct {
	ID        string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdTimestamp"`
	UpdatedAt time.Time       `json:"updatedTimestamp"`
}

// Clone returns a detached copy so callers can mutate it without touching
// the stored value.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// TransferResult carries both balances after a committed transfer.
type TransferResult struct {
	Source      *Account
	Destination *Account
}
