package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceView is the read-optimised projection of an account balance.
// It is what the balance cache stores and what the query side returns.
type BalanceView struct {
	AccountID string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updatedTimestamp"`
}

func NewBalanceView(a *Account) *BalanceView {
	return &BalanceView{
		AccountID: a.ID,
		Balance:   a.Balance,
		UpdatedAt: a.UpdatedAt,
	}
}
