package repository

import (
	"context"
	"sort"
	"time"

	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/eaglebank/ledger-service/shared/utils"
)

// BalanceMutation edits the locked accounts in place. Returning an error
// aborts the whole mutation and nothing is persisted.
type BalanceMutation func(accounts map[string]*models.Account) error

// AccountStore is the write-side source of truth for accounts.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	Get(ctx context.Context, id string) (*models.Account, error)
	// UpdateBalances locks every account in ids, applies fn to copies of
	// them and persists the resulting balances as one atomic unit. It
	// returns the accounts as committed.
	UpdateBalances(ctx context.Context, ids []string, fn BalanceMutation) (map[string]*models.Account, error)
	Ping(ctx context.Context) error
}

// lockOrder returns ids deduplicated and sorted. Every store acquires locks
// in this order so two mutations over the same accounts cannot deadlock.
func lockOrder(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)
	return ordered
}

// checkBalances rejects any account that fn left below zero or above
// utils.MaxBalance.
func checkBalances(accounts map[string]*models.Account) error {
	for _, a := range accounts {
		if a.Balance.IsNegative() {
			return models.ErrInsufficientFunds
		}
		if a.Balance.GreaterThan(utils.MaxBalance) {
			return models.NewInvalidInput("amount", "resulting balance exceeds the maximum allowed")
		}
	}
	return nil
}

// nextUpdatedAt returns the timestamp for a balance change committed at now.
// It is truncated to the microsecond precision Postgres keeps and always moves
// past prev, so UpdatedAt strictly increases with every change of an account.
func nextUpdatedAt(prev, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		return prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return now
}
