package repository

import (
	"context"

	"github.com/eaglebank/ledger-service/shared/models"
)

// BalanceViewKeyPrefix namespaces balance views in Redis.
const BalanceViewKeyPrefix = "account:balance:"

// BalanceCache is the subset of redis.ViewCache the read side uses.
// SetIfNewer must not replace an entry cached with a higher version.
type BalanceCache interface {
	Get(ctx context.Context, id string) (*models.BalanceView, bool)
	SetIfNewer(ctx context.Context, id string, view *models.BalanceView, version int64) (bool, error)
	Delete(ctx context.Context, ids ...string)
}

// AccountReadRepository serves balance reads. When a cache is configured it
// is tried first, with the account store as fallback; every cold read warms
// the cache. Views are versioned by UpdatedAt, so a cold read that raced a
// commit cannot overwrite the committed view.
type AccountReadRepository struct {
	store AccountStore
	cache BalanceCache
}

// NewAccountReadRepository returns a read repository without a cache.
func NewAccountReadRepository(store AccountStore) *AccountReadRepository {
	return &AccountReadRepository{store: store}
}

// NewCachedAccountReadRepository puts cache in front of store.
func NewCachedAccountReadRepository(store AccountStore, cache BalanceCache) *AccountReadRepository {
	return &AccountReadRepository{store: store, cache: cache}
}

// GetBalance returns the balance view for id, trying the cache first.
func (r *AccountReadRepository) GetBalance(ctx context.Context, id string) (*models.BalanceView, error) {
	if r.cache != nil {
		if view, ok := r.cache.Get(ctx, id); ok {
			return view, nil
		}
	}

	account, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := models.NewBalanceView(account)

	if r.cache != nil {
		_, _ = r.cache.SetIfNewer(ctx, id, view, viewVersion(view))
	}
	return view, nil
}

// StoreBalances writes the views of freshly committed accounts through to
// the cache. An entry that cannot be written is dropped so the next read
// goes to the store.
func (r *AccountReadRepository) StoreBalances(ctx context.Context, accounts ...*models.Account) {
	if r.cache == nil {
		return
	}
	for _, account := range accounts {
		view := models.NewBalanceView(account)
		if _, err := r.cache.SetIfNewer(ctx, account.ID, view, viewVersion(view)); err != nil {
			r.cache.Delete(ctx, account.ID)
		}
	}
}

func viewVersion(view *models.BalanceView) int64 {
	return view.UpdatedAt.UnixMicro()
}
