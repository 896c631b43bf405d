package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eaglebank/ledger-service/shared/models"
)

type memoryAccount struct {
	mu      sync.Mutex
	account models.Account
}

// MemoryAccountStore keeps accounts in process memory. The map is guarded by
// mu; each account has its own mutex so mutations on unrelated accounts run
// in parallel.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*memoryAccount
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]*memoryAccount)}
}

func (s *MemoryAccountStore) Create(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return models.NewPersistenceError("create account", errors.New("account id already exists"))
	}
	s.accounts[account.ID] = &memoryAccount{account: *account}
	return nil
}

func (s *MemoryAccountStore) Get(ctx context.Context, id string) (*models.Account, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.account.Clone(), nil
}

func (s *MemoryAccountStore) UpdateBalances(ctx context.Context, ids []string, fn BalanceMutation) (map[string]*models.Account, error) {
	ordered := lockOrder(ids)
	entries := make([]*memoryAccount, 0, len(ordered))
	for _, id := range ordered {
		entry, ok := s.lookup(id)
		if !ok {
			return nil, models.ErrAccountNotFound
		}
		entries = append(entries, entry)
	}

	for _, entry := range entries {
		entry.mu.Lock()
		defer entry.mu.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	accounts := make(map[string]*models.Account, len(entries))
	for _, entry := range entries {
		accounts[entry.account.ID] = entry.account.Clone()
	}
	if err := fn(accounts); err != nil {
		return nil, err
	}
	if err := checkBalances(accounts); err != nil {
		return nil, err
	}

	now := time.Now()
	for _, entry := range entries {
		updated := accounts[entry.account.ID]
		if !updated.Balance.Equal(entry.account.Balance) {
			updated.UpdatedAt = nextUpdatedAt(entry.account.UpdatedAt, now)
		}
		entry.account.Balance = updated.Balance
		entry.account.UpdatedAt = updated.UpdatedAt
	}
	return accounts, nil
}

func (s *MemoryAccountStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryAccountStore) lookup(id string) (*memoryAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.accounts[id]
	return entry, ok
}
