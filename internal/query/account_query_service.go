package query

import (
	"context"
	"fmt"

	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/eaglebank/ledger-service/shared/utils"
)

// BalanceReader is satisfied by repository.AccountReadRepository.
type BalanceReader interface {
	GetBalance(ctx context.Context, id string) (*models.BalanceView, error)
}

type AccountQueryService struct {
	readRepo BalanceReader
}

func NewAccountQueryService(readRepo BalanceReader) *AccountQueryService {
	return &AccountQueryService{readRepo: readRepo}
}

func (s *AccountQueryService) GetBalance(ctx context.Context, q cqrs.GetBalanceQuery) (*models.BalanceView, error) {
	id, ok := utils.CanonicalAccountID(q.AccountID)
	if !ok {
		return nil, fmt.Errorf("get balance of %s: %w", q.AccountID, models.ErrAccountNotFound)
	}
	view, err := s.readRepo.GetBalance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get balance of %s: %w", q.AccountID, err)
	}
	return view, nil
}
