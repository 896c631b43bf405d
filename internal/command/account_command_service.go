package command

import (
	"context"
	"fmt"
	"time"

	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/events"
	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/eaglebank/ledger-service/shared/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountCommandService writes account state and keeps the read model in sync.
// Incoming account ids are reduced to their canonical UUID form before any
// comparison, lock or cache key is derived from them.
type AccountCommandService struct {
	store     repository.AccountStore
	readRepo  *repository.AccountReadRepository
	publisher events.Publisher
	stream    string
	logger    *zap.Logger
}

func NewAccountCommandService(
	store repository.AccountStore,
	readRepo *repository.AccountReadRepository,
	publisher events.Publisher,
	stream string,
	logger *zap.Logger,
) *AccountCommandService {
	return &AccountCommandService{
		store:     store,
		readRepo:  readRepo,
		publisher: publisher,
		stream:    stream,
		logger:    logger,
	}
}

func (s *AccountCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	if cmd.InitialBalance.IsNegative() {
		return nil, models.NewInvalidInput("initialBalance", "must not be negative")
	}
	if !hasMoneyScale(cmd.InitialBalance) {
		return nil, models.NewInvalidInput("initialBalance", "must have at most two decimal places")
	}
	if cmd.InitialBalance.GreaterThan(utils.MaxBalance) {
		return nil, models.NewInvalidInput("initialBalance", "exceeds the maximum allowed balance")
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	account := &models.Account{
		ID:        utils.GenerateAccountID(),
		Balance:   cmd.InitialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.readRepo.StoreBalances(ctx, account)

	s.logger.Info("Account created",
		zap.String("account_id", account.ID),
		zap.String("balance", utils.FormatBalance(account.Balance)),
	)
	s.publish(ctx, events.AccountCreated, events.AccountCreatedEvent{
		AccountID: account.ID,
		Balance:   account.Balance,
	})
	return account, nil
}

func (s *AccountCommandService) Deposit(ctx context.Context, cmd cqrs.DepositCommand) (*models.Account, error) {
	if err := validateAmount(cmd.Amount); err != nil {
		return nil, err
	}
	id, ok := utils.CanonicalAccountID(cmd.AccountID)
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	cmd.AccountID = id

	accounts, err := s.store.UpdateBalances(ctx, []string{cmd.AccountID}, func(accounts map[string]*models.Account) error {
		a := accounts[cmd.AccountID]
		a.Balance = a.Balance.Add(cmd.Amount)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deposit to %s: %w", cmd.AccountID, err)
	}
	account := accounts[cmd.AccountID]

	s.readRepo.StoreBalances(ctx, account)
	s.publish(ctx, events.BalanceUpdated, events.BalanceUpdatedEvent{
		AccountID:  account.ID,
		NewBalance: account.Balance,
		Change:     cmd.Amount,
		Reason:     events.ReasonDeposit,
	})
	return account, nil
}

func (s *AccountCommandService) Withdraw(ctx context.Context, cmd cqrs.WithdrawCommand) (*models.Account, error) {
	if err := validateAmount(cmd.Amount); err != nil {
		return nil, err
	}
	id, ok := utils.CanonicalAccountID(cmd.AccountID)
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	cmd.AccountID = id

	accounts, err := s.store.UpdateBalances(ctx, []string{cmd.AccountID}, func(accounts map[string]*models.Account) error {
		a := accounts[cmd.AccountID]
		if a.Balance.LessThan(cmd.Amount) {
			return models.ErrInsufficientFunds
		}
		a.Balance = a.Balance.Sub(cmd.Amount)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("withdraw from %s: %w", cmd.AccountID, err)
	}
	account := accounts[cmd.AccountID]

	s.readRepo.StoreBalances(ctx, account)
	s.publish(ctx, events.BalanceUpdated, events.BalanceUpdatedEvent{
		AccountID:  account.ID,
		NewBalance: account.Balance,
		Change:     cmd.Amount.Neg(),
		Reason:     events.ReasonWithdraw,
	})
	return account, nil
}

// Transfer debits the source and credits the destination in one store
// mutation; either both balances change or neither does.
func (s *AccountCommandService) Transfer(ctx context.Context, cmd cqrs.TransferCommand) (*models.TransferResult, error) {
	if err := validateAmount(cmd.Amount); err != nil {
		return nil, err
	}
	src, srcOK := utils.CanonicalAccountID(cmd.SourceAccountID)
	dst, dstOK := utils.CanonicalAccountID(cmd.DestinationAccountID)
	if srcOK && dstOK && src == dst {
		return nil, models.NewInvalidInput("destinationAccountId", "must differ from sourceAccountId")
	}
	if !srcOK || !dstOK {
		return nil, models.ErrAccountNotFound
	}
	cmd.SourceAccountID, cmd.DestinationAccountID = src, dst

	ids := []string{src, dst}
	accounts, err := s.store.UpdateBalances(ctx, ids, func(accounts map[string]*models.Account) error {
		from, to := accounts[src], accounts[dst]
		if from.Balance.LessThan(cmd.Amount) {
			return models.ErrInsufficientFunds
		}
		from.Balance = from.Balance.Sub(cmd.Amount)
		to.Balance = to.Balance.Add(cmd.Amount)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transfer %s -> %s: %w", cmd.SourceAccountID, cmd.DestinationAccountID, err)
	}
	result := &models.TransferResult{
		Source:      accounts[src],
		Destination: accounts[dst],
	}

	s.readRepo.StoreBalances(ctx, result.Source, result.Destination)
	s.publish(ctx, events.TransferCompleted, events.TransferCompletedEvent{
		SourceAccountID:           result.Source.ID,
		DestinationAccountID:      result.Destination.ID,
		Amount:                    cmd.Amount,
		SourceAccountBalance:      result.Source.Balance,
		DestinationAccountBalance: result.Destination.Balance,
	})
	return result, nil
}

// publish is best-effort: the mutation is already committed, so a failed
// publish is logged and never surfaces to the caller.
func (s *AccountCommandService) publish(ctx context.Context, eventType string, data any) {
	ctx = context.WithoutCancel(ctx)
	if err := s.publisher.Publish(ctx, s.stream, eventType, data); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", eventType),
			zap.String("stream", s.stream),
			zap.Error(err),
		)
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return models.NewInvalidInput("amount", "must be greater than 0")
	}
	if !hasMoneyScale(amount) {
		return models.NewInvalidInput("amount", "must have at most two decimal places")
	}
	if amount.GreaterThan(utils.MaxBalance) {
		return models.NewInvalidInput("amount", "exceeds the maximum allowed balance")
	}
	return nil
}

func hasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(utils.MoneyScale))
}
