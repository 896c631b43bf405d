package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/eaglebank/ledger-service/shared/utils"
	"github.com/lib/pq"
)

// Postgres error codes the store maps onto domain errors.
const (
	pqCheckViolation    = "23514"
	pqUniqueViolation   = "23505"
	pqInvalidTextFormat = "22P02"
	pqNumericOutOfRange = "22003"
)

// AccountWriteRepository handles all state-mutating operations for accounts.
// It operates exclusively against the PostgreSQL write store (source of truth).
type AccountWriteRepository struct {
	db *sql.DB
}

func NewAccountWriteRepository(db *sql.DB) *AccountWriteRepository {
	return &AccountWriteRepository{db: db}
}

func (r *AccountWriteRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Balance, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return mapPQError("create account", err)
	}
	return nil
}

func (r *AccountWriteRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	if !utils.ValidateAccountID(id) {
		return nil, models.ErrAccountNotFound
	}
	query := `
		SELECT id, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapPQError("get account", err)
	}
	return account, nil
}

// UpdateBalances runs fn inside a READ COMMITTED transaction holding
// SELECT ... FOR UPDATE row locks on every account in ids.
func (r *AccountWriteRepository) UpdateBalances(ctx context.Context, ids []string, fn BalanceMutation) (map[string]*models.Account, error) {
	ordered := lockOrder(ids)
	for _, id := range ordered {
		if !utils.ValidateAccountID(id) {
			return nil, models.ErrAccountNotFound
		}
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, models.NewPersistenceError("begin transaction", err)
	}
	// Rollback after a successful Commit is a no-op returning sql.ErrTxDone.
	defer func() { _ = tx.Rollback() }()

	lockQuery := `
		SELECT id, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`
	accounts := make(map[string]*models.Account, len(ordered))
	locked := make(map[string]struct{}, len(ordered))
	for _, id := range ordered {
		account, err := scanAccount(tx.QueryRowContext(ctx, lockQuery, id))
		if err != nil {
			return nil, mapPQError("lock account", err)
		}
		// Two spellings of one UUID lock the same row.
		if _, dup := locked[account.ID]; dup {
			return nil, models.NewInvalidInput("accountId", "account ids refer to the same account")
		}
		locked[account.ID] = struct{}{}
		accounts[id] = account
	}

	original := make(map[string]*models.Account, len(accounts))
	for id, a := range accounts {
		original[id] = a.Clone()
	}

	if err := fn(accounts); err != nil {
		return nil, err
	}
	if err := checkBalances(accounts); err != nil {
		return nil, err
	}

	updateQuery := `
		UPDATE accounts
		SET balance = $2, updated_at = $3
		WHERE id = $1
	`
	now := time.Now()
	for _, id := range ordered {
		account := accounts[id]
		if account.Balance.Equal(original[id].Balance) {
			continue
		}
		account.UpdatedAt = nextUpdatedAt(original[id].UpdatedAt, now)
		result, err := tx.ExecContext(ctx, updateQuery, id, account.Balance, account.UpdatedAt)
		if err != nil {
			return nil, mapPQError("update balance", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, models.NewPersistenceError("check rows affected", err)
		}
		if rows == 0 {
			return nil, models.ErrAccountNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, models.NewPersistenceError("commit transaction", err)
	}
	return accounts, nil
}

func (r *AccountWriteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return models.NewPersistenceError("ping database", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// mapPQError turns driver failures into domain errors. Anything it does not
// recognise becomes a PersistenceError for op.
func mapPQError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrAccountNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqCheckViolation:
			return models.ErrInsufficientFunds
		case pqInvalidTextFormat:
			return models.ErrAccountNotFound
		case pqNumericOutOfRange:
			return models.NewInvalidInput("amount", "balance out of range")
		case pqUniqueViolation:
			return models.NewPersistenceError(op, errors.New("account id already exists"))
		}
	}
	return models.NewPersistenceError(op, err)
}
