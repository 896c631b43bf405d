package cqrs

// ---------- Account queries ----------

// GetBalanceQuery fetches the current balance of a single account.
type GetBalanceQuery struct {
	AccountID string
}
