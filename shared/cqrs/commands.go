package cqrs

import "github.com/shopspring/decimal"

type CreateAccountCommand struct {
	InitialBalance decimal.Decimal
}

type DepositCommand struct {
	AccountID string
	Amount    decimal.Decimal
}

type WithdrawCommand struct {
	AccountID string
	Amount    decimal.Decimal
}

// TransferCommand moves Amount from SourceAccountID to DestinationAccountID
// as a single unit.
type TransferCommand struct {
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
}
