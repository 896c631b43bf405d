package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/middleware"
	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/eaglebank/ledger-service/shared/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Client-facing messages. These strings are part of the API contract.
const (
	msgAccountNotFound    = "Account not found."
	msgInsufficientFunds  = "Insufficient funds."
	msgInvalidRequestBody = "Invalid request body."
	msgCreateFailed       = "Failed to create account."
	msgDepositFailed      = "Failed to deposit."
	msgWithdrawFailed     = "Failed to withdraw."
	msgTransferFailed     = "Failed to transfer."
	msgGetBalanceFailed   = "Failed to get account balance."
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	CreateAccount(context.Context, cqrs.CreateAccountCommand) (*models.Account, error)
	Deposit(context.Context, cqrs.DepositCommand) (*models.Account, error)
	Withdraw(context.Context, cqrs.WithdrawCommand) (*models.Account, error)
	Transfer(context.Context, cqrs.TransferCommand) (*models.TransferResult, error)
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetBalance(context.Context, cqrs.GetBalanceQuery) (*models.BalanceView, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
	logger   *zap.Logger
}

type CreateAccountRequest struct {
	InitialBalance *float64 `json:"initialBalance" validate:"required,gte=0"`
}

// AmountRequest is the body of both deposit and withdraw.
type AmountRequest struct {
	AccountID string  `json:"accountId" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
}

type TransferRequest struct {
	SourceAccountID      string  `json:"sourceAccountId" validate:"required"`
	DestinationAccountID string  `json:"destinationAccountId" validate:"required,nefield=SourceAccountID"`
	Amount               float64 `json:"amount" validate:"required,gt=0"`
}

type CreateAccountResponse struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
}

type BalanceAmountResponse struct {
	Balance float64 `json:"balance"`
}

type TransferResponse struct {
	SourceAccountBalance      float64 `json:"sourceAccountBalance"`
	DestinationAccountBalance float64 `json:"destinationAccountBalance"`
}

type CurrentBalanceResponse struct {
	Balance string `json:"balance"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries, logger: logger}
}

// RegisterRoutes mounts the account endpoints on r.
func RegisterRoutes(r gin.IRouter, h *AccountHandler) {
	accounts := r.Group("/accounts")
	{
		accounts.POST("/create-account", h.CreateAccount)
		accounts.POST("/deposit", h.Deposit)
		accounts.POST("/withdraw", h.Withdraw)
		accounts.POST("/transfer", h.Transfer)
		accounts.GET("/accounts/current-balance/:accountId", h.GetBalance)
	}
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	initial, ok := parseAmount(c, "InitialBalance", *req.InitialBalance)
	if !ok {
		return
	}

	account, err := h.commands.CreateAccount(c.Request.Context(), cqrs.CreateAccountCommand{
		InitialBalance: initial,
	})
	if err != nil {
		h.respondWithDomainError(c, err, msgCreateFailed)
		return
	}

	c.JSON(http.StatusCreated, CreateAccountResponse{
		AccountID: account.ID,
		Balance:   utils.FormatBalance(account.Balance),
	})
}

func (h *AccountHandler) Deposit(c *gin.Context) {
	var req AmountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	amount, ok := parseAmount(c, "Amount", req.Amount)
	if !ok {
		return
	}

	account, err := h.commands.Deposit(c.Request.Context(), cqrs.DepositCommand{
		AccountID: req.AccountID,
		Amount:    amount,
	})
	if err != nil {
		h.respondWithDomainError(c, err, msgDepositFailed)
		return
	}

	c.JSON(http.StatusOK, BalanceAmountResponse{Balance: utils.BalanceNumber(account.Balance)})
}

func (h *AccountHandler) Withdraw(c *gin.Context) {
	var req AmountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	amount, ok := parseAmount(c, "Amount", req.Amount)
	if !ok {
		return
	}

	account, err := h.commands.Withdraw(c.Request.Context(), cqrs.WithdrawCommand{
		AccountID: req.AccountID,
		Amount:    amount,
	})
	if err != nil {
		h.respondWithDomainError(c, err, msgWithdrawFailed)
		return
	}

	c.JSON(http.StatusOK, BalanceAmountResponse{Balance: utils.BalanceNumber(account.Balance)})
}

func (h *AccountHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if !bindAndValidate(c, &req) {
		return
	}
	amount, ok := parseAmount(c, "Amount", req.Amount)
	if !ok {
		return
	}

	result, err := h.commands.Transfer(c.Request.Context(), cqrs.TransferCommand{
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               amount,
	})
	if err != nil {
		h.respondWithDomainError(c, err, msgTransferFailed)
		return
	}

	c.JSON(http.StatusOK, TransferResponse{
		SourceAccountBalance:      utils.BalanceNumber(result.Source.Balance),
		DestinationAccountBalance: utils.BalanceNumber(result.Destination.Balance),
	})
}

func (h *AccountHandler) GetBalance(c *gin.Context) {
	view, err := h.queries.GetBalance(c.Request.Context(), cqrs.GetBalanceQuery{
		AccountID: c.Param("accountId"),
	})
	if err != nil {
		h.respondWithDomainError(c, err, msgGetBalanceFailed)
		return
	}

	c.JSON(http.StatusOK, CurrentBalanceResponse{Balance: utils.FormatBalance(view.Balance)})
}

// respondWithDomainError maps a service error to its status and fixed
// message. Unexpected errors are logged and answered with fallback.
func (h *AccountHandler) respondWithDomainError(c *gin.Context, err error, fallback string) {
	var invalid *models.InvalidInputError
	switch {
	case errors.As(err, &invalid):
		middleware.RespondWithValidationError(c, []middleware.ValidationError{{
			Field:   invalid.Field,
			Message: invalid.Reason,
			Type:    "invalid",
		}})
	case errors.Is(err, models.ErrInvalidInput):
		middleware.RespondWithError(c, http.StatusBadRequest, msgInvalidRequestBody)
	case errors.Is(err, models.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, msgAccountNotFound)
	case errors.Is(err, models.ErrInsufficientFunds):
		middleware.RespondWithError(c, http.StatusBadRequest, msgInsufficientFunds)
	default:
		_ = c.Error(err)
		h.logger.Error(fallback,
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}

func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, msgInvalidRequestBody)
		return false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}

func parseAmount(c *gin.Context, field string, v float64) (decimal.Decimal, bool) {
	amount, ok := utils.ParseAmount(v)
	if !ok {
		middleware.RespondWithValidationError(c, []middleware.ValidationError{{
			Field:   field,
			Message: "Value must have at most two decimal places",
			Type:    "scale",
		}})
		return decimal.Zero, false
	}
	return amount, true
}
