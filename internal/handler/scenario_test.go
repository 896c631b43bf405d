package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/eaglebank/ledger-service/internal/command"
	"github.com/eaglebank/ledger-service/internal/query"
	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/shared/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

// newLedgerRouter wires the real services over the in-memory store.
func newLedgerRouter(t *testing.T) *gin.Engine {
	t.Helper()
	store := repository.NewMemoryAccountStore()
	readRepo := repository.NewAccountReadRepository(store)
	cmds := command.NewAccountCommandService(store, readRepo, events.NopPublisher{}, events.AccountEventsStream, zap.NewNop())
	qrys := query.NewAccountQueryService(readRepo)
	return newAccountTestRouter(cmds, qrys)
}

func createAccount(t *testing.T, router *gin.Engine, initial float64) string {
	t.Helper()
	w := acctDoRequest(router, http.MethodPost, "/accounts/create-account", map[string]interface{}{"initialBalance": initial})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp CreateAccountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccountID
}

func currentBalance(t *testing.T, router *gin.Engine, id string) string {
	t.Helper()
	w := acctDoRequest(router, http.MethodGet, "/accounts/accounts/current-balance/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp CurrentBalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Balance
}

func TestScenario_CreateAndReadBalance(t *testing.T) {
	router := newLedgerRouter(t)

	w := acctDoRequest(router, http.MethodPost, "/accounts/create-account", map[string]interface{}{"initialBalance": 1000})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "1000.00", body["balance"])
	assert.NotEmpty(t, body["accountId"])

	assert.Equal(t, "1000.00", currentBalance(t, router, body["accountId"].(string)))
}

func TestScenario_WithdrawFromEmptyAccount(t *testing.T) {
	router := newLedgerRouter(t)
	id := createAccount(t, router, 0)

	w := acctDoRequest(router, http.MethodPost, "/accounts/withdraw", map[string]interface{}{"accountId": id, "amount": 500})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Insufficient funds."}`, w.Body.String())
	assert.Equal(t, "0.00", currentBalance(t, router, id))
}

func TestScenario_WithdrawThenOverdraw(t *testing.T) {
	router := newLedgerRouter(t)
	id := createAccount(t, router, 1000)

	w := acctDoRequest(router, http.MethodPost, "/accounts/withdraw", map[string]interface{}{"accountId": id, "amount": 500})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"balance":500}`, w.Body.String())

	w = acctDoRequest(router, http.MethodPost, "/accounts/withdraw", map[string]interface{}{"accountId": id, "amount": 600})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Insufficient funds."}`, w.Body.String())
	assert.Equal(t, "500.00", currentBalance(t, router, id))
}

func TestScenario_DepositAndTransfer(t *testing.T) {
	router := newLedgerRouter(t)
	a := createAccount(t, router, 1000)
	b := createAccount(t, router, 1000)

	w := acctDoRequest(router, http.MethodPost, "/accounts/transfer", map[string]interface{}{
		"sourceAccountId": a, "destinationAccountId": b, "amount": 500,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"sourceAccountBalance":500,"destinationAccountBalance":1500}`, w.Body.String())

	w = acctDoRequest(router, http.MethodPost, "/accounts/deposit", map[string]interface{}{"accountId": a, "amount": 0.25})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"balance":500.25}`, w.Body.String())

	w = acctDoRequest(router, http.MethodPost, "/accounts/transfer", map[string]interface{}{
		"sourceAccountId": a, "destinationAccountId": b, "amount": 10000,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "500.25", currentBalance(t, router, a))
	assert.Equal(t, "1500.00", currentBalance(t, router, b))
}

func TestScenario_UnknownAccount(t *testing.T) {
	router := newLedgerRouter(t)

	w := acctDoRequest(router, http.MethodGet, "/accounts/accounts/current-balance/fake-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Account not found."}`, w.Body.String())

	w = acctDoRequest(router, http.MethodPost, "/accounts/deposit", map[string]interface{}{"accountId": "fake-id", "amount": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	id := createAccount(t, router, 10)
	w = acctDoRequest(router, http.MethodPost, "/accounts/transfer", map[string]interface{}{
		"sourceAccountId": id, "destinationAccountId": "fake-id", "amount": 1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "10.00", currentBalance(t, router, id))
}

func TestScenario_SelfTransferWithDifferentSpellings(t *testing.T) {
	router := newLedgerRouter(t)
	id := createAccount(t, router, 1000)

	w := acctDoRequest(router, http.MethodPost, "/accounts/transfer", map[string]interface{}{
		"sourceAccountId": strings.ToUpper(id), "destinationAccountId": id, "amount": 500,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "1000.00", currentBalance(t, router, id))
	assert.Equal(t, "1000.00", currentBalance(t, router, strings.ToUpper(id)))
}

func TestScenario_BalanceBeyondStorageRange(t *testing.T) {
	router := newLedgerRouter(t)

	w := acctDoRequest(router, http.MethodPost, "/accounts/create-account", map[string]interface{}{"initialBalance": 1e18})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	id := createAccount(t, router, 9e17)
	w = acctDoRequest(router, http.MethodPost, "/accounts/deposit", map[string]interface{}{"accountId": id, "amount": 2e17})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "900000000000000000.00", currentBalance(t, router, id))
}

func TestScenario_ConcurrentWithdrawals(t *testing.T) {
	router := newLedgerRouter(t)
	id := createAccount(t, router, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	codes := map[int]int{}
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := acctDoRequest(router, http.MethodPost, "/accounts/withdraw", map[string]interface{}{"accountId": id, "amount": 7})
			mu.Lock()
			codes[w.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 14, codes[http.StatusOK])
	assert.Equal(t, 11, codes[http.StatusBadRequest])
	assert.Equal(t, "2.00", currentBalance(t, router, id))
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", Health(repository.NewMemoryAccountStore(), zap.NewNop()))
	r.GET("/health-down", Health(failingPinger{err: context.DeadlineExceeded}, zap.NewNop()))

	w := acctDoRequest(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = acctDoRequest(r, http.MethodGet, "/health-down", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, w.Body.String())
}
