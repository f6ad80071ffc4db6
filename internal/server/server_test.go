package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/wallet_ledger/internal/config"
	"github.com/congo-pay/wallet_ledger/internal/logging"
	"github.com/congo-pay/wallet_ledger/internal/storage"
)

type testAPI struct {
	t   *testing.T
	app *fiber.App
}

type apiResponse struct {
	Status  int
	Body    map[string]any
	Headers http.Header
}

func newTestAPI(t *testing.T, cache *redis.Client) testAPI {
	t.Helper()
	cfg := config.Config{
		AppName:        "wallet-test",
		AppEnv:         "test",
		JWTSecret:      "test-secret",
		JWTExpiresIn:   time.Hour,
		IdempotencyTTL: time.Minute,
		TokenRateLimit: 3,
	}
	srv, err := New(cfg, storage.NewMemory(), cache, logging.Discard())
	require.NoError(t, err)
	return testAPI{t: t, app: srv.App()}
}

func (a testAPI) do(method, path, token string, body any, headers ...string) apiResponse {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.app.Test(req, 5000)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	out := apiResponse{Status: resp.StatusCode, Headers: resp.Header}
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&out.Body))
	return out
}

func (a testAPI) createAccount(first, last, email string) (id, token string) {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/accounts", "", map[string]any{"firstName": first, "lastName": last, "email": email})
	require.Equal(a.t, http.StatusCreated, res.Status)
	return res.Body["account"].(map[string]any)["id"].(string), res.Body["token"].(string)
}

func errorCode(res apiResponse) string {
	errBody, _ := res.Body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func balanceOf(res apiResponse, key string) float64 {
	return res.Body[key].(map[string]any)["balance"].(float64)
}

func TestCreateAccountAndFetchMe(t *testing.T) {
	api := newTestAPI(t, nil)

	res := api.do(http.MethodPost, "/api/accounts", "", map[string]any{"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com"})
	require.Equal(t, http.StatusCreated, res.Status)
	assert.NotEmpty(t, res.Body["token"])
	assert.Equal(t, float64(0), balanceOf(res, "account"))

	me := api.do(http.MethodGet, "/api/accounts/me", res.Body["token"].(string), nil)
	require.Equal(t, http.StatusOK, me.Status)
	assert.Equal(t, "ada@example.com", me.Body["account"].(map[string]any)["email"])
}

func TestIssueTokenForExistingAccount(t *testing.T) {
	api := newTestAPI(t, nil)
	id, _ := api.createAccount("Token", "Refresh", "token-refresh@example.com")

	res := api.do(http.MethodPost, "/api/auth/token", "", map[string]any{"email": "Token-Refresh@example.com"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, id, res.Body["account"].(map[string]any)["id"])

	me := api.do(http.MethodGet, "/api/accounts/me", res.Body["token"].(string), nil)
	assert.Equal(t, http.StatusOK, me.Status)

	missing := api.do(http.MethodPost, "/api/auth/token", "", map[string]any{"email": "missing@example.com"})
	assert.Equal(t, http.StatusNotFound, missing.Status)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", errorCode(missing))
}

func TestFundAndWithdraw(t *testing.T) {
	api := newTestAPI(t, nil)
	_, token := api.createAccount("Grace", "Hopper", "grace@example.com")

	fund := api.do(http.MethodPost, "/api/accounts/fund", token, map[string]any{"amount": 100.5})
	require.Equal(t, http.StatusOK, fund.Status)
	assert.Equal(t, 100.5, balanceOf(fund, "account"))

	withdraw := api.do(http.MethodPost, "/api/accounts/withdraw", token, map[string]any{"amount": "40.25"})
	require.Equal(t, http.StatusOK, withdraw.Status)
	assert.Equal(t, 60.25, balanceOf(withdraw, "account"))

	tooMuch := api.do(http.MethodPost, "/api/accounts/withdraw", token, map[string]any{"amount": 1000})
	assert.Equal(t, http.StatusBadRequest, tooMuch.Status)
	assert.Equal(t, "INSUFFICIENT_BALANCE", errorCode(tooMuch))
}

func TestTransferBetweenAccounts(t *testing.T) {
	api := newTestAPI(t, nil)
	_, senderToken := api.createAccount("Sender", "One", "sender@example.com")
	recipientID, _ := api.createAccount("Recipient", "Two", "recipient@example.com")

	api.do(http.MethodPost, "/api/accounts/fund", senderToken, map[string]any{"amount": 50})

	res := api.do(http.MethodPost, "/api/accounts/transfer", senderToken, map[string]any{"toAccountId": recipientID, "amount": 20})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, float64(20), res.Body["amount"])
	assert.Equal(t, float64(30), balanceOf(res, "from"))
	assert.Equal(t, float64(20), balanceOf(res, "to"))
}

func TestTransferRejections(t *testing.T) {
	api := newTestAPI(t, nil)
	senderID, senderToken := api.createAccount("Self", "Transfer", "self@example.com")
	recipientID, _ := api.createAccount("Receiver", "User", "receiver@example.com")

	self := api.do(http.MethodPost, "/api/accounts/transfer", senderToken, map[string]any{"toAccountId": senderID, "amount": 5})
	assert.Equal(t, http.StatusBadRequest, self.Status)
	assert.Equal(t, "INVALID_TRANSFER", errorCode(self))

	missing := api.do(http.MethodPost, "/api/accounts/transfer", senderToken, map[string]any{"toAccountId": "non-existent-account-id", "amount": 5})
	assert.Equal(t, http.StatusNotFound, missing.Status)
	assert.Equal(t, "RECIPIENT_NOT_FOUND", errorCode(missing))

	broke := api.do(http.MethodPost, "/api/accounts/transfer", senderToken, map[string]any{"toAccountId": recipientID, "amount": 10})
	assert.Equal(t, http.StatusBadRequest, broke.Status)
	assert.Equal(t, "INSUFFICIENT_BALANCE", errorCode(broke))

	noTarget := api.do(http.MethodPost, "/api/accounts/transfer", senderToken, map[string]any{"amount": 10})
	assert.Equal(t, http.StatusBadRequest, noTarget.Status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(noTarget))
}

func TestAuthenticationRequired(t *testing.T) {
	api := newTestAPI(t, nil)

	anonymous := api.do(http.MethodPost, "/api/accounts/fund", "", map[string]any{"amount": 10})
	assert.Equal(t, http.StatusUnauthorized, anonymous.Status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(anonymous))

	forged := api.do(http.MethodGet, "/api/accounts/me", "invalid.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, forged.Status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(forged))
}

func TestRegistrationValidation(t *testing.T) {
	api := newTestAPI(t, nil)
	payload := map[string]any{"firstName": "Duplicate", "lastName": "User", "email": "dupe@example.com"}

	first := api.do(http.MethodPost, "/api/accounts", "", payload)
	assert.Equal(t, http.StatusCreated, first.Status)

	payload["email"] = "DUPE@example.com"
	duplicate := api.do(http.MethodPost, "/api/accounts", "", payload)
	assert.Equal(t, http.StatusConflict, duplicate.Status)
	assert.Equal(t, "DUPLICATE_EMAIL", errorCode(duplicate))

	malformed := api.do(http.MethodPost, "/api/accounts", "", map[string]any{"firstName": "  ", "lastName": "User", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, malformed.Status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(malformed))
	details := malformed.Body["error"].(map[string]any)["details"].([]any)
	assert.Len(t, details, 2)
}

func TestInvalidAmounts(t *testing.T) {
	api := newTestAPI(t, nil)
	_, token := api.createAccount("Amount", "Validator", "amount@example.com")

	res := api.do(http.MethodPost, "/api/accounts/fund", token, map[string]any{"amount": "12.999"})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "INVALID_AMOUNT", errorCode(res))

	missing := api.do(http.MethodPost, "/api/accounts/fund", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, missing.Status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(missing))

	wrongType := api.do(http.MethodPost, "/api/accounts/fund", token, map[string]any{"amount": true})
	assert.Equal(t, "VALIDATION_ERROR", errorCode(wrongType))
}

func TestStatement(t *testing.T) {
	api := newTestAPI(t, nil)
	_, senderToken := api.createAccount("Statement", "User", "statement@example.com")
	recipientID, _ := api.createAccount("Other", "User", "other@example.com")

	api.do(http.MethodPost, "/api/accounts/fund", senderToken, map[string]any{"amount": 25})
	api.do(http.MethodPost, "/api/accounts/transfer", senderToken, map[string]any{"toAccountId": recipientID, "amount": 5})

	res := api.do(http.MethodGet, "/api/accounts/me/statement?limit=10", senderToken, nil)
	require.Equal(t, http.StatusOK, res.Status)
	txs := res.Body["transactions"].([]any)
	require.Len(t, txs, 2)
	assert.Equal(t, "TRANSFER", txs[0].(map[string]any)["type"])
	assert.Equal(t, "FUND", txs[1].(map[string]any)["type"])
	assert.Nil(t, res.Body["meta"])

	unbounded := api.do(http.MethodGet, "/api/accounts/me/statement", senderToken, nil)
	require.Equal(t, http.StatusOK, unbounded.Status)
	assert.Len(t, unbounded.Body["transactions"].([]any), 2)

	filtered := api.do(http.MethodGet, "/api/accounts/me/statement?type=FUND&limit=1", senderToken, nil)
	require.Equal(t, http.StatusOK, filtered.Status)
	assert.Len(t, filtered.Body["transactions"].([]any), 1)

	for _, query := range []string{"type=INVALID_TYPE", "limit=0", "limit=101", "limit=abc"} {
		bad := api.do(http.MethodGet, "/api/accounts/me/statement?"+query, senderToken, nil)
		assert.Equal(t, http.StatusBadRequest, bad.Status, query)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(bad), query)
	}
}

func TestConcurrentWithdrawalsOverHTTP(t *testing.T) {
	api := newTestAPI(t, nil)
	_, token := api.createAccount("Concurrent", "Tester", "concurrent@example.com")
	api.do(http.MethodPost, "/api/accounts/fund", token, map[string]any{"amount": 100})

	statuses := make([]int, 2)
	var wg sync.WaitGroup
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i] = api.do(http.MethodPost, "/api/accounts/withdraw", token, map[string]any{"amount": 80}).Status
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusBadRequest}, statuses)

	me := api.do(http.MethodGet, "/api/accounts/me", token, nil)
	assert.Equal(t, float64(20), balanceOf(me, "account"))
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, nil)

	res := api.do(http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "NOT_FOUND", errorCode(res))
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, nil)

	res := api.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, res.Status)
	status := res.Body["status"].(map[string]any)
	assert.Equal(t, "disabled", status["redis"])
	assert.Equal(t, "memory", status["storage"].(map[string]any)["backend"])
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestIdempotentFunding(t *testing.T) {
	api := newTestAPI(t, newRedis(t))
	_, token := api.createAccount("Retry", "Client", "retry@example.com")

	first := api.do(http.MethodPost, "/api/accounts/fund", token, map[string]any{"amount": 10}, "Idempotency-Key", "fund-1")
	require.Equal(t, http.StatusOK, first.Status)
	second := api.do(http.MethodPost, "/api/accounts/fund", token, map[string]any{"amount": 10}, "Idempotency-Key", "fund-1")
	require.Equal(t, http.StatusOK, second.Status)
	assert.Equal(t, "true", second.Headers.Get("Idempotent-Replayed"))

	me := api.do(http.MethodGet, "/api/accounts/me", token, nil)
	assert.Equal(t, float64(10), balanceOf(me, "account"), "replayed request must not fund twice")

	reused := api.do(http.MethodPost, "/api/accounts/fund", token, map[string]any{"amount": 99}, "Idempotency-Key", "fund-1")
	assert.Equal(t, http.StatusConflict, reused.Status)
	assert.Equal(t, "IDEMPOTENCY_CONFLICT", errorCode(reused))
}

func TestTokenRateLimit(t *testing.T) {
	api := newTestAPI(t, newRedis(t))
	api.createAccount("Rate", "Limited", "rate@example.com")

	for i := 0; i < 3; i++ {
		res := api.do(http.MethodPost, "/api/auth/token", "", map[string]any{"email": "rate@example.com"})
		require.Equal(t, http.StatusOK, res.Status)
	}
	res := api.do(http.MethodPost, "/api/auth/token", "", map[string]any{"email": "rate@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, res.Status)
	assert.Equal(t, "RATE_LIMITED", errorCode(res))
}
