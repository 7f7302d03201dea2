package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hendrianz14/tripay-callback-service/internal/api"
	"github.com/hendrianz14/tripay-callback-service/internal/api/handler"
	"github.com/hendrianz14/tripay-callback-service/internal/api/middleware"
	"github.com/hendrianz14/tripay-callback-service/internal/config"
	"github.com/hendrianz14/tripay-callback-service/internal/domain"
	"github.com/hendrianz14/tripay-callback-service/internal/gateway"
	"github.com/hendrianz14/tripay-callback-service/internal/service"
	"github.com/hendrianz14/tripay-callback-service/internal/testutil/memstore"
	"github.com/hendrianz14/tripay-callback-service/internal/tripay"
)

const (
	testSecret      = "test-private-key"
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "tripay-callback-service-test"
	testJWTAudience = "tripay-operator-api-test"
)

func setupAPI(store *memstore.Store) http.Handler {
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	cfg := &config.Config{
		HTTPPort:           "0",
		TripayPrivateKey:   testSecret,
		ReferencePrefix:    domain.ReferencePrefix,
		CreditPrice:        decimal.NewFromInt(500),
		CallbackTimeout:    5 * time.Second,
		PublicRateLimitRPS: 1000,
	}
	return api.NewRouter(cfg, zap.NewNop(), nil, nil, store, nil).Routes()
}

func postCallback(t *testing.T, router http.Handler, payload any) *httptest.ResponseRecorder {
	t.Helper()
	req, err := gateway.NewSimulator(testSecret).SignedRequest(http.MethodPost, "/tripay/callback", payload)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCallbackSettlesAndDeduplicates(t *testing.T) {
	store := memstore.New()
	router := setupAPI(store)
	payload := map[string]any{
		"data": map[string]any{
			"merchant_ref": "topup_u1_a_10",
			"status":       "PAID",
			"amount":       3000,
		},
	}

	rec := postCallback(t, router, payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeAck(t, rec)["success"])

	wallet, err := store.GetWallet(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), wallet.Balance)

	entry, err := store.GetLedgerEntryByExternalID(context.Background(), "topup_u1_a_10")
	require.NoError(t, err)
	assert.Equal(t, int64(10), entry.Credits)
	assert.True(t, entry.Amount.Equal(decimal.NewFromInt(3000)))

	inv, err := store.GetInvoiceByReference(context.Background(), "topup_u1_a_10")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)

	// Identical redelivery: acknowledged, nothing credited again.
	rec = postCallback(t, router, payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeAck(t, rec)["success"])

	wallet, err = store.GetWallet(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), wallet.Balance, "balance unchanged on redelivery")
	assert.Equal(t, 1, store.LedgerSize(), "still exactly one ledger entry")
}

type fakeSettledCache struct {
	seen map[string]bool
}

func (c *fakeSettledCache) Seen(ctx context.Context, reference string) bool {
	return c.seen[reference]
}

func (c *fakeSettledCache) MarkSettled(ctx context.Context, reference string) {
	c.seen[reference] = true
}

func TestCallbackCacheHitStillMergesPayload(t *testing.T) {
	store := memstore.New()
	cache := &fakeSettledCache{seen: map[string]bool{}}
	resolver := service.NewResolverService(store, domain.ReferencePrefix, decimal.NewFromInt(500))
	settlement := service.NewSettlementService(store)
	h := handler.NewCallbackHandler(testSecret, resolver, settlement, cache, 5*time.Second)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/tripay/callback", strings.NewReader(body))
		req.Header.Set("X-Callback-Signature", signBody(body))
		rec := httptest.NewRecorder()
		h.Handle(rec, req)
		return rec
	}

	rec := send(`{"merchant_ref":"topup_u1_a_10","status":"PAID","amount":3000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, cache.seen["topup_u1_a_10"], "settlement marks the reference")

	// Redelivery served from the cache: no credit, but the extra payload
	// field must still reach the invoice's audit record.
	rec = send(`{"merchant_ref":"topup_u1_a_10","status":"PAID","amount":3000,"payment_method":"QRIS"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeAck(t, rec)["note"], "already processed")

	inv, err := store.GetInvoiceByReference(context.Background(), "topup_u1_a_10")
	require.NoError(t, err)
	assert.Contains(t, string(inv.RawPayload), `"payment_method":"QRIS"`)
	assert.Equal(t, 1, store.LedgerSize(), "the fast path never credits")

	wallet, err := store.GetWallet(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), wallet.Balance)
}

func TestCallbackMissingSignature(t *testing.T) {
	store := memstore.New()
	router := setupAPI(store)

	req := httptest.NewRequest(http.MethodPost, "/tripay/callback",
		strings.NewReader(`{"merchant_ref":"topup_u1_a_10","status":"PAID"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decodeAck(t, rec)["success"])
	assert.Zero(t, store.Writes(), "no store writes on unauthenticated input")
}

func TestCallbackWrongSignature(t *testing.T) {
	store := memstore.New()
	router := setupAPI(store)

	req := httptest.NewRequest(http.MethodPost, "/tripay/callback",
		strings.NewReader(`{"merchant_ref":"topup_u1_a_10","status":"PAID"}`))
	req.Header.Set("X-Callback-Signature", "00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, store.Writes())
}

func TestCallbackMalformedBody(t *testing.T) {
	store := memstore.New()
	router := setupAPI(store)

	body := `{"broken`
	req := httptest.NewRequest(http.MethodPost, "/tripay/callback", strings.NewReader(body))
	req.Header.Set("X-Callback-Signature", signBody(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, store.Writes())
}

func TestCallbackIgnoresForeignReferences(t *testing.T) {
	store := memstore.New()
	router := setupAPI(store)

	rec := postCallback(t, router, map[string]any{
		"merchant_ref": "order_999_checkout",
		"status":       "PAID",
		"amount":       10000,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeAck(t, rec)
	assert.Equal(t, true, body["success"], "gateway must stop redelivering")
	assert.Contains(t, body["note"], "ignored")
	assert.Zero(t, store.Writes(), "foreign traffic never touches the store")
}

func TestCallbackIgnoresUnresolvableReferences(t *testing.T) {
	store := memstore.New()
	router := setupAPI(store)

	rec := postCallback(t, router, map[string]any{
		"merchant_ref": "topup_u1_nocredits",
		"status":       "PAID",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeAck(t, rec)["success"])
	assert.Zero(t, store.Writes())
}

func TestCallbackPendingDoesNotCredit(t *testing.T) {
	store := memstore.New()
	router := setupAPI(store)

	rec := postCallback(t, router, map[string]any{
		"merchant_ref": "topup_u1_a_10",
		"status":       "UNPAID",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	_, err := store.GetWallet(context.Background(), "u1")
	assert.Error(t, err, "no wallet created for a pending callback")
	assert.Equal(t, 0, store.LedgerSize())

	inv, err := store.GetInvoiceByReference(context.Background(), "topup_u1_a_10")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPending, inv.Status)
}

func TestCallbackStoreFailureIsRetryable(t *testing.T) {
	store := memstore.New()
	router := setupAPI(store)
	store.FailWith(assert.AnError)

	rec := postCallback(t, router, map[string]any{
		"merchant_ref": "topup_u1_a_10",
		"status":       "PAID",
		"amount":       3000,
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decodeAck(t, rec)["success"])
}

func TestCallbackWrongMethod(t *testing.T) {
	router := setupAPI(memstore.New())

	req := httptest.NewRequest(http.MethodGet, "/tripay/callback", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, false, decodeAck(t, rec)["success"])
}

func TestHealthEndpoints(t *testing.T) {
	router := setupAPI(memstore.New())

	for _, path := range []string{"/health", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"ok":true}`, rec.Body.String(), path)
	}
}

func TestOperatorInvoiceLookup(t *testing.T) {
	store := memstore.New()
	router := setupAPI(store)

	rec := postCallback(t, router, map[string]any{
		"merchant_ref": "topup_u1_a_10",
		"status":       "PAID",
		"amount":       3000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices/topup_u1_a_10", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "lookup requires a bearer token")

	req = httptest.NewRequest(http.MethodGet, "/v1/invoices/topup_u1_a_10", nil)
	req.Header.Set("Authorization", "Bearer "+generateOperatorToken(t))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Invoice struct {
			Status string `json:"status"`
		} `json:"invoice"`
		Wallet struct {
			Balance int64 `json:"balance"`
		} `json:"wallet"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.InvoiceStatusPaid, resp.Invoice.Status)
	assert.Equal(t, int64(10), resp.Wallet.Balance)

	req = httptest.NewRequest(http.MethodGet, "/v1/invoices/unknown-ref", nil)
	req.Header.Set("Authorization", "Bearer "+generateOperatorToken(t))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func signBody(body string) string {
	return tripay.Sign(testSecret, []byte(body))
}

func generateOperatorToken(t *testing.T) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "ops-1",
		"role":    "admin",
		"iss":     testJWTIssuer,
		"aud":     testJWTAudience,
		"sub":     "ops-1",
		"iat":     now.Unix(),
		"nbf":     now.Add(-30 * time.Second).Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}
