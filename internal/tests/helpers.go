// Package tests holds the container-backed integration suite that drives the
// HTTP API against Postgres and fake partner services.
package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/partners"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestClient wraps HTTP calls to the settlement API.
type TestClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type apiResponse struct {
	Status  int             `json:"-"`
	Headers http.Header     `json:"-"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func (c *TestClient) do(t *testing.T, method, path string, body any, headers map[string]string) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := apiResponse{Status: resp.StatusCode, Headers: resp.Header}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func (c *TestClient) RegisterClaim(t *testing.T, number, claimType, amount string) apiResponse {
	return c.do(t, http.MethodPost, "/api/v1/claims", map[string]any{
		"claim_number":  number,
		"claim_type":    claimType,
		"policy_number": "POL-2024-17",
		"subject_ref":   "1HGCM82633A004352",
		"currency":      "USD",
		"claim_amount":  amount,
	}, nil)
}

// Settle sends a settlement with a fresh idempotency key unless one is given.
func (c *TestClient) Settle(t *testing.T, claimNumber, amount, key string) apiResponse {
	if key == "" {
		key = "it-" + uuid.NewString()
	}
	return c.do(t, http.MethodPost, "/api/v1/claims/"+claimNumber+"/settlements", map[string]any{
		"amount":         amount,
		"payment_method": "BANK_TRANSFER",
	}, map[string]string{"Idempotency-Key": key})
}

func (c *TestClient) GetClaim(t *testing.T, claimNumber string) apiResponse {
	return c.do(t, http.MethodGet, "/api/v1/claims/"+claimNumber, nil, nil)
}

// fakePartners serves every partner endpoint. The payment processor honours
// idempotency keys and can be switched into an outage.
type fakePartners struct {
	processorDown atomic.Bool

	mu            sync.Mutex
	disbursements map[string]partners.DisbursementResponse
}

func newFakePartners() *fakePartners {
	return &fakePartners{disbursements: make(map[string]partners.DisbursementResponse)}
}

func (f *fakePartners) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/vehicles/verifications", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, partners.VehicleVerificationResponse{VerificationID: "VER-" + uuid.NewString(), Status: "VERIFIED"})
	})
	r.Post("/api/v1/loss-history/checks", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, partners.LossHistoryResponse{ReportID: "LH-" + uuid.NewString(), Status: "CLEAR"})
	})
	r.Post("/api/v1/coverage/ratings", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, partners.CoverageResponse{RatingID: "RT-" + uuid.NewString(), Covered: true})
	})
	r.Post("/api/v1/disbursements", f.disburse)
	return r
}

func (f *fakePartners) disburse(w http.ResponseWriter, r *http.Request) {
	if f.processorDown.Load() {
		respondJSON(w, http.StatusServiceUnavailable, partners.ErrorResponse{Err: "unavailable", Message: "maintenance window"})
		return
	}

	key := r.Header.Get("Idempotency-Key")
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.disbursements[key]; ok {
		respondJSON(w, http.StatusOK, prev)
		return
	}
	resp := partners.DisbursementResponse{
		TransactionID: "PP-" + uuid.NewString(),
		Status:        "SETTLED",
		ProcessedAt:   time.Now().UTC(),
	}
	f.disbursements[key] = resp
	respondJSON(w, http.StatusCreated, resp)
}

func (f *fakePartners) DisbursementCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.disbursements)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
