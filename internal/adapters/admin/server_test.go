package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inboxagents/mail-gateway/internal/adapters/store"
	"github.com/inboxagents/mail-gateway/internal/adapters/trust"
	"github.com/inboxagents/mail-gateway/internal/audit"
	"github.com/inboxagents/mail-gateway/internal/config"
	"github.com/inboxagents/mail-gateway/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *trust.MemoryStore) {
	t.Helper()

	logger := zap.NewNop()
	trustStore := trust.NewMemoryStore(nil, logger)
	evaluator := core.NewEvaluator(core.NewRateLimitCounter(), trustStore, nil, time.Hour, time.Second, logger)
	auditLog := audit.NewLog(100)
	security := core.NewSecurityLayer(store.NewMemoryStore(logger), evaluator, auditLog, logger)

	srv := NewServer(config.AdminConfig{Enabled: true}, security, auditLog, trustStore, logger)
	return srv, trustStore
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAgentConfigEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	// Unknown agent has no config yet.
	rec := doJSON(t, handler, http.MethodGet, "/agents/task/config", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Create it.
	rec = doJSON(t, handler, http.MethodPut, "/agents/task/config", map[string]any{
		"policies":              []string{"rate-limit", "domain-blacklist"},
		"max_requests_per_hour": 50,
		"blocked_domains":       []string{"spam.example.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg core.AgentSecurityConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "task", cfg.AgentName)
	assert.Equal(t, 50, cfg.MaxRequestsPerHour)
	assert.Equal(t, []core.PolicyName{core.PolicyRateLimit, core.PolicyDomainBlacklist}, cfg.Policies)

	// Read it back.
	rec = doJSON(t, handler, http.MethodGet, "/agents/task/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Replace just the policy list.
	rec = doJSON(t, handler, http.MethodPatch, "/agents/task/policies", map[string]any{
		"policies": []string{"content-scanning"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, []core.PolicyName{core.PolicyContentScanning}, cfg.Policies)
	// The rest of the config survived.
	assert.Equal(t, 50, cfg.MaxRequestsPerHour)
}

func TestPutConfigRejectsUnknownPolicy(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPut, "/agents/task/config", map[string]any{
		"policies": []string{"virus-scanning"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "virus-scanning")
}

func TestBulkConfig(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/agents/bulk", map[string]any{
		"agents": []string{"task", "intelligence"},
		"config": map[string]any{
			"policies": []string{"rate-limit"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, agent := range []string{"task", "intelligence"} {
		rec = doJSON(t, handler, http.MethodGet, "/agents/"+agent+"/config", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/agents/bulk", map[string]any{
		"agents": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPut, "/agents/task/config", map[string]any{
		"policies":        []string{"domain-blacklist"},
		"blocked_domains": []string{"spam.example.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/validate", map[string]any{
		"agent": "task",
		"email": map[string]any{
			"from":    "sender@spam.example.com",
			"to":      []string{"tasks@agents.example.com"},
			"subject": "hello",
			"body":    "hello",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result core.SecurityResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Allowed)
	assert.Equal(t, core.PolicyDomainBlacklist, result.Policy)

	// Validation decisions land in the audit trail.
	rec = doJSON(t, handler, http.MethodGet, "/audit?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var auditResp struct {
		Decisions []audit.Entry `json:"decisions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auditResp))
	require.Len(t, auditResp.Decisions, 1)
	assert.Equal(t, "sender@spam.example.com", auditResp.Decisions[0].Sender)
}

func TestValidateRequiresAgent(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/validate", map[string]any{
		"email": map[string]any{"from": "a@b.example.com"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPolicyCatalogEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/policies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Policies []core.PolicyDescription `json:"policies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Policies, 5)
}

func TestPutTrust(t *testing.T) {
	srv, trustStore := newTestServer(t)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPut, "/trust", map[string]any{
		"owner":  "tasks@agents.example.com",
		"sender": "boss@customer.example.com",
		"status": "trusted",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	status, err := trustStore.GetTrustStatus(context.Background(), "tasks@agents.example.com", "boss@customer.example.com")
	require.NoError(t, err)
	assert.Equal(t, core.TrustStatusTrusted, status)

	rec = doJSON(t, handler, http.MethodPut, "/trust", map[string]any{
		"owner":  "tasks@agents.example.com",
		"sender": "boss@customer.example.com",
		"status": "friendly",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
