package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConfigStore is a minimal in-memory ConfigStore for exercising the
// security layer without the adapter packages.
type fakeConfigStore struct {
	configs map[string]*AgentSecurityConfig
	getErr  error
	setErr  error
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{configs: make(map[string]*AgentSecurityConfig)}
}

func (s *fakeConfigStore) Get(_ context.Context, agentName string) (*AgentSecurityConfig, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	cfg, ok := s.configs[agentName]
	if !ok {
		return nil, ErrConfigNotFound
	}
	return cfg.Clone(), nil
}

func (s *fakeConfigStore) Set(_ context.Context, cfg *AgentSecurityConfig) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.configs[cfg.AgentName] = cfg.Clone()
	return nil
}

func (s *fakeConfigStore) List(_ context.Context) ([]*AgentSecurityConfig, error) {
	out := make([]*AgentSecurityConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, cfg.Clone())
	}
	return out, nil
}

func (s *fakeConfigStore) Close() error { return nil }

type recordingSink struct {
	records []DecisionRecord
}

func (r *recordingSink) Record(rec DecisionRecord) {
	r.records = append(r.records, rec)
}

type recordingCommand struct {
	calls  int
	result *HandlerResult
}

func (c *recordingCommand) Process(_ context.Context, _ *EmailData, _ *VisibilityContext) (*HandlerResult, error) {
	c.calls++
	return c.result, nil
}

func newTestSecurityLayer(store ConfigStore, sink AuditSink) *SecurityLayer {
	evaluator := newTestEvaluator(nil, nil)
	return NewSecurityLayer(store, evaluator, sink, zap.NewNop())
}

func TestSetAgentConfigCreatesWithDefaults(t *testing.T) {
	store := newFakeConfigStore()
	layer := newTestSecurityLayer(store, nil)

	maxPerHour := 50
	cfg, err := layer.SetAgentConfig(context.Background(), AgentConfigPatch{
		AgentName:          "task",
		MaxRequestsPerHour: &maxPerHour,
	})
	require.NoError(t, err)

	assert.Equal(t, "task", cfg.AgentName)
	assert.Equal(t, 50, cfg.MaxRequestsPerHour)
	// Untouched fields come from defaults.
	assert.Empty(t, cfg.Policies)
	assert.True(t, cfg.AllowSelfService)
}

func TestSetAgentConfigMergePreservesUnsetFields(t *testing.T) {
	store := newFakeConfigStore()
	layer := newTestSecurityLayer(store, nil)
	ctx := context.Background()

	policies := []PolicyName{PolicyRateLimit, PolicyContentScanning}
	maxPerHour := 10
	_, err := layer.SetAgentConfig(ctx, AgentConfigPatch{
		AgentName:          "task",
		Policies:           &policies,
		MaxRequestsPerHour: &maxPerHour,
		CustomSettings:     map[string]any{"external_scan": true},
	})
	require.NoError(t, err)

	// A later patch that only changes the ceiling keeps everything else.
	newMax := 20
	cfg, err := layer.SetAgentConfig(ctx, AgentConfigPatch{
		AgentName:          "task",
		MaxRequestsPerHour: &newMax,
	})
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.MaxRequestsPerHour)
	assert.Equal(t, policies, cfg.Policies)
	assert.Equal(t, true, cfg.CustomSettings["external_scan"])
}

func TestSetAgentConfigMergesCustomSettingsKeywise(t *testing.T) {
	store := newFakeConfigStore()
	layer := newTestSecurityLayer(store, nil)
	ctx := context.Background()

	_, err := layer.SetAgentConfig(ctx, AgentConfigPatch{
		AgentName:      "task",
		CustomSettings: map[string]any{"external_scan": true, "notes": "a"},
	})
	require.NoError(t, err)

	cfg, err := layer.SetAgentConfig(ctx, AgentConfigPatch{
		AgentName:      "task",
		CustomSettings: map[string]any{"notes": "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, true, cfg.CustomSettings["external_scan"])
	assert.Equal(t, "b", cfg.CustomSettings["notes"])
}

func TestSetAgentConfigRejectsUnknownPolicy(t *testing.T) {
	store := newFakeConfigStore()
	layer := newTestSecurityLayer(store, nil)

	policies := []PolicyName{PolicyRateLimit, "virus-scanning"}
	_, err := layer.SetAgentConfig(context.Background(), AgentConfigPatch{
		AgentName: "task",
		Policies:  &policies,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "virus-scanning")

	// Nothing was written.
	_, err = layer.GetAgentConfig(context.Background(), "task")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestSetAgentConfigRequiresAgentName(t *testing.T) {
	layer := newTestSecurityLayer(newFakeConfigStore(), nil)
	_, err := layer.SetAgentConfig(context.Background(), AgentConfigPatch{})
	require.Error(t, err)
}

func TestValidateRequestMissingConfigAllows(t *testing.T) {
	sink := &recordingSink{}
	layer := newTestSecurityLayer(newFakeConfigStore(), sink)

	email := cleanEmail("someone@customer.example.com")
	result := layer.ValidateRequest(context.Background(), email, testVctx(email), "task")

	assert.True(t, result.Allowed)
	require.Len(t, sink.records, 1)
	assert.True(t, sink.records[0].Allowed)
	assert.Equal(t, "task", sink.records[0].AgentName)
}

func TestValidateRequestStoreFailureFallsBackToDefaults(t *testing.T) {
	store := newFakeConfigStore()
	store.getErr = errors.New("backend down")
	layer := newTestSecurityLayer(store, nil)

	email := cleanEmail("someone@customer.example.com")
	result := layer.ValidateRequest(context.Background(), email, testVctx(email), "task")
	assert.True(t, result.Allowed)
}

func TestValidateRequestDenialIsAudited(t *testing.T) {
	store := newFakeConfigStore()
	sink := &recordingSink{}
	layer := newTestSecurityLayer(store, sink)
	ctx := context.Background()

	policies := []PolicyName{PolicyDomainBlacklist}
	blocked := []string{"spam.example.com"}
	_, err := layer.SetAgentConfig(ctx, AgentConfigPatch{
		AgentName:      "task",
		Policies:       &policies,
		BlockedDomains: &blocked,
	})
	require.NoError(t, err)

	email := cleanEmail("sender@spam.example.com")
	result := layer.ValidateRequest(ctx, email, testVctx(email), "task")

	assert.False(t, result.Allowed)
	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.False(t, rec.Allowed)
	assert.Equal(t, PolicyDomainBlacklist, rec.Policy)
	assert.Equal(t, "sender@spam.example.com", rec.Sender)
	assert.Equal(t, email.MessageID, rec.MessageID)
}

func TestSecureCommandBlocksWithoutInvoking(t *testing.T) {
	store := newFakeConfigStore()
	layer := newTestSecurityLayer(store, nil)
	ctx := context.Background()

	policies := []PolicyName{PolicyDomainWhitelist}
	_, err := layer.SetAgentConfig(ctx, AgentConfigPatch{
		AgentName: "task",
		Policies:  &policies,
	})
	require.NoError(t, err)

	next := &recordingCommand{result: &HandlerResult{Success: true, Message: "done"}}
	cmd := layer.SecureCommand("task", next)

	email := cleanEmail("sender@anywhere.example.com")
	result, err := cmd.Process(ctx, email, testVctx(email))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "blocked by security policy")
	assert.Equal(t, true, result.Data["securityBlock"])
	assert.Equal(t, string(PolicyDomainWhitelist), result.Data["policy"])
	assert.Equal(t, 0, next.calls)
}

func TestSecureCommandForwardsVerbatimOnAllow(t *testing.T) {
	layer := newTestSecurityLayer(newFakeConfigStore(), nil)

	want := &HandlerResult{Success: true, Message: "created task 42", Data: map[string]any{"id": 42}}
	next := &recordingCommand{result: want}
	cmd := layer.SecureCommand("task", next)

	email := cleanEmail("someone@customer.example.com")
	result, err := cmd.Process(context.Background(), email, testVctx(email))
	require.NoError(t, err)

	assert.Same(t, want, result)
	assert.Equal(t, 1, next.calls)
}
