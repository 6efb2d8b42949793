package store

import (
	"context"
	"testing"

	"github.com/inboxagents/mail-gateway/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryStoreGetSet(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	_, err := s.Get(ctx, "task")
	assert.ErrorIs(t, err, core.ErrConfigNotFound)

	cfg := &core.AgentSecurityConfig{
		AgentName: "task",
		Policies:  []core.PolicyName{core.PolicyRateLimit},
	}
	require.NoError(t, s.Set(ctx, cfg))

	got, err := s.Get(ctx, "task")
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestMemoryStoreLastWriteWins(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, &core.AgentSecurityConfig{AgentName: "task", MaxRequestsPerHour: 10}))
	require.NoError(t, s.Set(ctx, &core.AgentSecurityConfig{AgentName: "task", MaxRequestsPerHour: 20}))

	got, err := s.Get(ctx, "task")
	require.NoError(t, err)
	assert.Equal(t, 20, got.MaxRequestsPerHour)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	cfg := &core.AgentSecurityConfig{
		AgentName:      "task",
		BlockedDomains: []string{"spam.example.com"},
	}
	require.NoError(t, s.Set(ctx, cfg))

	// Mutating what the caller handed in or got back never touches the store.
	cfg.BlockedDomains[0] = "changed.example.com"

	got, err := s.Get(ctx, "task")
	require.NoError(t, err)
	assert.Equal(t, "spam.example.com", got.BlockedDomains[0])

	got.BlockedDomains[0] = "changed-again.example.com"
	again, err := s.Get(ctx, "task")
	require.NoError(t, err)
	assert.Equal(t, "spam.example.com", again.BlockedDomains[0])
}

func TestMemoryStoreListOrdered(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	for _, name := range []string{"task", "intelligence", "load_balancer"} {
		require.NoError(t, s.Set(ctx, &core.AgentSecurityConfig{AgentName: name}))
	}

	configs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 3)
	assert.Equal(t, "intelligence", configs[0].AgentName)
	assert.Equal(t, "load_balancer", configs[1].AgentName)
	assert.Equal(t, "task", configs[2].AgentName)
}
