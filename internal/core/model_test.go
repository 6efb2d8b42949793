package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewVisibilityContext(t *testing.T) {
	email := &EmailData{
		From: "sender@customer.example.com",
		To:   []string{"tasks@agents.example.com", "colleague@customer.example.com"},
		Cc:   []string{"Boss <boss@customer.example.com>"},
		Bcc:  []string{"archive@customer.example.com"},
	}

	t.Run("directly addressed owner", func(t *testing.T) {
		vctx := NewVisibilityContext(email, "tasks@agents.example.com")
		assert.True(t, vctx.DirectlyAddressed)
		assert.False(t, vctx.Copied)
		assert.False(t, vctx.BlindCopied)
		assert.Equal(t, "sender@customer.example.com", vctx.Sender)
	})

	t.Run("copied owner", func(t *testing.T) {
		vctx := NewVisibilityContext(email, "boss@customer.example.com")
		assert.False(t, vctx.DirectlyAddressed)
		assert.True(t, vctx.Copied)
	})

	t.Run("blind copied owner", func(t *testing.T) {
		vctx := NewVisibilityContext(email, "archive@customer.example.com")
		assert.True(t, vctx.BlindCopied)
	})

	t.Run("uninvolved owner", func(t *testing.T) {
		vctx := NewVisibilityContext(email, "stranger@elsewhere.example.com")
		assert.False(t, vctx.DirectlyAddressed)
		assert.False(t, vctx.Copied)
		assert.False(t, vctx.BlindCopied)
	})

	t.Run("owner matching is canonical", func(t *testing.T) {
		vctx := NewVisibilityContext(email, "tasks@AGENTS.example.COM")
		assert.True(t, vctx.DirectlyAddressed)
	})
}

func TestAgentSecurityConfigClone(t *testing.T) {
	cfg := &AgentSecurityConfig{
		AgentName:      "task",
		Policies:       []PolicyName{PolicyRateLimit},
		BlockedDomains: []string{"spam.example.com"},
		CustomSettings: map[string]any{"external_scan": true},
	}

	clone := cfg.Clone()
	clone.Policies[0] = PolicyContentScanning
	clone.BlockedDomains[0] = "other.example.com"
	clone.CustomSettings["external_scan"] = false

	assert.Equal(t, PolicyRateLimit, cfg.Policies[0])
	assert.Equal(t, "spam.example.com", cfg.BlockedDomains[0])
	assert.Equal(t, true, cfg.CustomSettings["external_scan"])
}

func TestDefaultAgentConfig(t *testing.T) {
	cfg := DefaultAgentConfig("intelligence")
	assert.Equal(t, "intelligence", cfg.AgentName)
	assert.Empty(t, cfg.Policies)
	assert.True(t, cfg.AllowSelfService)
	assert.False(t, cfg.RequireTrust)
	assert.Zero(t, cfg.MaxRequestsPerHour)
}
