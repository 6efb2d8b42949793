package store

import (
	"context"
	"sort"
	"sync"

	"github.com/inboxagents/mail-gateway/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the ConfigStore interface.
// Reads return deep copies, so a caller never observes a concurrent update
// half-applied.
type MemoryStore struct {
	configs map[string]*core.AgentSecurityConfig
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryStore creates an empty in-memory config store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		configs: make(map[string]*core.AgentSecurityConfig),
		logger:  logger,
	}
}

// Get retrieves the configuration for an agent.
func (s *MemoryStore) Get(_ context.Context, agentName string) (*core.AgentSecurityConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[agentName]
	if !ok {
		return nil, core.ErrConfigNotFound
	}
	return cfg.Clone(), nil
}

// Set upserts the configuration for config.AgentName.
func (s *MemoryStore) Set(_ context.Context, config *core.AgentSecurityConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs[config.AgentName] = config.Clone()
	return nil
}

// List returns all stored configurations ordered by agent name.
func (s *MemoryStore) List(_ context.Context) ([]*core.AgentSecurityConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.configs))
	for name := range s.configs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*core.AgentSecurityConfig, 0, len(names))
	for _, name := range names {
		out = append(out, s.configs[name].Clone())
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
