// Package trust provides the in-process trust relationship store consulted
// by the trust-relationship policy.
package trust

import (
	"context"
	"strings"
	"sync"

	"github.com/inboxagents/mail-gateway/internal/core"
	"go.uber.org/zap"
)

// SeedEntry is one configured trust relationship.
type SeedEntry struct {
	Owner  string `mapstructure:"owner"`
	Sender string `mapstructure:"sender"`
	Status string `mapstructure:"status"`
}

// MemoryStore is an in-memory implementation of the TrustStore interface,
// keyed by owner identity then sender address.
type MemoryStore struct {
	relations map[string]map[string]core.TrustStatus
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewMemoryStore creates a trust store seeded from configuration.
func NewMemoryStore(seeds []SeedEntry, logger *zap.Logger) *MemoryStore {
	s := &MemoryStore{
		relations: make(map[string]map[string]core.TrustStatus),
		logger:    logger,
	}
	for _, seed := range seeds {
		status := core.TrustStatus(strings.ToLower(strings.TrimSpace(seed.Status)))
		if status != core.TrustStatusTrusted && status != core.TrustStatusBlocked {
			if logger != nil {
				logger.Warn("Skipping trust seed with unrecognized status",
					zap.String("owner", seed.Owner),
					zap.String("sender", seed.Sender),
					zap.String("status", seed.Status))
			}
			continue
		}
		s.set(seed.Owner, seed.Sender, status)
	}

	if len(seeds) > 0 && logger != nil {
		logger.Info("Initialized trust store", zap.Int("relationships", len(seeds)))
	}

	return s
}

// GetTrustStatus reports how owner regards sender. Unrecorded pairs are unknown.
func (s *MemoryStore) GetTrustStatus(ctx context.Context, ownerIdentity, senderAddress string) (core.TrustStatus, error) {
	if err := ctx.Err(); err != nil {
		return core.TrustStatusUnknown, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	senders, ok := s.relations[canonical(ownerIdentity)]
	if !ok {
		return core.TrustStatusUnknown, nil
	}
	status, ok := senders[canonical(senderAddress)]
	if !ok {
		return core.TrustStatusUnknown, nil
	}
	return status, nil
}

// SetTrustStatus records how owner regards sender.
func (s *MemoryStore) SetTrustStatus(ownerIdentity, senderAddress string, status core.TrustStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(ownerIdentity, senderAddress, status)
}

// set assumes the caller holds the write lock (or exclusive access).
func (s *MemoryStore) set(owner, sender string, status core.TrustStatus) {
	key := canonical(owner)
	if s.relations[key] == nil {
		s.relations[key] = make(map[string]core.TrustStatus)
	}
	s.relations[key][canonical(sender)] = status
}

func canonical(raw string) string {
	if addr, err := core.NormalizeAddress(raw); err == nil {
		return strings.ToLower(addr.String())
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
