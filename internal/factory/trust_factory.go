package factory

import (
	"fmt"

	"github.com/inboxagents/mail-gateway/internal/adapters/trust"
	"github.com/inboxagents/mail-gateway/internal/config"
	"go.uber.org/zap"
)

// TrustFactory creates the trust relationship store
type TrustFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewTrustFactory creates a new trust factory
func NewTrustFactory(cfg *config.Config, logger *zap.Logger) *TrustFactory {
	return &TrustFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTrustStore creates the trust store seeded from configuration
func (f *TrustFactory) CreateTrustStore() (*trust.MemoryStore, error) {
	var seeds []trust.SeedEntry
	if err := f.cfg.UnmarshalKey("security.trust_seed", &seeds); err != nil {
		return nil, fmt.Errorf("invalid trust seed configuration: %w", err)
	}
	return trust.NewMemoryStore(seeds, f.logger), nil
}
