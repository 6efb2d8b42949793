package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/inboxagents/mail-gateway/internal/adapters/admin"
	"github.com/inboxagents/mail-gateway/internal/adapters/gateway"
	"github.com/inboxagents/mail-gateway/internal/adapters/trust"
	"github.com/inboxagents/mail-gateway/internal/audit"
	"github.com/inboxagents/mail-gateway/internal/config"
	"github.com/inboxagents/mail-gateway/internal/core"
	"github.com/inboxagents/mail-gateway/internal/factory"
	"github.com/inboxagents/mail-gateway/internal/logging"
	"github.com/inboxagents/mail-gateway/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewScorerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTrustFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register agent config store
	if err := container.Provide(func(f *factory.StoreFactory) (core.ConfigStore, error) {
		return f.CreateConfigStore()
	}); err != nil {
		return nil, err
	}

	// Register external content scorer
	if err := container.Provide(func(f *factory.ScorerFactory) (core.ContentScorer, error) {
		return f.CreateContentScorer()
	}); err != nil {
		return nil, err
	}

	// Register trust store, both as its concrete type (for the admin API)
	// and as the core port
	if err := container.Provide(func(f *factory.TrustFactory) (*trust.MemoryStore, error) {
		return f.CreateTrustStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *trust.MemoryStore) core.TrustStore {
		return s
	}); err != nil {
		return nil, err
	}

	// Register security tuning knobs
	if err := container.Provide(func(cfg *config.Config) (config.SecurityConfig, error) {
		return cfg.GetSecurity()
	}); err != nil {
		return nil, err
	}

	// Register rate limit counter
	if err := container.Provide(core.NewRateLimitCounter); err != nil {
		return nil, err
	}

	// Register policy evaluator
	if err := container.Provide(func(
		counter *core.RateLimitCounter,
		trustStore core.TrustStore,
		scorer core.ContentScorer,
		secCfg config.SecurityConfig,
		logger *zap.Logger,
	) *core.Evaluator {
		return core.NewEvaluator(counter, trustStore, scorer, secCfg.RateWindow, secCfg.TrustTimeout, logger)
	}); err != nil {
		return nil, err
	}

	// Register audit log
	if err := container.Provide(func(secCfg config.SecurityConfig) *audit.Log {
		return audit.NewLog(secCfg.AuditLogSize)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(l *audit.Log) core.AuditSink {
		return l
	}); err != nil {
		return nil, err
	}

	// Register security layer
	if err := container.Provide(func(
		store core.ConfigStore,
		evaluator *core.Evaluator,
		sink core.AuditSink,
		logger *zap.Logger,
	) *core.SecurityLayer {
		return core.NewSecurityLayer(store, evaluator, sink, logger)
	}); err != nil {
		return nil, err
	}

	// Register recipient router
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *core.Router {
		routing := cfg.GetRouting()
		return core.NewRouter(
			routing.IntelligenceAddresses,
			routing.TaskAddresses,
			routing.AgentAddresses,
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register SMTP gateway
	if err := container.Provide(func(
		cfg *config.Config,
		router *core.Router,
		security *core.SecurityLayer,
		logger *zap.Logger,
	) *gateway.Gateway {
		return gateway.NewGateway(cfg.GetServer(), router, security, logger)
	}); err != nil {
		return nil, err
	}

	// Register admin API server
	if err := container.Provide(func(
		cfg *config.Config,
		security *core.SecurityLayer,
		auditLog *audit.Log,
		trustStore *trust.MemoryStore,
		logger *zap.Logger,
	) *admin.Server {
		return admin.NewServer(cfg.GetAdmin(), security, auditLog, trustStore, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
