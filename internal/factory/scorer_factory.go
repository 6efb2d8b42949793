package factory

import (
	"fmt"

	"github.com/inboxagents/mail-gateway/internal/adapters/scorer/bedrock"
	"github.com/inboxagents/mail-gateway/internal/adapters/scorer/gemini"
	"github.com/inboxagents/mail-gateway/internal/adapters/scorer/openai"
	"github.com/inboxagents/mail-gateway/internal/config"
	"github.com/inboxagents/mail-gateway/internal/core"
	"github.com/inboxagents/mail-gateway/internal/utils"
	"go.uber.org/zap"
)

// ScorerFactory creates external content scorers
type ScorerFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewScorerFactory creates a new scorer factory
func NewScorerFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ScorerFactory {
	return &ScorerFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateContentScorer creates a content scorer based on the configuration.
// Provider "none" disables external scoring and returns a nil scorer.
func (f *ScorerFactory) CreateContentScorer() (core.ContentScorer, error) {
	scorerCfg := f.cfg.GetScorer()

	switch scorerCfg.Provider {
	case "", "none":
		return nil, nil
	case "bedrock":
		factory := bedrock.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateScorer()
	case "gemini":
		factory := gemini.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateScorer()
	case "openai":
		factory := openai.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateScorer()
	default:
		return nil, fmt.Errorf("unsupported scorer provider: %s", scorerCfg.Provider)
	}
}
