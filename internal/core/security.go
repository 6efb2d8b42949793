package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SecurityLayer owns per-agent configuration and gates downstream commands
// behind the policy chain. Configuration reads are snapshot-consistent:
// a validation that races with SetAgentConfig evaluates against whichever
// config existed when it was read.
type SecurityLayer struct {
	store     ConfigStore
	evaluator *Evaluator
	audit     AuditSink
	logger    *zap.Logger
}

// NewSecurityLayer creates a security layer over the given configuration
// store. audit may be nil when no audit trail is wanted.
func NewSecurityLayer(store ConfigStore, evaluator *Evaluator, audit AuditSink, logger *zap.Logger) *SecurityLayer {
	return &SecurityLayer{
		store:     store,
		evaluator: evaluator,
		audit:     audit,
		logger:    logger,
	}
}

// SetAgentConfig upserts the configuration for patch.AgentName. Fields the
// patch leaves nil are preserved from the existing configuration, or from
// defaults when the agent was never configured. Unknown policy names are
// rejected before anything is written.
func (s *SecurityLayer) SetAgentConfig(ctx context.Context, patch AgentConfigPatch) (*AgentSecurityConfig, error) {
	if patch.AgentName == "" {
		return nil, errors.New("agent name is required")
	}
	if patch.Policies != nil {
		for _, name := range *patch.Policies {
			if !KnownPolicy(name) {
				return nil, fmt.Errorf("unknown policy %q", name)
			}
		}
	}

	cfg, err := s.store.Get(ctx, patch.AgentName)
	switch {
	case errors.Is(err, ErrConfigNotFound):
		cfg = DefaultAgentConfig(patch.AgentName)
	case err != nil:
		return nil, fmt.Errorf("failed to load existing config: %w", err)
	default:
		cfg = cfg.Clone()
	}

	if patch.Policies != nil {
		cfg.Policies = append([]PolicyName{}, *patch.Policies...)
	}
	for k, v := range patch.CustomSettings {
		if cfg.CustomSettings == nil {
			cfg.CustomSettings = map[string]any{}
		}
		cfg.CustomSettings[k] = v
	}
	if patch.MaxRequestsPerHour != nil {
		cfg.MaxRequestsPerHour = *patch.MaxRequestsPerHour
	}
	if patch.BlockedDomains != nil {
		cfg.BlockedDomains = append([]string{}, *patch.BlockedDomains...)
	}
	if patch.TrustedDomains != nil {
		cfg.TrustedDomains = append([]string{}, *patch.TrustedDomains...)
	}
	if patch.RequireTrust != nil {
		cfg.RequireTrust = *patch.RequireTrust
	}
	if patch.AllowSelfService != nil {
		cfg.AllowSelfService = *patch.AllowSelfService
	}
	if patch.RateLimitPerSender != nil {
		cfg.RateLimitPerSender = *patch.RateLimitPerSender
	}

	if err := s.store.Set(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to store config: %w", err)
	}

	s.logger.Info("Updated agent security config",
		zap.String("agent", cfg.AgentName),
		zap.Int("policies", len(cfg.Policies)))

	return cfg.Clone(), nil
}

// GetAgentConfig returns the configuration for an agent, or ErrConfigNotFound.
func (s *SecurityLayer) GetAgentConfig(ctx context.Context, agentName string) (*AgentSecurityConfig, error) {
	return s.store.Get(ctx, agentName)
}

// ListAgentConfigs returns every stored agent configuration.
func (s *SecurityLayer) ListAgentConfigs(ctx context.Context) ([]*AgentSecurityConfig, error) {
	return s.store.List(ctx)
}

// ValidateRequest runs the agent's policy chain against one email. A missing
// configuration means "no policies, allow"; the method never fails the
// caller, it degrades to a conservative, audited decision.
func (s *SecurityLayer) ValidateRequest(ctx context.Context, email *EmailData, vctx *VisibilityContext, agentName string) *SecurityResult {
	cfg, err := s.store.Get(ctx, agentName)
	if err != nil {
		if !errors.Is(err, ErrConfigNotFound) {
			s.logger.Warn("Config store read failed, evaluating with defaults",
				zap.String("agent", agentName),
				zap.Error(err))
		}
		cfg = DefaultAgentConfig(agentName)
	}

	result := s.evaluator.Evaluate(ctx, email, vctx, cfg)
	s.recordDecision(agentName, email, result)

	if result.Allowed {
		s.logger.Debug("Request allowed",
			zap.String("agent", agentName),
			zap.String("sender", email.From))
	} else {
		s.logger.Info("Request denied",
			zap.String("agent", agentName),
			zap.String("sender", email.From),
			zap.String("policy", string(result.Policy)),
			zap.String("reason", result.Reason),
			zap.Bool("quarantine", result.Quarantine))
	}

	return result
}

func (s *SecurityLayer) recordDecision(agentName string, email *EmailData, result *SecurityResult) {
	if s.audit == nil {
		return
	}
	s.audit.Record(DecisionRecord{
		Timestamp:  time.Now(),
		AgentName:  agentName,
		Sender:     email.From,
		MessageID:  email.MessageID,
		Allowed:    result.Allowed,
		Quarantine: result.Quarantine,
		Policy:     result.Policy,
		Reason:     result.Reason,
	})
}

// SecureCommand wraps an arbitrary downstream command so it only executes
// when the agent's policy chain allows the request.
func (s *SecurityLayer) SecureCommand(agentName string, next Command) Command {
	return &secureCommand{layer: s, agentName: agentName, next: next}
}

type secureCommand struct {
	layer     *SecurityLayer
	agentName string
	next      Command
}

// Process validates first and only forwards to the wrapped command on allow.
// A denial produces a handler-shaped failure without invoking the command.
func (c *secureCommand) Process(ctx context.Context, email *EmailData, vctx *VisibilityContext) (*HandlerResult, error) {
	result := c.layer.ValidateRequest(ctx, email, vctx, c.agentName)
	if !result.Allowed {
		return &HandlerResult{
			Success: false,
			Message: fmt.Sprintf("Request was blocked by security policy: %s", result.Reason),
			Data: map[string]any{
				"securityBlock": true,
				"policy":        string(result.Policy),
				"quarantine":    result.Quarantine,
			},
		}, nil
	}
	return c.next.Process(ctx, email, vctx)
}
