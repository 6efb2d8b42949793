package core

import (
	"context"
	"errors"
)

// ErrConfigNotFound is returned by ConfigStore implementations when no
// configuration exists for an agent.
var ErrConfigNotFound = errors.New("agent security config not found")

// ConfigStore persists per-agent security configuration. Implementations
// guarantee last-write-wins semantics and must never expose a partially
// written config to readers.
type ConfigStore interface {
	// Get retrieves the configuration for an agent, or ErrConfigNotFound.
	Get(ctx context.Context, agentName string) (*AgentSecurityConfig, error)

	// Set upserts the configuration for config.AgentName.
	Set(ctx context.Context, config *AgentSecurityConfig) error

	// List returns all stored configurations.
	List(ctx context.Context) ([]*AgentSecurityConfig, error)

	// Close releases any underlying resources.
	Close() error
}

// TrustStore looks up the trust relationship between an owning identity and
// a sender address.
type TrustStore interface {
	GetTrustStatus(ctx context.Context, ownerIdentity, senderAddress string) (TrustStatus, error)
}

// ContentScore is the verdict of an external content scorer.
type ContentScore struct {
	Suspicious  bool     `json:"suspicious"`
	Score       float64  `json:"score"`
	Patterns    []string `json:"patterns"`
	Explanation string   `json:"explanation"`
	ModelUsed   string   `json:"model_used"`
}

// ContentScorer is an opaque external scorer consulted by the
// content-scanning policy when an agent opts in.
type ContentScorer interface {
	ScoreContent(ctx context.Context, email *EmailData) (*ContentScore, error)
}

// Command is the contract every downstream business handler exposes.
type Command interface {
	Process(ctx context.Context, email *EmailData, vctx *VisibilityContext) (*HandlerResult, error)
}

// AuditSink receives every validation decision.
type AuditSink interface {
	Record(rec DecisionRecord)
}
