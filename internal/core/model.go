package core

import (
	"time"
)

// EmailData represents one ingested inbound message. Instances are created
// once by the ingestion layer and never mutated afterwards.
type EmailData struct {
	MessageID  string
	Subject    string
	From       string
	To         []string
	Cc         []string
	Bcc        []string
	Body       string
	ReceivedAt time.Time
	InReplyTo  string
	Headers    map[string][]string
}

// Route identifies the agent family that handles an inbound message.
type Route string

const (
	// RouteIntelligence is the tenant-scoped digest agent.
	RouteIntelligence Route = "intelligence"
	// RouteTask is the task-creation agent.
	RouteTask Route = "task"
	// RouteLoadBalancer is the generic inbox for otherwise unclassified agent mail.
	RouteLoadBalancer Route = "load_balancer"
	// RouteNone means no recognized destination.
	RouteNone Route = ""
)

// RouteDecision is the outcome of classifying an inbound message's recipients.
type RouteDecision struct {
	Route Route `json:"route"`
	// TenantToken is set when the matched address used plus-addressing.
	TenantToken string `json:"tenant_token,omitempty"`
	// MatchedAddress is the canonical recipient address that produced the match.
	MatchedAddress string `json:"matched_address,omitempty"`
}

// VisibilityContext describes how the owning identity saw a message.
// It is derived per evaluation and never persisted.
type VisibilityContext struct {
	Owner             string   `json:"owner"`
	DirectlyAddressed bool     `json:"directly_addressed"`
	Copied            bool     `json:"copied"`
	BlindCopied       bool     `json:"blind_copied"`
	Recipients        []string `json:"recipients"`
	Sender            string   `json:"sender"`
}

// NewVisibilityContext derives the visibility context of owner for email.
func NewVisibilityContext(email *EmailData, owner string) *VisibilityContext {
	vctx := &VisibilityContext{
		Owner:  owner,
		Sender: email.From,
	}

	canonicalOwner := owner
	if addr, err := NormalizeAddress(owner); err == nil {
		canonicalOwner = addr.String()
	}

	contains := func(raw []string) bool {
		found := false
		for _, r := range raw {
			addr, err := NormalizeAddress(r)
			if err != nil {
				continue
			}
			vctx.Recipients = append(vctx.Recipients, addr.String())
			if addr.String() == canonicalOwner {
				found = true
			}
		}
		return found
	}

	vctx.DirectlyAddressed = contains(email.To)
	vctx.Copied = contains(email.Cc)
	vctx.BlindCopied = contains(email.Bcc)

	return vctx
}

// TrustStatus is the verdict of a trust relationship lookup.
type TrustStatus string

const (
	TrustStatusTrusted TrustStatus = "trusted"
	TrustStatusBlocked TrustStatus = "blocked"
	TrustStatusUnknown TrustStatus = "unknown"
)

// AgentSecurityConfig holds the per-agent security policy configuration.
type AgentSecurityConfig struct {
	AgentName          string         `json:"agent_name"`
	Policies           []PolicyName   `json:"policies"`
	CustomSettings     map[string]any `json:"custom_settings,omitempty"`
	MaxRequestsPerHour int            `json:"max_requests_per_hour,omitempty"`
	BlockedDomains     []string       `json:"blocked_domains,omitempty"`
	TrustedDomains     []string       `json:"trusted_domains,omitempty"`
	RequireTrust       bool           `json:"require_trust"`
	AllowSelfService   bool           `json:"allow_self_service"`
	// RateLimitPerSender widens the rate-limit key from the agent name to
	// agent:senderDomain.
	RateLimitPerSender bool `json:"rate_limit_per_sender"`
}

// DefaultAgentConfig returns the configuration an agent gets on first reference.
func DefaultAgentConfig(agentName string) *AgentSecurityConfig {
	return &AgentSecurityConfig{
		AgentName:        agentName,
		Policies:         []PolicyName{},
		CustomSettings:   map[string]any{},
		AllowSelfService: true,
	}
}

// Clone returns a deep copy so readers never observe later mutations.
func (c *AgentSecurityConfig) Clone() *AgentSecurityConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Policies = append([]PolicyName(nil), c.Policies...)
	out.BlockedDomains = append([]string(nil), c.BlockedDomains...)
	out.TrustedDomains = append([]string(nil), c.TrustedDomains...)
	if c.CustomSettings != nil {
		out.CustomSettings = make(map[string]any, len(c.CustomSettings))
		for k, v := range c.CustomSettings {
			out.CustomSettings[k] = v
		}
	}
	return &out
}

// AgentConfigPatch is a partial configuration update. Nil fields are
// preserved from the existing configuration (or defaults).
type AgentConfigPatch struct {
	AgentName          string         `json:"agent_name"`
	Policies           *[]PolicyName  `json:"policies,omitempty"`
	CustomSettings     map[string]any `json:"custom_settings,omitempty"`
	MaxRequestsPerHour *int           `json:"max_requests_per_hour,omitempty"`
	BlockedDomains     *[]string      `json:"blocked_domains,omitempty"`
	TrustedDomains     *[]string      `json:"trusted_domains,omitempty"`
	RequireTrust       *bool          `json:"require_trust,omitempty"`
	AllowSelfService   *bool          `json:"allow_self_service,omitempty"`
	RateLimitPerSender *bool          `json:"rate_limit_per_sender,omitempty"`
}

// RateLimitInfo reports the counter state that accompanied a rate-limit
// policy execution. CurrentCount includes the increment performed for the
// request being evaluated.
type RateLimitInfo struct {
	CurrentCount int `json:"current_count"`
	Limit        int `json:"limit"`
}

// SecurityResult is the outcome of one validation.
type SecurityResult struct {
	Allowed    bool           `json:"allowed"`
	Reason     string         `json:"reason,omitempty"`
	Quarantine bool           `json:"quarantine,omitempty"`
	// Policy names the policy that produced the denial.
	Policy    PolicyName     `json:"policy,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	RateLimit *RateLimitInfo `json:"rate_limit,omitempty"`
}

// HandlerResult is the shape every downstream business command returns.
type HandlerResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// DecisionRecord captures one validation outcome for the audit trail.
type DecisionRecord struct {
	Timestamp   time.Time  `json:"timestamp"`
	AgentName   string     `json:"agent_name"`
	Sender      string     `json:"sender"`
	MessageID   string     `json:"message_id"`
	Allowed     bool       `json:"allowed"`
	Quarantine  bool       `json:"quarantine"`
	Policy      PolicyName `json:"policy,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	TenantToken string     `json:"tenant_token,omitempty"`
}
