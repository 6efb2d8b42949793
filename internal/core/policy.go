package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// PolicyName identifies one of the closed set of security policies.
type PolicyName string

const (
	PolicyRateLimit         PolicyName = "rate-limit"
	PolicyDomainBlacklist   PolicyName = "domain-blacklist"
	PolicyDomainWhitelist   PolicyName = "domain-whitelist"
	PolicyContentScanning   PolicyName = "content-scanning"
	PolicyTrustRelationship PolicyName = "trust-relationship"
)

// PolicyDescription is one entry of the policy catalogue exposed to operators.
type PolicyDescription struct {
	Name        PolicyName `json:"name"`
	Description string     `json:"description"`
}

// PolicyCatalog lists every available policy with a description.
func PolicyCatalog() []PolicyDescription {
	return []PolicyDescription{
		{PolicyRateLimit, "Limits the number of requests per agent (optionally per sender domain) within a rolling hour."},
		{PolicyDomainBlacklist, "Denies senders whose domain appears in the agent's blocked domain list."},
		{PolicyDomainWhitelist, "Denies senders whose domain is not in the agent's trusted domain list. An empty list denies all."},
		{PolicyContentScanning, "Scans subject and body for suspicious patterns and quarantines matches."},
		{PolicyTrustRelationship, "Requires an established trust relationship between the owning identity and the sender."},
	}
}

// KnownPolicy reports whether name is a member of the policy set.
func KnownPolicy(name PolicyName) bool {
	switch name {
	case PolicyRateLimit, PolicyDomainBlacklist, PolicyDomainWhitelist,
		PolicyContentScanning, PolicyTrustRelationship:
		return true
	}
	return false
}

// contentPattern is one suspicious-content heuristic. Expressions are matched
// against case-folded text.
type contentPattern struct {
	name string
	re   *regexp.Regexp
}

var suspiciousPatterns = []contentPattern{
	{"urgency", regexp.MustCompile(`\b(urgent|immediate action|act now|right away|within 24 hours|final (notice|warning))\b`)},
	{"financial-transfer", regexp.MustCompile(`\b(wire transfer|bank transfer|money transfer|payment request|gift cards?|bitcoin|western union|routing number|invoice attached)\b`)},
	{"credential-harvesting", regexp.MustCompile(`\b(verify your (account|password|identity)|confirm your (account|password)|login credentials|click (here|the link) to (verify|unlock|restore)|account (suspended|locked|compromised))\b`)},
}

var foldCaser = cases.Fold()

// Evaluator runs the configured policy chain for one inbound email.
// Policies execute in the order listed by the agent configuration and the
// first denial short-circuits the rest. A policy that cannot evaluate is
// logged and treated as an allow for that policy only.
type Evaluator struct {
	counter      *RateLimitCounter
	trust        TrustStore
	scorer       ContentScorer
	rateWindow   time.Duration
	trustTimeout time.Duration
	logger       *zap.Logger
}

// NewEvaluator creates a policy evaluator. trust and scorer may be nil when
// the corresponding external collaborators are not configured.
func NewEvaluator(
	counter *RateLimitCounter,
	trust TrustStore,
	scorer ContentScorer,
	rateWindow time.Duration,
	trustTimeout time.Duration,
	logger *zap.Logger,
) *Evaluator {
	if rateWindow <= 0 {
		rateWindow = time.Hour
	}
	if trustTimeout <= 0 {
		trustTimeout = 2 * time.Second
	}
	return &Evaluator{
		counter:      counter,
		trust:        trust,
		scorer:       scorer,
		rateWindow:   rateWindow,
		trustTimeout: trustTimeout,
		logger:       logger,
	}
}

// Evaluate runs the agent's policy chain. An empty chain allows.
func (e *Evaluator) Evaluate(ctx context.Context, email *EmailData, vctx *VisibilityContext, cfg *AgentSecurityConfig) *SecurityResult {
	var rateInfo *RateLimitInfo

	for _, name := range cfg.Policies {
		result, err := e.evaluatePolicy(ctx, name, email, vctx, cfg)
		if err != nil {
			e.logger.Warn("Policy could not evaluate, passing through",
				zap.String("policy", string(name)),
				zap.String("agent", cfg.AgentName),
				zap.Error(err))
			continue
		}
		if result.RateLimit != nil {
			rateInfo = result.RateLimit
		}
		if !result.Allowed {
			result.Policy = name
			return result
		}
	}

	return &SecurityResult{Allowed: true, RateLimit: rateInfo}
}

// evaluatePolicy dispatches a single named policy. Unknown names are rejected
// at configuration-write time; one slipping through evaluates as an error.
func (e *Evaluator) evaluatePolicy(ctx context.Context, name PolicyName, email *EmailData, vctx *VisibilityContext, cfg *AgentSecurityConfig) (*SecurityResult, error) {
	switch name {
	case PolicyRateLimit:
		return e.evaluateRateLimit(email, cfg)
	case PolicyDomainBlacklist:
		return e.evaluateDomainBlacklist(email, cfg)
	case PolicyDomainWhitelist:
		return e.evaluateDomainWhitelist(email, cfg)
	case PolicyContentScanning:
		return e.evaluateContentScanning(ctx, email, cfg)
	case PolicyTrustRelationship:
		return e.evaluateTrustRelationship(ctx, email, vctx, cfg), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

// evaluateRateLimit increments the agent's counter and denies when the
// post-increment count exceeds the configured ceiling. No ceiling means allow.
func (e *Evaluator) evaluateRateLimit(email *EmailData, cfg *AgentSecurityConfig) (*SecurityResult, error) {
	if cfg.MaxRequestsPerHour <= 0 {
		return &SecurityResult{Allowed: true}, nil
	}

	key := cfg.AgentName
	if cfg.RateLimitPerSender {
		sender, err := NormalizeAddress(email.From)
		if err != nil {
			return nil, fmt.Errorf("rate-limit key: %w", err)
		}
		key = cfg.AgentName + ":" + sender.Domain
	}

	count := e.counter.Increment(key, e.rateWindow)
	info := &RateLimitInfo{CurrentCount: count, Limit: cfg.MaxRequestsPerHour}

	if count > cfg.MaxRequestsPerHour {
		return &SecurityResult{
			Allowed:   false,
			Reason:    fmt.Sprintf("rate limit exceeded: %d requests in the current window (limit %d)", count, cfg.MaxRequestsPerHour),
			RateLimit: info,
			Metadata:  map[string]any{"key": key},
		}, nil
	}

	return &SecurityResult{Allowed: true, RateLimit: info}, nil
}

func (e *Evaluator) evaluateDomainBlacklist(email *EmailData, cfg *AgentSecurityConfig) (*SecurityResult, error) {
	sender, err := NormalizeAddress(email.From)
	if err != nil {
		return nil, fmt.Errorf("domain-blacklist: %w", err)
	}

	for _, blocked := range cfg.BlockedDomains {
		if sender.Domain == normalizeDomain(blocked) {
			return &SecurityResult{
				Allowed:  false,
				Reason:   fmt.Sprintf("%s is blacklisted", sender.Domain),
				Metadata: map[string]any{"sender_domain": sender.Domain},
			}, nil
		}
	}

	return &SecurityResult{Allowed: true}, nil
}

// evaluateDomainWhitelist denies unless the sender's domain is trusted. An
// empty whitelist denies everything: agents opt senders in explicitly.
func (e *Evaluator) evaluateDomainWhitelist(email *EmailData, cfg *AgentSecurityConfig) (*SecurityResult, error) {
	sender, err := NormalizeAddress(email.From)
	if err != nil {
		return nil, fmt.Errorf("domain-whitelist: %w", err)
	}

	for _, trusted := range cfg.TrustedDomains {
		if sender.Domain == normalizeDomain(trusted) {
			return &SecurityResult{Allowed: true}, nil
		}
	}

	return &SecurityResult{
		Allowed:  false,
		Reason:   fmt.Sprintf("%s is not in whitelist", sender.Domain),
		Metadata: map[string]any{"sender_domain": sender.Domain},
	}, nil
}

// evaluateContentScanning matches subject and body against the suspicious
// pattern heuristics. When the agent opts in via the external_scan custom
// setting and nothing matched locally, the external scorer gets a second
// opinion; scorer failures degrade to the heuristic verdict.
func (e *Evaluator) evaluateContentScanning(ctx context.Context, email *EmailData, cfg *AgentSecurityConfig) (*SecurityResult, error) {
	text := foldCaser.String(email.Subject + "\n" + email.Body)

	var matched []string
	for _, p := range suspiciousPatterns {
		if p.re.MatchString(text) {
			matched = append(matched, p.name)
		}
	}

	if len(matched) > 0 {
		return &SecurityResult{
			Allowed:    false,
			Reason:     "suspicious content detected",
			Quarantine: true,
			Metadata:   map[string]any{"matched_patterns": matched},
		}, nil
	}

	if e.scorer != nil && boolSetting(cfg.CustomSettings, "external_scan") {
		score, err := e.scorer.ScoreContent(ctx, email)
		if err != nil {
			e.logger.Warn("External content scorer failed, keeping heuristic verdict",
				zap.String("agent", cfg.AgentName),
				zap.Error(err))
			return &SecurityResult{Allowed: true}, nil
		}
		if score.Suspicious {
			return &SecurityResult{
				Allowed:    false,
				Reason:     "suspicious content detected by external scorer",
				Quarantine: true,
				Metadata: map[string]any{
					"matched_patterns": score.Patterns,
					"external_score":   score.Score,
					"model":            score.ModelUsed,
					"explanation":      score.Explanation,
				},
			}, nil
		}
	}

	return &SecurityResult{Allowed: true}, nil
}

// evaluateTrustRelationship consults the external trust store when the agent
// requires trust. The lookup is bounded by the evaluator's trust timeout and
// fails closed: a lookup that errors or times out denies the request.
func (e *Evaluator) evaluateTrustRelationship(ctx context.Context, email *EmailData, vctx *VisibilityContext, cfg *AgentSecurityConfig) *SecurityResult {
	if !cfg.RequireTrust {
		return &SecurityResult{Allowed: true}
	}

	if e.trust == nil {
		return &SecurityResult{
			Allowed: false,
			Reason:  "trust relationship required but no trust store is configured",
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, e.trustTimeout)
	defer cancel()

	status, err := e.trust.GetTrustStatus(lookupCtx, vctx.Owner, email.From)
	if err != nil {
		reason := "trust lookup failed; sender treated as untrusted"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "trust lookup timed out; sender treated as untrusted"
		}
		e.logger.Warn("Trust lookup failed",
			zap.String("agent", cfg.AgentName),
			zap.String("sender", email.From),
			zap.Error(err))
		return &SecurityResult{
			Allowed:  false,
			Reason:   reason,
			Metadata: map[string]any{"error": err.Error()},
		}
	}

	switch status {
	case TrustStatusTrusted:
		return &SecurityResult{Allowed: true}
	case TrustStatusBlocked:
		return &SecurityResult{
			Allowed:  false,
			Reason:   "sender is blocked by trust relationship",
			Metadata: map[string]any{"trust_status": string(status)},
		}
	default:
		// First contact: unknown senders pass only when the agent allows
		// self-service onboarding.
		if cfg.AllowSelfService {
			return &SecurityResult{Allowed: true}
		}
		return &SecurityResult{
			Allowed:  false,
			Reason:   "no trust relationship with sender",
			Metadata: map[string]any{"trust_status": string(status)},
		}
	}
}

func normalizeDomain(domain string) string {
	return foldCaser.String(strings.TrimSpace(domain))
}

func boolSetting(settings map[string]any, key string) bool {
	if settings == nil {
		return false
	}
	v, ok := settings[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
