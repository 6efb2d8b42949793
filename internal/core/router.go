package core

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Router classifies the recipient set of an inbound message into a routing
// decision. The recognized address sets come from external configuration;
// the router only needs read access.
type Router struct {
	intelligence map[string]struct{}
	task         map[string]struct{}
	agents       map[string]struct{}
	logger       *zap.Logger
}

// NewRouter creates a router over the configured address sets. Addresses that
// cannot be parsed are skipped with a warning.
func NewRouter(intelligenceAddrs, taskAddrs, agentAddrs []string, logger *zap.Logger) *Router {
	r := &Router{
		intelligence: make(map[string]struct{}, len(intelligenceAddrs)),
		task:         make(map[string]struct{}, len(taskAddrs)),
		agents:       make(map[string]struct{}, len(agentAddrs)),
		logger:       logger,
	}

	normalizeInto := func(raw []string, set map[string]struct{}) {
		for _, a := range raw {
			addr, err := NormalizeAddress(a)
			if err != nil {
				if logger != nil {
					logger.Warn("Skipping unparseable configured address", zap.String("address", a))
				}
				continue
			}
			set[addr.String()] = struct{}{}
		}
	}

	normalizeInto(intelligenceAddrs, r.intelligence)
	normalizeInto(taskAddrs, r.task)
	normalizeInto(agentAddrs, r.agents)

	return r
}

// DetermineRouteByRecipient scans To, Cc then Bcc and matches each recipient
// against the known address classes. Classes are tried in a fixed precedence:
// tenant-scoped intelligence (plus-addressed), exact intelligence, exact
// task, then any other registered agent address, which maps to the
// load-balancer inbox. A recipient appearing in multiple fields is only
// considered once.
func (r *Router) DetermineRouteByRecipient(email *EmailData) RouteDecision {
	recipients := r.dedupRecipients(email)

	for _, rcpt := range recipients {
		if token := r.tenantToken(rcpt); token != "" {
			return RouteDecision{
				Route:          RouteIntelligence,
				TenantToken:    token,
				MatchedAddress: rcpt.String(),
			}
		}
	}

	for _, rcpt := range recipients {
		if _, ok := r.intelligence[rcpt.String()]; ok {
			return RouteDecision{Route: RouteIntelligence, MatchedAddress: rcpt.String()}
		}
	}

	for _, rcpt := range recipients {
		if _, ok := r.task[rcpt.String()]; ok {
			return RouteDecision{Route: RouteTask, MatchedAddress: rcpt.String()}
		}
	}

	for _, rcpt := range recipients {
		if _, ok := r.agents[rcpt.String()]; ok {
			return RouteDecision{Route: RouteLoadBalancer, MatchedAddress: rcpt.String()}
		}
	}

	return RouteDecision{Route: RouteNone}
}

// ExtractTenantToken returns the token of a tagged intelligence address, or
// the empty string otherwise. Display-name-wrapped addresses are tolerated.
func (r *Router) ExtractTenantToken(raw string) string {
	addr, err := NormalizeAddress(raw)
	if err != nil {
		return ""
	}
	return r.tenantToken(addr)
}

// IsTenantScopedIntelligenceAddress reports whether raw is a plus-addressed
// variant of a configured intelligence address.
func (r *Router) IsTenantScopedIntelligenceAddress(raw string) bool {
	return r.ExtractTenantToken(raw) != ""
}

// TenantTokenFromEmail applies ExtractTenantToken across To, Cc and Bcc and
// returns the first match, or the empty string.
func (r *Router) TenantTokenFromEmail(email *EmailData) string {
	for _, rcpt := range r.dedupRecipients(email) {
		if token := r.tenantToken(rcpt); token != "" {
			return token
		}
	}
	return ""
}

// TaskAddresses returns the configured task agent addresses.
func (r *Router) TaskAddresses() []string {
	return sortedKeys(r.task)
}

// IntelligenceAddresses returns the configured intelligence agent addresses.
func (r *Router) IntelligenceAddresses() []string {
	return sortedKeys(r.intelligence)
}

// tenantToken returns the plus-addressing token when the stripped base
// address (tag@domain) is a configured intelligence address.
func (r *Router) tenantToken(addr Address) string {
	tagged := ParseTagged(addr.LocalPart)
	if tagged == nil {
		return ""
	}
	base := Address{LocalPart: tagged.Tag, Domain: addr.Domain}
	if _, ok := r.intelligence[base.String()]; !ok {
		return ""
	}
	return tagged.Token
}

// dedupRecipients normalizes To, Cc and Bcc in that order, dropping
// duplicates and unparseable addresses.
func (r *Router) dedupRecipients(email *EmailData) []Address {
	seen := make(map[string]struct{})
	var out []Address

	appendAll := func(raw []string) {
		for _, a := range raw {
			addr, err := NormalizeAddress(a)
			if err != nil {
				continue
			}
			key := strings.ToLower(addr.String())
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, addr)
		}
	}

	appendAll(email.To)
	appendAll(email.Cc)
	appendAll(email.Bcc)

	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
