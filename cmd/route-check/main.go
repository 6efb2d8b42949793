package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/inboxagents/mail-gateway/internal/adapters/gateway"
	"github.com/inboxagents/mail-gateway/internal/adapters/store"
	"github.com/inboxagents/mail-gateway/internal/adapters/trust"
	"github.com/inboxagents/mail-gateway/internal/config"
	"github.com/inboxagents/mail-gateway/internal/core"
	"github.com/inboxagents/mail-gateway/internal/logging"
	"go.uber.org/zap"
)

var (
	// Routing flags
	intelligenceAddrs = flag.String("intelligence", "", "Comma-separated intelligence agent addresses")
	taskAddrs         = flag.String("task", "", "Comma-separated task agent addresses")
	agentAddrs        = flag.String("agents", "", "Comma-separated registered agent addresses")

	// Policy flags for the matched agent
	policies         = flag.String("policies", "", "Comma-separated policy names to evaluate")
	maxPerHour       = flag.Int("max-per-hour", 0, "Rate limit ceiling (0 disables)")
	blockedDomains   = flag.String("blocked-domains", "", "Comma-separated blacklisted sender domains")
	trustedDomains   = flag.String("trusted-domains", "", "Comma-separated whitelisted sender domains")
	requireTrust     = flag.Bool("require-trust", false, "Require a trust relationship with the sender")
	allowSelfService = flag.Bool("allow-self-service", true, "Allow unknown senders when trust is required")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		// Create config from command line flags
		cfg = createConfigFromFlags()
	}

	// Read email from file or stdin
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	rawData, err := io.ReadAll(emailReader)
	if err != nil {
		logger.Fatal("Failed to read email", zap.Error(err))
	}

	email, err := gateway.ParseMessage(rawData, "", nil)
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", email.From)
	fmt.Printf("To: %s\n", strings.Join(email.To, ", "))
	fmt.Printf("Subject: %s\n", email.Subject)
	fmt.Printf("Body length: %d bytes\n", len(email.Body))

	// Route the message
	routing := cfg.GetRouting()
	router := core.NewRouter(
		routing.IntelligenceAddresses,
		routing.TaskAddresses,
		routing.AgentAddresses,
		logger,
	)
	decision := router.DetermineRouteByRecipient(email)

	fmt.Printf("\n=== Routing ===\n")
	if decision.Route == core.RouteNone {
		fmt.Printf("Route: none (no recognized agent recipient)\n")
		return
	}
	fmt.Printf("Route: %s\n", decision.Route)
	fmt.Printf("Matched address: %s\n", decision.MatchedAddress)
	if decision.TenantToken != "" {
		fmt.Printf("Tenant token: %s\n", decision.TenantToken)
	}

	// Build the security layer from the flags
	secCfg, err := cfg.GetSecurity()
	if err != nil {
		logger.Fatal("Invalid security configuration", zap.Error(err))
	}

	var seeds []trust.SeedEntry
	if err := cfg.UnmarshalKey("security.trust_seed", &seeds); err != nil {
		logger.Fatal("Invalid trust seed configuration", zap.Error(err))
	}
	trustStore := trust.NewMemoryStore(seeds, logger)

	evaluator := core.NewEvaluator(
		core.NewRateLimitCounter(),
		trustStore,
		nil,
		secCfg.RateWindow,
		secCfg.TrustTimeout,
		logger,
	)
	security := core.NewSecurityLayer(store.NewMemoryStore(logger), evaluator, nil, logger)

	ctx := context.Background()
	agentName := string(decision.Route)

	if patch, ok := patchFromFlags(agentName); ok {
		if _, err := security.SetAgentConfig(ctx, patch); err != nil {
			logger.Fatal("Invalid policy configuration", zap.Error(err))
		}
	}

	// Validate
	startTime := time.Now()
	vctx := core.NewVisibilityContext(email, decision.MatchedAddress)
	result := security.ValidateRequest(ctx, email, vctx, agentName)
	duration := time.Since(startTime)

	fmt.Printf("\n=== Validation ===\n")
	fmt.Printf("Allowed: %t\n", result.Allowed)
	if !result.Allowed {
		fmt.Printf("Policy: %s\n", result.Policy)
		fmt.Printf("Reason: %s\n", result.Reason)
		fmt.Printf("Quarantine: %t\n", result.Quarantine)
	}
	if result.RateLimit != nil {
		fmt.Printf("Rate limit: %d/%d in current window\n", result.RateLimit.CurrentCount, result.RateLimit.Limit)
	}
	fmt.Printf("Processing time: %v\n", duration)
}

// patchFromFlags builds the agent config patch from the policy flags. The
// second return is false when no policy flag was given.
func patchFromFlags(agentName string) (core.AgentConfigPatch, bool) {
	patch := core.AgentConfigPatch{AgentName: agentName}
	set := false

	if *policies != "" {
		names := make([]core.PolicyName, 0)
		for _, p := range strings.Split(*policies, ",") {
			names = append(names, core.PolicyName(strings.TrimSpace(p)))
		}
		patch.Policies = &names
		set = true
	}
	if *maxPerHour > 0 {
		patch.MaxRequestsPerHour = maxPerHour
		set = true
	}
	if *blockedDomains != "" {
		domains := splitTrimmed(*blockedDomains)
		patch.BlockedDomains = &domains
		set = true
	}
	if *trustedDomains != "" {
		domains := splitTrimmed(*trustedDomains)
		patch.TrustedDomains = &domains
		set = true
	}
	if *requireTrust {
		patch.RequireTrust = requireTrust
		patch.AllowSelfService = allowSelfService
		set = true
	}

	return patch, set
}

func splitTrimmed(raw string) []string {
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	if *intelligenceAddrs != "" {
		v.Set("routing.intelligence_addresses", splitTrimmed(*intelligenceAddrs))
	}
	if *taskAddrs != "" {
		v.Set("routing.task_addresses", splitTrimmed(*taskAddrs))
	}
	if *agentAddrs != "" {
		v.Set("routing.agent_addresses", splitTrimmed(*agentAddrs))
	}

	return config.NewFromViper(v)
}
