package config

import "time"

// RoutingConfig represents the recognized agent address sets
type RoutingConfig struct {
	IntelligenceAddresses []string
	TaskAddresses         []string
	AgentAddresses        []string
}

// SecurityConfig represents the security layer tuning knobs
type SecurityConfig struct {
	RateWindow   time.Duration
	TrustTimeout time.Duration
	AuditLogSize int
}

// StoreConfig represents the agent config store backend selection
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// ScorerConfig represents the external content scorer selection
type ScorerConfig struct {
	Provider string
}

// ServerConfig represents the SMTP gateway settings
type ServerConfig struct {
	ListenAddress   string
	Hostname        string
	UpstreamAddress string
	UpstreamPort    int
	UpstreamEnabled bool
	RouteHeader     string
	TenantHeader    string
	ResultHeader    string
}

// AdminConfig represents the operator HTTP API settings
type AdminConfig struct {
	Enabled       bool
	ListenAddress string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetRouting returns the routing configuration
func (c *Config) GetRouting() RoutingConfig {
	return RoutingConfig{
		IntelligenceAddresses: c.GetStringSlice("routing.intelligence_addresses"),
		TaskAddresses:         c.GetStringSlice("routing.task_addresses"),
		AgentAddresses:        c.GetStringSlice("routing.agent_addresses"),
	}
}

// GetSecurity returns the security configuration
func (c *Config) GetSecurity() (SecurityConfig, error) {
	rateWindow, err := c.GetDuration("security.rate_window")
	if err != nil {
		return SecurityConfig{}, err
	}
	trustTimeout, err := c.GetDuration("security.trust_timeout")
	if err != nil {
		return SecurityConfig{}, err
	}
	return SecurityConfig{
		RateWindow:   rateWindow,
		TrustTimeout: trustTimeout,
		AuditLogSize: c.GetInt("security.audit_log_size"),
	}, nil
}

// GetStore returns the config store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// GetScorer returns the content scorer configuration
func (c *Config) GetScorer() ScorerConfig {
	return ScorerConfig{
		Provider: c.GetString("scorer.provider"),
	}
}

// GetServer returns the SMTP gateway configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:   c.GetString("server.listen_address"),
		Hostname:        c.GetString("server.hostname"),
		UpstreamAddress: c.GetString("server.upstream.address"),
		UpstreamPort:    c.GetInt("server.upstream.port"),
		UpstreamEnabled: c.GetBool("server.upstream.enabled"),
		RouteHeader:     c.GetString("server.headers.route"),
		TenantHeader:    c.GetString("server.headers.tenant"),
		ResultHeader:    c.GetString("server.headers.result"),
	}
}

// GetAdmin returns the admin API configuration
func (c *Config) GetAdmin() AdminConfig {
	return AdminConfig{
		Enabled:       c.GetBool("admin.enabled"),
		ListenAddress: c.GetString("admin.listen_address"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}
