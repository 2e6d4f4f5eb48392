// Package config loads parcel configuration from YAML files with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. PARCEL_LLM_API_KEY.
const EnvPrefix = "PARCEL"

// Config holds all parcel configuration.
type Config struct {
	LLM     LLMConfig     `yaml:"llm" mapstructure:"llm"`
	Agent   AgentConfig   `yaml:"agent" mapstructure:"agent"`
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`
	Gmail   GmailConfig   `yaml:"gmail" mapstructure:"gmail"`
	Poller  PollerConfig  `yaml:"poller" mapstructure:"poller"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// LLMConfig configures the OpenAI-compatible model endpoint.
type LLMConfig struct {
	Endpoint       string  `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	EmbeddingModel string  `yaml:"embedding_model" mapstructure:"embedding_model"`
	TimeoutSeconds int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	Temperature    float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AgentConfig bounds agent runs.
type AgentConfig struct {
	MaxIterations      int    `yaml:"max_iterations" mapstructure:"max_iterations"`
	ToolTimeoutSeconds int    `yaml:"tool_timeout_seconds" mapstructure:"tool_timeout_seconds"`
	RunTimeoutSeconds  int    `yaml:"run_timeout_seconds" mapstructure:"run_timeout_seconds"`
	SystemPromptPath   string `yaml:"system_prompt_path" mapstructure:"system_prompt_path"`
	MaxQueryLength     int    `yaml:"max_query_length" mapstructure:"max_query_length"`
}

// BackendConfig points at the store API.
type BackendConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// GmailConfig holds OAuth client settings.
type GmailConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	RedirectURL  string `yaml:"redirect_url" mapstructure:"redirect_url"`
	TokenPath    string `yaml:"token_path" mapstructure:"token_path"`
}

// PollerConfig controls the inbox poller.
type PollerConfig struct {
	Enabled         bool `yaml:"enabled" mapstructure:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds" mapstructure:"interval_seconds"`
	MaxResults      int  `yaml:"max_results" mapstructure:"max_results"`
}

// ServerConfig holds listener addresses.
type ServerConfig struct {
	Addr                   string `yaml:"addr" mapstructure:"addr"`
	GRPCAddr               string `yaml:"grpc_addr" mapstructure:"grpc_addr"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

// CatalogConfig configures the optional Qdrant product index.
type CatalogConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Host       string  `yaml:"host" mapstructure:"host"`
	Port       int     `yaml:"port" mapstructure:"port"`
	APIKey     string  `yaml:"api_key" mapstructure:"api_key"`
	Collection string  `yaml:"collection" mapstructure:"collection"`
	Dimension  int     `yaml:"dimension" mapstructure:"dimension"`
	TopK       int     `yaml:"top_k" mapstructure:"top_k"`
	MinScore   float32 `yaml:"min_score" mapstructure:"min_score"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Endpoint:       "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			TimeoutSeconds: 60,
			Temperature:    0,
		},
		Agent: AgentConfig{
			MaxIterations:      10,
			ToolTimeoutSeconds: 30,
			RunTimeoutSeconds:  300,
			MaxQueryLength:     20000,
		},
		Backend: BackendConfig{
			BaseURL:        "http://localhost:3000/api",
			TimeoutSeconds: 15,
			MaxRetries:     2,
		},
		Gmail: GmailConfig{
			RedirectURL: "http://localhost:8000/auth/google/callback",
			TokenPath:   "token.json",
		},
		Poller: PollerConfig{
			Enabled:         true,
			IntervalSeconds: 120,
			MaxResults:      1,
		},
		Server: ServerConfig{
			Addr:                   ":8000",
			GRPCAddr:               ":8001",
			ShutdownTimeoutSeconds: 10,
		},
		Catalog: CatalogConfig{
			Enabled:    false,
			Host:       "localhost",
			Port:       6334,
			Collection: "products",
			Dimension:  1536,
			TopK:       3,
			MinScore:   0.3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path. Missing keys take their defaults and
// PARCEL_* environment variables override the file.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return decode(v)
}

// LoadFromPaths loads the first existing file in paths. With none present it
// returns defaults plus environment overrides.
func LoadFromPaths(paths ...string) (*Config, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return decode(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

// setDefaults registers every key so AutomaticEnv can override keys absent
// from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("llm.endpoint", d.LLM.Endpoint)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.embedding_model", d.LLM.EmbeddingModel)
	v.SetDefault("llm.timeout_seconds", d.LLM.TimeoutSeconds)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)

	v.SetDefault("agent.max_iterations", d.Agent.MaxIterations)
	v.SetDefault("agent.tool_timeout_seconds", d.Agent.ToolTimeoutSeconds)
	v.SetDefault("agent.run_timeout_seconds", d.Agent.RunTimeoutSeconds)
	v.SetDefault("agent.system_prompt_path", d.Agent.SystemPromptPath)
	v.SetDefault("agent.max_query_length", d.Agent.MaxQueryLength)

	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.timeout_seconds", d.Backend.TimeoutSeconds)
	v.SetDefault("backend.max_retries", d.Backend.MaxRetries)

	v.SetDefault("gmail.client_id", d.Gmail.ClientID)
	v.SetDefault("gmail.client_secret", d.Gmail.ClientSecret)
	v.SetDefault("gmail.redirect_url", d.Gmail.RedirectURL)
	v.SetDefault("gmail.token_path", d.Gmail.TokenPath)

	v.SetDefault("poller.enabled", d.Poller.Enabled)
	v.SetDefault("poller.interval_seconds", d.Poller.IntervalSeconds)
	v.SetDefault("poller.max_results", d.Poller.MaxResults)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.grpc_addr", d.Server.GRPCAddr)
	v.SetDefault("server.shutdown_timeout_seconds", d.Server.ShutdownTimeoutSeconds)

	v.SetDefault("catalog.enabled", d.Catalog.Enabled)
	v.SetDefault("catalog.host", d.Catalog.Host)
	v.SetDefault("catalog.port", d.Catalog.Port)
	v.SetDefault("catalog.api_key", d.Catalog.APIKey)
	v.SetDefault("catalog.collection", d.Catalog.Collection)
	v.SetDefault("catalog.dimension", d.Catalog.Dimension)
	v.SetDefault("catalog.top_k", d.Catalog.TopK)
	v.SetDefault("catalog.min_score", d.Catalog.MinScore)

	v.SetDefault("logging.level", d.Logging.Level)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.LLM.Endpoint == "" {
		errs = append(errs, errors.New("llm.endpoint is required"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.Agent.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("agent.max_iterations must be at least 1, got %d", c.Agent.MaxIterations))
	}
	if c.Agent.ToolTimeoutSeconds < 0 || c.Agent.RunTimeoutSeconds < 0 {
		errs = append(errs, errors.New("agent timeouts must not be negative"))
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	if c.Backend.MaxRetries < 0 {
		errs = append(errs, errors.New("backend.max_retries must not be negative"))
	}
	if c.Poller.IntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("poller.interval_seconds must be at least 1, got %d", c.Poller.IntervalSeconds))
	}
	if c.Catalog.Enabled && c.Catalog.Dimension < 1 {
		errs = append(errs, errors.New("catalog.dimension must be positive when the catalog is enabled"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Seconds converts a whole-second setting to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
