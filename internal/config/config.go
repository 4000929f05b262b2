package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/dossier-cli/internal/provider"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig                  `yaml:"store" mapstructure:"store"`
	Smarty     SmartyConfig                 `yaml:"smarty" mapstructure:"smarty"`
	Attom      AttomConfig                  `yaml:"attom" mapstructure:"attom"`
	OpenCorp   OpenCorpConfig               `yaml:"opencorp" mapstructure:"opencorp"`
	Endato     EndatoConfig                 `yaml:"endato" mapstructure:"endato"`
	PDL        PDLConfig                    `yaml:"pdl" mapstructure:"pdl"`
	Perplexity PerplexityConfig             `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig              `yaml:"anthropic" mapstructure:"anthropic"`
	Providers  map[string]provider.Override `yaml:"providers" mapstructure:"providers"`
	Quotas     QuotaConfig                  `yaml:"quotas" mapstructure:"quotas"`
	Resilience ResilienceConfig             `yaml:"resilience" mapstructure:"resilience"`
	Fusion     FusionConfig                 `yaml:"fusion" mapstructure:"fusion"`
	Pipeline   PipelineConfig               `yaml:"pipeline" mapstructure:"pipeline"`
	Server     ServerConfig                 `yaml:"server" mapstructure:"server"`
	Log        LogConfig                    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SmartyConfig holds Smarty address-verification credentials.
type SmartyConfig struct {
	AuthID    string `yaml:"auth_id" mapstructure:"auth_id"`
	AuthToken string `yaml:"auth_token" mapstructure:"auth_token"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
}

// AttomConfig holds ATTOM property API settings.
type AttomConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenCorpConfig holds corporate-registry API settings.
type OpenCorpConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// EndatoConfig holds Endato skip-trace API credentials.
type EndatoConfig struct {
	KeyName  string `yaml:"key_name" mapstructure:"key_name"`
	KeyValue string `yaml:"key_value" mapstructure:"key_value"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
}

// PDLConfig holds People Data Labs API settings.
type PDLConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	SummaryModel string `yaml:"summary_model" mapstructure:"summary_model"`
}

// QuotaConfig sets the account-tier allowance layers. Zero disables a layer.
type QuotaConfig struct {
	FirmMonthly int `yaml:"firm_monthly" mapstructure:"firm_monthly"`
	UserMonthly int `yaml:"user_monthly" mapstructure:"user_monthly"`
}

// ResilienceConfig tunes retries, per-provider concurrency, and the
// advisory health signal.
type ResilienceConfig struct {
	MaxAttempts         int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs    int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs        int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BackoffMultiplier   float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	JitterFraction      float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	MaxInFlight         int     `yaml:"max_in_flight" mapstructure:"max_in_flight"`
	RequestsPerSecond   float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	CallTimeoutSecs     int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	HealthWindowSize    int     `yaml:"health_window_size" mapstructure:"health_window_size"`
	StaleFailureRate    float64 `yaml:"stale_failure_rate" mapstructure:"stale_failure_rate"`
	FallbackConsecutive int     `yaml:"fallback_consecutive" mapstructure:"fallback_consecutive"`
	RecoveryAgeSecs     int     `yaml:"recovery_age_secs" mapstructure:"recovery_age_secs"`
}

// FusionConfig tunes the contact-fusion match thresholds.
type FusionConfig struct {
	HighMatch       float64 `yaml:"high_match" mapstructure:"high_match"`
	AcceptableMatch float64 `yaml:"acceptable_match" mapstructure:"acceptable_match"`
}

// PipelineConfig configures run-level behavior.
type PipelineConfig struct {
	MaxChainDepth     int `yaml:"max_chain_depth" mapstructure:"max_chain_depth"`
	MaxContactTargets int `yaml:"max_contact_targets" mapstructure:"max_contact_targets"`
	RunBudgetSecs     int `yaml:"run_budget_secs" mapstructure:"run_budget_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOSSIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dossier.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("smarty.base_url", "https://us-street.api.smarty.com")
	v.SetDefault("attom.base_url", "https://api.gateway.attomdata.com/propertyapi/v1.0.0")
	v.SetDefault("opencorp.base_url", "https://api.opencorporates.com/v0.4")
	v.SetDefault("endato.base_url", "https://devapi.endato.com")
	v.SetDefault("pdl.base_url", "https://api.peopledatalabs.com/v5")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.summary_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("quotas.firm_monthly", 0)
	v.SetDefault("quotas.user_monthly", 0)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 30000)
	v.SetDefault("resilience.backoff_multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.max_in_flight", 2)
	v.SetDefault("resilience.call_timeout_secs", 30)
	v.SetDefault("resilience.health_window_size", 20)
	v.SetDefault("resilience.stale_failure_rate", 0.3)
	v.SetDefault("resilience.fallback_consecutive", 5)
	v.SetDefault("resilience.recovery_age_secs", 60)
	v.SetDefault("fusion.high_match", 0.8)
	v.SetDefault("fusion.acceptable_match", 0.5)
	v.SetDefault("pipeline.max_chain_depth", 3)
	v.SetDefault("pipeline.max_contact_targets", 3)
	v.SetDefault("pipeline.run_budget_secs", 300)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for a given run mode ("enrich" or
// "serve") and returns an aggregate error listing every problem found.
func (c *Config) Validate(mode string) error {
	var problems []string

	common := func() {
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Pipeline.MaxChainDepth < 0 || c.Pipeline.MaxChainDepth > 10 {
			problems = append(problems, "pipeline.max_chain_depth must be between 0 and 10")
		}
		if c.Fusion.HighMatch < c.Fusion.AcceptableMatch {
			problems = append(problems, "fusion.high_match must be >= fusion.acceptable_match")
		}
		if c.Quotas.FirmMonthly < 0 || c.Quotas.UserMonthly < 0 {
			problems = append(problems, "quotas values must be >= 0")
		}
	}

	switch mode {
	case "enrich":
		common()
		if c.Smarty.AuthID == "" || c.Smarty.AuthToken == "" {
			problems = append(problems, "smarty.auth_id and smarty.auth_token are required")
		}
		if c.OpenCorp.Key == "" {
			problems = append(problems, "opencorp.key is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "serve":
		common()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
