package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Vapi       VapiConfig       `yaml:"vapi" mapstructure:"vapi"`
	Ctps       CtpsConfig       `yaml:"ctps" mapstructure:"ctps"`
	Outscraper OutscraperConfig `yaml:"outscraper" mapstructure:"outscraper"`
	Serper     SerperConfig     `yaml:"serper" mapstructure:"serper"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// VapiConfig holds the voice provider endpoint. Credentials and dial limits
// live in the voice_config store row, not here.
type VapiConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CtpsConfig holds the opt-out registry API settings.
type CtpsConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OutscraperConfig holds the primary discovery source settings.
type OutscraperConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SerperConfig holds the search fallback source settings.
type SerperConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// EnrichConfig configures the enrichment batch.
type EnrichConfig struct {
	FanOut      int    `yaml:"fan_out" mapstructure:"fan_out"`
	ScoringPath string `yaml:"scoring_path" mapstructure:"scoring_path"`
}

// ServerConfig configures the operator HTTP server.
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
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "outreach.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("vapi.base_url", "https://api.vapi.ai")
	v.SetDefault("ctps.base_url", "https://api.tpsservices.co.uk")
	v.SetDefault("outscraper.base_url", "https://api.outscraper.cloud")
	v.SetDefault("outscraper.rate_limit", 5)
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("serper.rate_limit", 2)
	v.SetDefault("enrich.fan_out", 5)

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

// Validate checks that the configuration is complete for the given run mode.
// Modes correspond to command entry points: "import", "enrich", "campaign",
// "serve". All problems are reported at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "import":
		requireStore()
	case "enrich":
		requireStore()
		if c.Outscraper.Key == "" {
			problems = append(problems, "outscraper.key is required")
		}
		if c.Enrich.FanOut < 1 || c.Enrich.FanOut > 50 {
			problems = append(problems, "enrich.fan_out must be between 1 and 50")
		}
		if c.Outscraper.RateLimit <= 0 {
			problems = append(problems, "outscraper.rate_limit must be > 0")
		}
		if c.Serper.Key != "" && c.Serper.RateLimit <= 0 {
			problems = append(problems, "serper.rate_limit must be > 0")
		}
	case "campaign":
		requireStore()
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
