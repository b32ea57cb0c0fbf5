package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the quote command configuration, loadable from environment
// variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Scenario    string `usage:"Path to the quote scenario YAML file" flag:"scenario"`
	DatabaseURL string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL); inline scenario data is used when empty" flag:"database-url"`
	Output      string `default:"-" usage:"Breakdown output path, - for stdout" flag:"output"`
	Migrate     bool   `default:"false" usage:"Apply the schema before quoting" flag:"migrate"`
	// PrefetchTimeout bounds loading SKUs and gift certificates.
	PrefetchTimeout time.Duration `default:"10s" usage:"Timeout for prefetching lookups from the database" flag:"prefetch-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Scenario == "" {
		return errors.New("scenario path is required: set --scenario or KART_SCENARIO")
	}
	if c.PrefetchTimeout <= 0 {
		return errors.Errorf("prefetch timeout must be positive, got %s", c.PrefetchTimeout)
	}
	if c.Migrate && c.DatabaseURL == "" {
		return errors.New("migrate requires a database URL")
	}
	return nil
}

// applyPlatformDefaults maps the standard DATABASE_URL environment variable
// to the KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.Output == "" {
		c.Output = "-"
	}
}
