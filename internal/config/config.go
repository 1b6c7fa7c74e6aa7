// Package config defines all configuration for the advisor runtime.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// fields overridable via TAI_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun        bool                    `mapstructure:"dry_run"`
	Venues        map[string]VenueConfig  `mapstructure:"venues"`
	OrderBook     OrderBookConfig         `mapstructure:"order_book"`
	Products      []ProductConfig         `mapstructure:"products"`
	AdvisorGroups map[string]AdvisorGroup `mapstructure:"advisor_groups"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// ProductConfig is one tradeable instrument in the static universe
// advisor-group selectors are matched against. This runtime doesn't
// discover markets on its own; the operator lists them.
type ProductConfig struct {
	Venue  string `mapstructure:"venue"`
	Symbol string `mapstructure:"symbol"`
}

// VenueConfig is one venue's REST endpoint and rate-limit budget, consumed
// by internal/venue/httpadapter.New.
type VenueConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	CreateCapacity   float64       `mapstructure:"create_capacity"`
	CreateRatePerSec float64       `mapstructure:"create_rate_per_sec"`
	CancelCapacity   float64       `mapstructure:"cancel_capacity"`
	CancelRatePerSec float64       `mapstructure:"cancel_rate_per_sec"`
	BookCapacity     float64       `mapstructure:"book_capacity"`
	BookRatePerSec   float64       `mapstructure:"book_rate_per_sec"`
}

// OrderBookConfig points at the order-book query service consumed by
// internal/orderbook/httpclient.
type OrderBookConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// AdvisorGroup is one configured group's raw YAML shape. AdvisorType and
// FactoryType name Go implementations a caller resolves
// through its own registry (advisor/factory code is user-supplied, not
// something a YAML file can construct) — see cmd/advisorctl's resolve step.
type AdvisorGroup struct {
	AdvisorType string         `mapstructure:"advisor_type"`
	FactoryType string         `mapstructure:"factory_type"`
	Products    string         `mapstructure:"products"`
	Config      map[string]any `mapstructure:"config"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides: viper's
// automatic env binding maps a key to a TAI_-prefixed variable with dots
// replaced by underscores, and TAI_DRY_RUN=true or 1 forces DryRun on.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if os.Getenv("TAI_DRY_RUN") == "true" || os.Getenv("TAI_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks that all required fields are present, returning an error
// for the first missing one. Numeric values are not range-checked.
func (c *Config) Validate() error {
	if len(c.Venues) == 0 {
		return fmt.Errorf("at least one entry under venues is required")
	}
	for name, venue := range c.Venues {
		if venue.BaseURL == "" {
			return fmt.Errorf("venues.%s.base_url is required", name)
		}
	}
	if c.OrderBook.BaseURL == "" {
		return fmt.Errorf("order_book.base_url is required")
	}
	if len(c.Products) == 0 {
		return fmt.Errorf("at least one entry under products is required")
	}
	if len(c.AdvisorGroups) == 0 {
		return fmt.Errorf("at least one entry under advisor_groups is required")
	}
	for id, group := range c.AdvisorGroups {
		if group.AdvisorType == "" {
			return fmt.Errorf("advisor_groups.%s.advisor_type is required", id)
		}
		if group.FactoryType == "" {
			return fmt.Errorf("advisor_groups.%s.factory_type is required", id)
		}
		if group.Products == "" {
			return fmt.Errorf("advisor_groups.%s.products is required", id)
		}
	}
	return nil
}
