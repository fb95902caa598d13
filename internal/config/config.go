// Package config defines the data structures related to configuration and
// includes functions for loading and validating it.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iwvelando/cultist-circle/internal/catalog"
	"github.com/iwvelando/cultist-circle/internal/selector"
	"github.com/iwvelando/cultist-circle/pkg/constants"
	"github.com/iwvelando/cultist-circle/pkg/logging"
	"github.com/iwvelando/cultist-circle/pkg/validation"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Configuration holds all configuration for cultist-circle.
type Configuration struct {
	Threshold int64          `mapstructure:"threshold"`
	MaxItems  int            `mapstructure:"maxItems"`
	Selector  SelectorConfig `mapstructure:"selector"`
	Catalog   CatalogConfig  `mapstructure:"catalog"`
	Logging   logging.Config `mapstructure:"logging"`
	Output    OutputConfig   `mapstructure:"output"`
}

// SelectorConfig holds the search policy and the category restriction applied
// to candidates.
type SelectorConfig struct {
	selector.Policy `mapstructure:",squash"`
	Categories      []string `mapstructure:"categories"`
}

// CatalogConfig describes where item prices come from.
type CatalogConfig struct {
	Mode              string        `mapstructure:"mode"` // pve, pvp
	GraphQLURL        string        `mapstructure:"graphqlURL"`
	MarketURL         string        `mapstructure:"marketURL"`
	APIKey            string        `mapstructure:"apiKey"`
	MarketTags        []string      `mapstructure:"marketTags"`
	IgnoredItems      []string      `mapstructure:"ignoredItems"`
	CacheTTL          time.Duration `mapstructure:"cacheTTL"`
	RequestsPerMinute int           `mapstructure:"requestsPerMinute"`
	Redis             RedisConfig   `mapstructure:"redis"`
}

// RedisConfig enables the shared snapshot cache when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `mapstructure:"format"` // pretty, csv, json
}

// UsesMarket reports whether PvP prices come from the REST market API rather
// than the GraphQL catalog.
func (c CatalogConfig) UsesMarket() bool {
	return c.APIKey != ""
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	policy := selector.DefaultPolicy()
	v.SetDefault("threshold", constants.DefaultThreshold)
	v.SetDefault("maxItems", constants.DefaultMaxItems)
	v.SetDefault("selector.maxSlots", policy.MaxSlots)
	v.SetDefault("selector.slack", policy.Slack)
	v.SetDefault("selector.minContributionPercent", policy.MinContributionPercent)
	v.SetDefault("selector.candidateLimit", policy.CandidateLimit)
	v.SetDefault("selector.topChoices", policy.TopChoices)
	v.SetDefault("selector.maxValueAxis", policy.MaxValueAxis)
	v.SetDefault("selector.shuffle", policy.Shuffle)
	v.SetDefault("selector.categories", []string{})
	v.SetDefault("catalog.mode", catalog.ModePVE)
	v.SetDefault("catalog.graphqlURL", catalog.DefaultGraphQLURL)
	v.SetDefault("catalog.marketURL", catalog.DefaultMarketURL)
	v.SetDefault("catalog.apiKey", "")
	v.SetDefault("catalog.cacheTTL", catalog.DefaultCacheTTL)
	v.SetDefault("catalog.requestsPerMinute", constants.DefaultRequestsPerMinute)
	v.SetDefault("catalog.redis.addr", "")
	v.SetDefault("catalog.redis.password", "")
	v.SetDefault("catalog.redis.db", 0)
	v.SetDefault("catalog.redis.prefix", constants.DefaultRedisPrefix)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	return &configuration, nil
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Values can be overridden from the environment, e.g.
// CULTIST_CATALOG_APIKEY.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config, %w", err)
	}
	return decode(v)
}

// Default returns the configuration used when no file is given, with
// environment overrides applied.
func Default() (*Configuration, error) {
	return decode(newViper())
}

// Validate reports every hard configuration problem at once.
func (c *Configuration) Validate() error {
	var err error
	if c.Threshold < 0 {
		err = multierr.Append(err, fmt.Errorf("threshold must be non-negative, got %d", c.Threshold))
	}
	if c.MaxItems < 0 || c.MaxItems > c.Selector.MaxSlots {
		err = multierr.Append(err, fmt.Errorf("maxItems must be within 0-%d, got %d", c.Selector.MaxSlots, c.MaxItems))
	}
	if c.Selector.Slack >= 0 && c.Threshold > c.Selector.MaxValueAxis-c.Selector.Slack {
		err = multierr.Append(err, fmt.Errorf("threshold %d plus slack %d exceeds maxValueAxis %d",
			c.Threshold, c.Selector.Slack, c.Selector.MaxValueAxis))
	}
	err = multierr.Append(err, c.Selector.Validate())
	err = multierr.Append(err, validation.ValidateMode(c.Catalog.Mode))
	if c.Catalog.CacheTTL < 0 {
		err = multierr.Append(err, fmt.Errorf("catalog cacheTTL must be non-negative, got %s", c.Catalog.CacheTTL))
	}
	if c.Catalog.RequestsPerMinute < 0 {
		err = multierr.Append(err, fmt.Errorf("catalog requestsPerMinute must be non-negative, got %d", c.Catalog.RequestsPerMinute))
	}
	if c.Catalog.Redis.DB < 0 {
		err = multierr.Append(err, fmt.Errorf("catalog redis db must be non-negative, got %d", c.Catalog.Redis.DB))
	}
	if _, lvlErr := logging.ParseLevel(c.Logging.Level); lvlErr != nil {
		err = multierr.Append(err, lvlErr)
	}
	err = multierr.Append(err, validation.ValidateOutputFormat(c.Output.Format))
	return err
}

// Warnings returns configuration choices that are allowed but probably not
// intended.
func (c *Configuration) Warnings() []string {
	var warnings []string
	if c.Threshold == 0 {
		warnings = append(warnings, "threshold is 0, every request resolves to an empty selection")
	}
	if c.MaxItems == 0 && c.Threshold > 0 {
		warnings = append(warnings, "maxItems is 0, only pinned items can reach the threshold")
	}
	if c.Selector.CandidateLimit == 0 {
		warnings = append(warnings, "candidateLimit is 0, the search considers the whole catalog and may be slow")
	}
	if !c.Selector.Shuffle {
		warnings = append(warnings, "shuffle is disabled, equal-cost selections always resolve the same way")
	}
	if c.Catalog.Mode == catalog.ModePVE && c.Catalog.UsesMarket() {
		warnings = append(warnings, "apiKey is only used for pvp prices, pve always uses the GraphQL catalog")
	}
	if c.Catalog.Mode == catalog.ModePVP && len(c.Catalog.MarketTags) == 0 && c.Catalog.UsesMarket() {
		warnings = append(warnings, "marketTags is empty, every market item becomes a candidate")
	}
	return warnings
}
