package server

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/iwvelando/cultist-circle/pkg/constants"
	"github.com/iwvelando/cultist-circle/pkg/logging"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address       string         `yaml:"address"`
	MaxUploadSize string         `yaml:"maxUploadSize"`
	Logging       logging.Config `yaml:"logging"`
	// CircleConfig points at the cultist-circle configuration. A relative
	// path is taken from the server config's directory. Empty uses built-in
	// defaults.
	CircleConfig string `yaml:"circleConfig"`
	// RequestTimeout bounds a single optimize request. Zero disables it.
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	uploadSizeBytes int64
}

func defaultConfig() *Config {
	return &Config{
		Address:         constants.DefaultServerAddress,
		MaxUploadSize:   strconv.FormatInt(constants.DefaultMaxUploadSizeBytes, 10),
		RequestTimeout:  constants.DefaultRequestTimeout,
		uploadSizeBytes: constants.DefaultMaxUploadSizeBytes,
	}
}

// LoadConfig loads the server configuration from YAML. A missing file yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read server config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server config: %w", err)
	}
	if cfg.CircleConfig != "" && !filepath.IsAbs(cfg.CircleConfig) {
		cfg.CircleConfig = filepath.Join(filepath.Dir(path), cfg.CircleConfig)
	}

	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("invalid server config %s: %w", path, err)
	}
	return cfg, nil
}

// UploadSizeBytes returns the configured upload size in bytes.
func (c *Config) UploadSizeBytes() int64 {
	return c.uploadSizeBytes
}

// normalize fills blank fields and reports every invalid one.
func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Address) == "" {
		c.Address = constants.DefaultServerAddress
	}
	if c.RequestTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("requestTimeout must be non-negative, got %s", c.RequestTimeout))
	}
	if _, levelErr := logging.ParseLevel(c.Logging.Level); levelErr != nil {
		err = multierr.Append(err, levelErr)
	}

	size, sizeErr := ParseSize(c.MaxUploadSize)
	switch {
	case sizeErr != nil:
		err = multierr.Append(err, sizeErr)
	case size <= 0:
		c.uploadSizeBytes = constants.DefaultMaxUploadSizeBytes
	default:
		c.uploadSizeBytes = size
	}
	return err
}

var sizeUnits = map[string]int64{
	"":   1,
	"B":  1,
	"K":  1 << 10,
	"KB": 1 << 10,
	"M":  1 << 20,
	"MB": 1 << 20,
	"G":  1 << 30,
	"GB": 1 << 30,
}

// ParseSize converts a byte count with an optional unit ("256K", "10MB") into
// bytes. A blank value is the default upload size.
func ParseSize(value string) (int64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return constants.DefaultMaxUploadSizeBytes, nil
	}

	unit := strings.TrimLeftFunc(trimmed, func(r rune) bool {
		return unicode.IsDigit(r) || unicode.IsSpace(r)
	})
	number := strings.TrimSpace(strings.TrimSuffix(trimmed, unit))
	if number == "" {
		return 0, fmt.Errorf("invalid size: %s", value)
	}

	multiplier, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("unsupported size unit %q", unit)
	}
	n, err := strconv.ParseInt(number, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", value, err)
	}
	if n > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return n * multiplier, nil
}
