// Package constants provides shared constants for the cultist-circle application.
package constants

import "time"

// Circle defaults
const (
	// DefaultThreshold is the base value most circle rewards are keyed on
	DefaultThreshold int64 = 400000

	// HighValueThreshold guarantees the high value reward pool
	HighValueThreshold int64 = 350001

	// DefaultMaxItems is the number of sacrifice slots in the circle
	DefaultMaxItems = 5
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the machine-readable JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix namespaces configuration overrides taken from the environment
	EnvPrefix = "CULTIST"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum optimize request body size (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultRequestTimeout bounds a single optimize request
	DefaultRequestTimeout = 30 * time.Second
)

// Catalog defaults
const (
	// DefaultRequestsPerMinute throttles calls to the remote catalogs
	DefaultRequestsPerMinute = 30

	// DefaultRedisPrefix namespaces shared catalog snapshots
	DefaultRedisPrefix = "cultist-circle"
)
