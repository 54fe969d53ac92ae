// Package config provides configuration loading and management for the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/yourorg/lending-monitor/internal/network"
	"github.com/yourorg/lending-monitor/internal/types"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string `yaml:"port"`

	// Generic RPC endpoint, used for every network without a specific one
	RPCURL string `yaml:"rpc_url"`

	// Network used by status calls and as the monitor default
	DefaultNetwork types.NetworkID `yaml:"default_network"`

	// Network-specific RPC endpoints keyed by network id
	RPCEndpoints map[types.NetworkID]string `yaml:"rpc_endpoints"`

	// Connection and polling behaviour
	RPCTimeout        time.Duration `yaml:"rpc_timeout"`
	BlockPollInterval time.Duration `yaml:"block_poll_interval"`
	BlockSubscribe    bool          `yaml:"block_subscriptions"`
	DialRetries       int           `yaml:"dial_retries"`
	RPCRateLimit      float64       `yaml:"rpc_rate_limit"`
	RPCRateBurst      int           `yaml:"rpc_rate_burst"`

	// History and sweep settings
	MaxHistory       int     `yaml:"max_history"`
	SweepParallelism int     `yaml:"sweep_parallelism"`
	OpportunityAPY   float64 `yaml:"opportunity_apy"`

	// OpenTelemetry endpoint for observability
	OtelEndpoint string `yaml:"otel_endpoint"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns the configuration used when neither a file nor the environment says otherwise.
func Defaults() Config {
	return Config{
		Port:              "8080",
		RPCEndpoints:      map[types.NetworkID]string{},
		RPCTimeout:        15 * time.Second,
		BlockPollInterval: 12 * time.Second,
		BlockSubscribe:    true,
		DialRetries:       2,
		RPCRateLimit:      20,
		RPCRateBurst:      40,
		MaxHistory:        100,
		SweepParallelism:  4,
		OpportunityAPY:    3.0,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load builds a Config from defaults, an optional YAML file named by CONFIG_FILE,
// and finally the environment, which always wins.
func Load() (Config, error) {
	cfg := Defaults()

	if path, ok := GetEnv("CONFIG_FILE"); ok && path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = GetEnvOrDefault("PORT", cfg.Port)
	cfg.RPCURL = GetEnvOrDefault("RPC_URL", cfg.RPCURL)
	cfg.RPCTimeout = GetEnvAsDuration("RPC_TIMEOUT", cfg.RPCTimeout)
	cfg.BlockPollInterval = GetEnvAsDuration("BLOCK_POLL_INTERVAL", cfg.BlockPollInterval)
	cfg.BlockSubscribe = GetEnvAsBool("BLOCK_SUBSCRIPTIONS", cfg.BlockSubscribe)
	cfg.DialRetries = GetEnvAsInt("DIAL_RETRIES", cfg.DialRetries)
	cfg.RPCRateLimit = GetEnvAsFloat("RPC_RATE_LIMIT", cfg.RPCRateLimit)
	cfg.RPCRateBurst = GetEnvAsInt("RPC_RATE_BURST", cfg.RPCRateBurst)
	cfg.MaxHistory = GetEnvAsInt("MAX_HISTORY", cfg.MaxHistory)
	cfg.SweepParallelism = GetEnvAsInt("SWEEP_PARALLELISM", cfg.SweepParallelism)
	cfg.OpportunityAPY = GetEnvAsFloat("OPPORTUNITY_APY", cfg.OpportunityAPY)
	cfg.OtelEndpoint = GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OtelEndpoint)
	cfg.LogLevel = GetEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(GetEnvOrDefault("LOG_FORMAT", cfg.LogFormat))

	for _, d := range network.All() {
		if v, ok := GetEnv(d.RPCEnvKey); ok && v != "" {
			cfg.RPCEndpoints[d.ID] = v
		}
	}

	if v, ok := GetEnv("DEFAULT_NETWORK"); ok && v != "" {
		cfg.DefaultNetwork = types.NetworkID(strings.ToLower(v))
	}
	cfg.DefaultNetwork = cfg.resolveDefaultNetwork()

	if cfg.MaxHistory < 1 {
		cfg.MaxHistory = 1
	}
	if cfg.SweepParallelism < 1 {
		cfg.SweepParallelism = 1
	}

	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if c.RPCEndpoints == nil {
		c.RPCEndpoints = map[types.NetworkID]string{}
	}
	return nil
}

// resolveDefaultNetwork keeps an explicit valid choice, otherwise infers one from RPC_URL.
func (c Config) resolveDefaultNetwork() types.NetworkID {
	if c.DefaultNetwork != "" {
		if network.Valid(string(c.DefaultNetwork)) {
			return c.DefaultNetwork
		}
		logrus.WithField("network", c.DefaultNetwork).Warn("Ignoring unknown DEFAULT_NETWORK")
	}
	if c.RPCURL != "" {
		return network.DetectFromRPC(c.RPCURL)
	}
	return types.NetworkEthereum
}

// Endpoint resolves the RPC URL for a network: network-specific value, then the
// generic RPC_URL, then the provider template from the registry.
func (c Config) Endpoint(id types.NetworkID) (string, error) {
	d, err := network.Get(string(id))
	if err != nil {
		return "", err
	}
	if u := c.RPCEndpoints[id]; u != "" {
		return u, nil
	}
	if c.RPCURL != "" {
		return c.RPCURL, nil
	}
	return d.DefaultRPC, nil
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a bool with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
