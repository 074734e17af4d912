package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultUpstreamTimeout  = 5 * time.Second
	defaultTaxRateBps       = 800
	defaultFreeShipOver     = 5000
	defaultFlatShippingCost = 599
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Pricing  PricingConfig
	Features FeatureFlags
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// UpstreamConfig points at the remote commerce API the session syncs against.
// An empty BaseURL runs the storefront in offline mode: local state only,
// every read served from the hardcoded fallbacks.
type UpstreamConfig struct {
	BaseURL     string
	CallTimeout time.Duration
}

// PricingConfig carries the totals rules in integer cents (basis points for
// the tax rate).
type PricingConfig struct {
	TaxRateBps            int64
	FreeShippingThreshold int64
	FlatShippingFee       int64
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	EnablePaymentIntents bool
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env
// overrides, and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "STOREFRONT_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "STOREFRONT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "STOREFRONT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "STOREFRONT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Upstream: UpstreamConfig{
			BaseURL:     stringWithDefault(lookup, "STOREFRONT_UPSTREAM_BASE_URL", ""),
			CallTimeout: durationWithDefault(lookup, "STOREFRONT_UPSTREAM_TIMEOUT", defaultUpstreamTimeout),
		},
		Pricing: PricingConfig{
			TaxRateBps:            int64WithDefault(lookup, "STOREFRONT_PRICING_TAX_RATE_BPS", defaultTaxRateBps),
			FreeShippingThreshold: int64WithDefault(lookup, "STOREFRONT_PRICING_FREE_SHIPPING_OVER", defaultFreeShipOver),
			FlatShippingFee:       int64WithDefault(lookup, "STOREFRONT_PRICING_FLAT_SHIPPING_FEE", defaultFlatShippingCost),
		},
		Features: FeatureFlags{
			EnablePaymentIntents: boolWithDefault(lookup, "STOREFRONT_FEATURE_PAYMENT_INTENTS", true),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Upstream.CallTimeout <= 0 {
		missing = append(missing, "Upstream.CallTimeout")
	}
	if base := strings.TrimSpace(cfg.Upstream.BaseURL); base != "" {
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			missing = append(missing, "Upstream.BaseURL")
		}
	}
	if cfg.Pricing.TaxRateBps < 0 {
		missing = append(missing, "Pricing.TaxRateBps")
	}
	if cfg.Pricing.FreeShippingThreshold < 0 {
		missing = append(missing, "Pricing.FreeShippingThreshold")
	}
	if cfg.Pricing.FlatShippingFee < 0 {
		missing = append(missing, "Pricing.FlatShippingFee")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func int64WithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
