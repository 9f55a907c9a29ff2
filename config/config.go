/*
Package config provides blockpush application configuration.

Configuration is read from the optional YAML file, BLOCKPUSH_* environment
variables and command line flags. Environment variable names are formed from
the configuration keys by replacing dots with underscores, e.g.
BLOCKPUSH_PROBE_TIMEOUT for probe.timeout. Durations are either Go duration
strings ("2.5s") or bare integers of milliseconds, lists are either YAML
sequences or comma-separated strings.
*/
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is a prefix of environment variables overriding configuration.
const EnvPrefix = "BLOCKPUSH"

// Config is a root of the application configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Probe   ProbeConfig   `mapstructure:"probe" yaml:"probe"`
	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`
	Chain   ChainConfig   `mapstructure:"chain" yaml:"chain"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig configures application logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=console json"`
}

// ProbeConfig configures block existence probing at the destination read
// endpoint.
type ProbeConfig struct {
	URL     string        `mapstructure:"url" yaml:"url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	Retries int           `mapstructure:"retries" yaml:"retries" validate:"min=1"`
	Stagger time.Duration `mapstructure:"stagger" yaml:"stagger" validate:"min=0"`
}

// GatewayConfig configures content availability checks via public gateways.
type GatewayConfig struct {
	List        []string      `mapstructure:"list" yaml:"list" validate:"min=1,dive,required"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	Backoff     time.Duration `mapstructure:"backoff" yaml:"backoff" validate:"gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"min=0"`
}

// ChainConfig configures access to the Neo blockchain.
type ChainConfig struct {
	RPC      string        `mapstructure:"rpc" yaml:"rpc" validate:"required,url"`
	Wallet   string        `mapstructure:"wallet" yaml:"wallet"`
	Account  string        `mapstructure:"account" yaml:"account"`
	Password string        `mapstructure:"password" yaml:"-"`
	Contract string        `mapstructure:"contract" yaml:"contract"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen" validate:"omitempty,hostname_port"`
}

// Default values of the configuration keys.
var defaults = map[string]any{
	"logging.level":        "info",
	"logging.format":       "console",
	"probe.url":            "http://localhost:8080",
	"probe.timeout":        2500 * time.Millisecond,
	"probe.retries":        3,
	"probe.stagger":        25 * time.Millisecond,
	"gateway.list":         []string{"cloudflare-ipfs.com"},
	"gateway.timeout":      5000 * time.Millisecond,
	"gateway.backoff":      15000 * time.Millisecond,
	"gateway.max_attempts": 0,
	"chain.rpc":            "http://localhost:30333",
	"chain.wallet":         "",
	"chain.account":        "",
	"chain.password":       "",
	"chain.contract":       "",
	"chain.timeout":        15 * time.Second,
	"metrics.listen":       "",
}

// New returns viper instance with default values set and environment
// variables bound. Command line flags may be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	return v
}

// Default returns configuration with all default values.
func Default() *Config {
	cfg, err := Load(New(), "")
	if err != nil {
		// defaults are always valid
		panic(err)
	}
	return cfg
}

// Load reads configuration file by path into v if path is not empty,
// decodes and validates the resulting configuration.
//
// Configuration precedence (highest to lowest):
//  1. flags bound to v
//  2. environment variables (BLOCKPUSH_*)
//  3. configuration file
//  4. default values
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration values.
func Validate(cfg *Config) error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}

	msgs := make([]string, len(errs))
	for i := range errs {
		msgs[i] = fmt.Sprintf("%s: failed on '%s' rule", keyOf(errs[i].Namespace()), errs[i].Tag())
	}

	return errors.New(strings.Join(msgs, "; "))
}

// keyOf converts struct namespace like Config.Gateway.MaxAttempts into
// configuration key gateway.max_attempts.
func keyOf(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}

	t := reflect.TypeOf(Config{})
	for i := range parts {
		name, ind, _ := strings.Cut(parts[i], "[")

		f, ok := t.FieldByName(name)
		if !ok {
			break
		}

		parts[i] = f.Tag.Get("mapstructure")
		if ind != "" {
			parts[i] += "[" + ind
		}

		t = f.Type
		if t.Kind() == reflect.Slice {
			t = t.Elem()
		}
	}

	return strings.Join(parts, ".")
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		listDecodeHook(),
	)
}

// durationDecodeHook converts Go duration strings and bare integers of
// milliseconds to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			v = strings.TrimSpace(v)
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
				return time.Duration(ms) * time.Millisecond, nil
			}
			return time.ParseDuration(v)
		case int:
			return time.Duration(v) * time.Millisecond, nil
		case int64:
			return time.Duration(v) * time.Millisecond, nil
		case uint64:
			return time.Duration(v) * time.Millisecond, nil
		case float64:
			// YAML may decode numbers as float64
			return time.Duration(v * float64(time.Millisecond)), nil
		default:
			return data, nil
		}
	}
}

// listDecodeHook splits comma-separated strings into string lists.
func listDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		s, ok := data.(string)
		if !ok || to != reflect.TypeOf([]string(nil)) {
			return data, nil
		}

		var res []string
		for _, el := range strings.Split(s, ",") {
			if el = strings.TrimSpace(el); el != "" {
				res = append(res, el)
			}
		}

		return res, nil
	}
}
