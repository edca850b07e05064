// Package config loads sqlgen configuration from an optional file, SQLGATE_
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/go-sqlgate/core/compiler"
	"github.com/asaidimu/go-sqlgate/core/dialect"
	"github.com/asaidimu/go-sqlgate/core/query"
	"github.com/asaidimu/go-sqlgate/core/security"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "SQLGATE"

type Config struct {
	Dialect          string                         `mapstructure:"dialect"`
	LogLevel         string                         `mapstructure:"log_level"`
	QuoteIdentifiers bool                           `mapstructure:"quote_identifiers"`
	Tables           []string                       `mapstructure:"tables"`
	Policy           security.FilterValidatorConfig `mapstructure:"policy"`
	Cursor           CursorConfig                   `mapstructure:"cursor"`
	Cache            CacheConfig                    `mapstructure:"cache"`
	Limits           LimitsConfig                   `mapstructure:"limits"`
}

type CursorConfig struct {
	// Secret signs cursor tokens. Empty leaves tokens unsigned.
	Secret string `mapstructure:"secret"`
}

type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type LimitsConfig struct {
	Default int `mapstructure:"default"`
	Max     int `mapstructure:"max"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"dialect":           "dialect",
	"log-level":         "log_level",
	"quote-identifiers": "quote_identifiers",
	"cursor-secret":     "cursor.secret",
	"allow-fields":      "policy.allowed_fields",
	"deny-operators":    "policy.denied_operators",
	"max-depth":         "policy.max_depth",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dialect", string(dialect.KindPostgres))
	v.SetDefault("log_level", "info")
	v.SetDefault("quote_identifiers", false)
	v.SetDefault("tables", []string{})
	v.SetDefault("policy.allowed_fields", []string{})
	v.SetDefault("policy.denied_operators", []string{string(query.ComparisonOperatorRegex)})
	v.SetDefault("policy.max_depth", security.DefaultMaxDepth)
	v.SetDefault("cursor.secret", "")
	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("limits.default", 0)
	v.SetDefault("limits.max", 0)
}

// Load reads configuration. path may be empty; flags may be nil. Only flags
// present in flagKeys are bound, and only when the flag set defines them.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := dialect.ParseKind(c.Dialect); err != nil {
		errs = append(errs, err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if _, err := security.NewFilterValidatorFromConfig(c.Policy); err != nil {
		errs = append(errs, fmt.Errorf("policy: %w", err))
	}
	if c.Cache.Size < 0 {
		errs = append(errs, fmt.Errorf("cache.size must not be negative, got %d", c.Cache.Size))
	}
	if c.Limits.Default < 0 || c.Limits.Max < 0 {
		errs = append(errs, errors.New("limits must not be negative"))
	}
	if c.Limits.Max > 0 && c.Limits.Default > c.Limits.Max {
		errs = append(errs, fmt.Errorf("limits.default %d exceeds limits.max %d", c.Limits.Default, c.Limits.Max))
	}
	return errors.Join(errs...)
}

// Logger builds a production zap logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// CursorCodec returns a codec signed with the configured secret.
func (c *Config) CursorCodec() *query.CursorCodec {
	if c.Cursor.Secret == "" {
		return query.NewCursorCodec(nil)
	}
	return query.NewCursorCodec([]byte(c.Cursor.Secret))
}

// CompilerOptions translates the configuration into compiler options.
func (c *Config) CompilerOptions(logger *zap.Logger) (compiler.Options, error) {
	d, err := dialect.Named(c.Dialect)
	if err != nil {
		return compiler.Options{}, err
	}
	policy, err := security.NewFilterValidatorFromConfig(c.Policy)
	if err != nil {
		return compiler.Options{}, err
	}
	return compiler.Options{
		Dialect:          d,
		Policy:           policy,
		CursorCodec:      c.CursorCodec(),
		QuoteIdentifiers: c.QuoteIdentifiers,
		Tables:           c.Tables,
		DefaultLimit:     c.Limits.Default,
		MaxLimit:         c.Limits.Max,
		CacheSize:        c.Cache.Size,
		CacheTTL:         c.Cache.TTL,
		Logger:           logger,
	}, nil
}
