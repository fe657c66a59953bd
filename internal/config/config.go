// Package config loads the sessionstore settings from a YAML file and the
// environment. Environment variables win over the file, the file wins over
// Default.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/sessionstore/internal/logging"
	"github.com/aretw0/sessionstore/pkg/adapters/redis"
	"github.com/aretw0/sessionstore/pkg/session"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. SESSIONSTORE_REDIS_URL.
const EnvPrefix = "SESSIONSTORE_"

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrParsingConfig = errors.New("failed to parse configuration")
)

// Config holds the store and server settings.
type Config struct {
	Namespace   string        `yaml:"namespace" env:"NAMESPACE"`
	Redis       redis.Config  `yaml:"redis"`
	ExpireAfter time.Duration `yaml:"expire_after" env:"EXPIRE_AFTER"`
	DropDefault bool          `yaml:"drop" env:"DROP"`

	LockScope       string        `yaml:"lock_scope" env:"LOCK_SCOPE"` // "session" or "global"
	DistributedLock bool          `yaml:"distributed_lock" env:"DISTRIBUTED_LOCK"`
	LockTTL         time.Duration `yaml:"lock_ttl" env:"LOCK_TTL"`

	CookieName   string `yaml:"cookie_name" env:"COOKIE_NAME"`
	CookieSecure bool   `yaml:"cookie_secure" env:"COOKIE_SECURE"`
	Listen       string `yaml:"listen" env:"LISTEN"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"` // "text" or "json"
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Namespace:  "session",
		Redis:      redis.DefaultConfig(),
		LockScope:  "session",
		LockTTL:    30 * time.Second,
		CookieName: "sid",
		Listen:     ":8080",
		LogLevel:   "info",
		LogFormat:  string(logging.FormatText),
	}
}

// Load reads the YAML file at path over Default and then applies the
// environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Join(ErrParsingConfig, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	var errs []error
	if _, ok := session.ParseLockScope(c.LockScope); !ok {
		errs = append(errs, fmt.Errorf("unknown lock_scope %q", c.LockScope))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch logging.Format(c.LogFormat) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	if c.ExpireAfter < 0 {
		errs = append(errs, errors.New("expire_after must not be negative"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// Scope returns the parsed lock scope.
func (c Config) Scope() session.LockScope {
	scope, _ := session.ParseLockScope(c.LockScope)
	return scope
}
