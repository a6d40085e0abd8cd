// Package config loads service configuration from a YAML file and overlays
// AUTH_KIT_* environment variables on top of it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "AUTH_KIT_"

type Config struct {
	App     AppConfig     `yaml:"app" envPrefix:"APP_"`
	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Storage StorageConfig `yaml:"storage" envPrefix:"STORAGE_"`
	Cache   CacheConfig   `yaml:"cache" envPrefix:"CACHE_"`
	Session SessionConfig `yaml:"session"`
	OAuth   OAuthConfig   `yaml:"oauth" envPrefix:"OAUTH_"`
	Rate    RateConfig    `yaml:"rate" envPrefix:"RATE_LIMIT_"`
	Events  EventsConfig  `yaml:"events" envPrefix:"EVENTS_"`
	SMTP    SMTPConfig    `yaml:"smtp" envPrefix:"SMTP_"`
}

type AppConfig struct {
	Env      string `yaml:"env" env:"ENV"`
	Name     string `yaml:"name" env:"NAME"`
	Version  string `yaml:"version" env:"VERSION"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// StorageConfig selects the user/social-account store.
type StorageConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"` // postgres | sqlite
	DSN      string `yaml:"dsn" env:"DSN"`
	MaxConns int32  `yaml:"max_conns" env:"MAX_CONNS"`
}

// CacheConfig backs refresh tokens. Kind is "memory" or "redis".
type CacheConfig struct {
	Kind  string      `yaml:"kind" env:"KIND"`
	Redis RedisConfig `yaml:"redis" envPrefix:"REDIS_"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// SessionConfig drives access, step-up and refresh token issuance.
type SessionConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer     string        `yaml:"issuer" env:"JWT_ISSUER"`
	AccessTTL  time.Duration `yaml:"access_ttl" env:"ACCESS_TOKEN_TTL"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"REFRESH_TOKEN_TTL"`
	StepUpTTL  time.Duration `yaml:"step_up_ttl" env:"STEP_UP_TOKEN_TTL"`
}

type RateConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Requests int           `yaml:"requests" env:"REQUESTS"`
	Window   time.Duration `yaml:"window" env:"WINDOW"`
}

type EventsConfig struct {
	Buffer int `yaml:"buffer" env:"BUFFER"`
	// RedisChannel publishes events on this pub/sub channel when cache.kind is redis.
	RedisChannel string `yaml:"redis_channel" env:"REDIS_CHANNEL"`
	WelcomeEmail bool   `yaml:"welcome_email" env:"WELCOME_EMAIL"`
}

type SMTPConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	From     string `yaml:"from" env:"FROM"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	TLS      string `yaml:"tls" env:"TLS"` // auto | starttls | ssl | none
}

// Load reads path (a missing file is not an error), overlays the environment,
// applies defaults and validates the result.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "authkit"
	}
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Driver == "sqlite" && c.Storage.DSN == "" {
		c.Storage.DSN = "data/authkit.db"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Session.Issuer == "" {
		c.Session.Issuer = c.App.Name
	}
	if c.Session.AccessTTL == 0 {
		c.Session.AccessTTL = 30 * time.Minute
	}
	if c.Session.RefreshTTL == 0 {
		c.Session.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Session.StepUpTTL == 0 {
		c.Session.StepUpTTL = 5 * time.Minute
	}
	if c.OAuth.StateTTL == 0 {
		c.OAuth.StateTTL = DefaultStateTTL
	}
	if c.OAuth.HTTPTimeout == 0 {
		c.OAuth.HTTPTimeout = 10 * time.Second
	}
	if c.Rate.Requests == 0 {
		c.Rate.Requests = 10
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}
	if c.Events.Buffer == 0 {
		c.Events.Buffer = 256
	}
	if c.Events.RedisChannel == "" {
		c.Events.RedisChannel = "authkit:events"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	for i, p := range c.OAuth.ProvidersEnabled {
		c.OAuth.ProvidersEnabled[i] = strings.ToLower(strings.TrimSpace(p))
	}
}

// IsProd reports whether the service runs with production defaults.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }
