package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kelseyhightower/envconfig"
)

// Store backends
const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

// Passwords that must never reach a real database
var insecureDefaults = map[string]bool{
	"postgres": true,
	"password": true,
	"changeme": true,
}

// Config is the service configuration, read from the environment by Load
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Mining   MiningConfig
}

type ServerConfig struct {
	Port string `envconfig:"SERVER_PORT" default:"8005"`
	Mode string `envconfig:"SERVER_MODE" default:"release"` // gin mode
}

// StoreConfig selects and parameterizes the remote data gateway
type StoreConfig struct {
	Backend string        `envconfig:"STORE_BACKEND" default:"rest"`
	URL     string        `envconfig:"STORE_URL"`
	AnonKey string        `envconfig:"STORE_ANON_KEY"`
	Schema  string        `envconfig:"STORE_SCHEMA" default:"public"`
	Timeout time.Duration `envconfig:"STORE_TIMEOUT" default:"10s"`
}

// DatabaseConfig is used by the postgres backend
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"mining"`
	Password string `envconfig:"DB_PASSWORD"`
	DBName   string `envconfig:"DB_NAME" default:"mining"`
	Schema   string `envconfig:"DB_SCHEMA" default:"public"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
}

type MiningConfig struct {
	// Toggle requests allowed per session within ToggleWindow
	ToggleLimit  int           `envconfig:"MINING_TOGGLE_LIMIT" default:"30"`
	ToggleWindow time.Duration `envconfig:"MINING_TOGGLE_WINDOW" default:"1m"`
	// Idle sessions are closed after this long; zero disables expiry
	SessionIdle time.Duration `envconfig:"MINING_SESSION_IDLE" default:"30m"`
}

// Load reads the configuration from the environment. It does not validate;
// call Validate before using the result.
func Load() (*Config, error) {
	cfg := &Config{}
	// Each section is processed with its full variable names so envconfig
	// never falls back to unprefixed names like PORT or USER.
	for _, section := range []interface{}{&cfg.Server, &cfg.Store, &cfg.Database, &cfg.Mining} {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("process environment: %w", err)
		}
	}

	// Secrets are not logged
	log.Printf("[config] Mining dashboard loaded: port=%s backend=%s store=%s db=%s/%s",
		cfg.Server.Port, cfg.Store.Backend, cfg.Store.URL, cfg.Database.Host, cfg.Database.DBName)

	return cfg, nil
}

// Validate checks the configuration for the selected backend so that a
// misconfigured store fails at startup instead of on the first request.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("SERVER_PORT must be set")
	}
	if c.Mining.ToggleLimit <= 0 || c.Mining.ToggleWindow <= 0 {
		return errors.New("MINING_TOGGLE_LIMIT and MINING_TOGGLE_WINDOW must be positive")
	}

	switch c.Store.Backend {
	case BackendREST:
		return c.Store.validate()
	case BackendPostgres:
		return c.Database.validate()
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendREST, BackendPostgres, c.Store.Backend)
	}
}

func (s *StoreConfig) validate() error {
	if s.URL == "" {
		return errors.New("STORE_URL must be set for the rest backend")
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("STORE_URL is not an absolute URL: %q", s.URL)
	}
	if s.AnonKey == "" {
		return errors.New("STORE_ANON_KEY must be set for the rest backend")
	}
	if s.Timeout <= 0 {
		return errors.New("STORE_TIMEOUT must be positive")
	}

	// The key is a JWT signed by the store; we cannot verify it, only check
	// that it is well formed and not already expired.
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.AnonKey, claims); err != nil {
		return fmt.Errorf("STORE_ANON_KEY is not a valid JWT: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("STORE_ANON_KEY has an invalid exp claim: %w", err)
	}
	if exp != nil && exp.Before(time.Now()) {
		return fmt.Errorf("STORE_ANON_KEY expired at %s", exp.Format(time.RFC3339))
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" || d.DBName == "" || d.User == "" {
		return errors.New("DB_HOST, DB_NAME and DB_USER must be set for the postgres backend")
	}
	if d.Password == "" || insecureDefaults[d.Password] {
		return errors.New("DB_PASSWORD must be set to a secure value (current value is insecure or empty)")
	}
	if d.MaxConns <= 0 {
		return errors.New("DB_MAX_CONNS must be positive")
	}
	return nil
}

// DSN returns a postgres URL with the credentials escaped
func (c *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
