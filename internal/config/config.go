package config

import (
	"fmt"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Auth        AuthConfig     `yaml:"auth"`
	Leave       LeaveConfig    `yaml:"leave"`
	Environment string         `yaml:"environment" default:"local"` // local, dev, prod
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	Database string `yaml:"database" default:"absentia"`
	User     string `yaml:"user" default:"postgres"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode" default:"disable"` // disable, require, verify-ca, verify-full
}

// AuthConfig holds identity-provider and identity-resolution configuration
type AuthConfig struct {
	// Issuer is the identity provider's issuer URL; tokens must carry it verbatim
	Issuer string `yaml:"issuer"`

	// Audience is the expected aud claim (this API's client ID at the provider)
	Audience string `yaml:"audience"`

	// JWKSURL overrides the key-set endpoint; defaults to issuer + "/.well-known/jwks.json"
	JWKSURL string `yaml:"jwks_url,omitempty"`

	// JWKSTTL is how long fetched signing keys are reused before a refresh
	JWKSTTL time.Duration `yaml:"jwks_ttl"`

	// JWKSMaxKeys bounds the number of signing keys kept from a fetch
	JWKSMaxKeys int `yaml:"jwks_max_keys"`

	// JWKSFetchTimeout bounds a single key-set fetch
	JWKSFetchTimeout time.Duration `yaml:"jwks_fetch_timeout"`

	// IdentityCacheTTL is how long a resolved identity is served without a database lookup
	IdentityCacheTTL time.Duration `yaml:"identity_cache_ttl"`

	// IdentityCacheSize bounds the number of cached identities per keyspace
	IdentityCacheSize int `yaml:"identity_cache_size"`
}

// LeaveConfig holds leave-policy configuration
type LeaveConfig struct {
	// DefaultEntitlements maps leave type to yearly entitled business days,
	// used when a balance row is created lazily for a user
	DefaultEntitlements map[string]int `yaml:"default_entitlements"`
}

// Address returns the host:port the HTTP server listens on
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ConnectionString returns the PostgreSQL connection string
func (p *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// ResolvedJWKSURL returns the configured JWKS URL, or the conventional
// well-known path under the issuer when none is set
func (a *AuthConfig) ResolvedJWKSURL() string {
	if a.JWKSURL != "" {
		return a.JWKSURL
	}
	return a.Issuer + "/.well-known/jwks.json"
}

// IsProduction reports whether the config targets a production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}
