package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"content-sync/internal/collection/domain/model"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Supported backends.
const (
	BackendSQLite  = "sqlite"
	BackendMongoDB = "mongodb"
)

// Supported push modes.
const (
	PushLocal     = "local"
	PushRedis     = "redis"
	PushMongoDB   = "mongodb"
	PushWebSocket = "websocket"
)

// ServerConfig holds the HTTP and WebSocket listener settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0" yaml:"host" json:"host"`
	Port string `env:"SERVER_PORT" envDefault:"8080" yaml:"port" json:"port"`

	// WebSocketPath is the endpoint of the change relay.
	WebSocketPath string `env:"WEBSOCKET_PATH" envDefault:"/ws/v1/changes" yaml:"websocket_path" json:"websocket_path"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AuthConfig configures the admin bearer-token check on write routes.
type AuthConfig struct {
	// JWTSecret signs admin tokens (HS256). Empty disables the check.
	JWTSecret string `env:"ADMIN_JWT_SECRET" json:"-"`
	Issuer    string `env:"ADMIN_JWT_ISSUER" envDefault:"content-sync" json:"issuer"`
}

// Enabled reports whether admin routes require a token.
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

// CollectionConfig holds per-collection overrides from the collections file.
type CollectionConfig struct {
	// Ordering replaces the default candidates. An empty list reads the
	// collection unordered; an absent key keeps the defaults.
	Ordering *[]string `yaml:"ordering"`
}

// CountRuleConfig overrides or adds a derived count. Collection may be left
// empty when overriding a built-in count.
type CountRuleConfig struct {
	Collection string `yaml:"collection" json:"collection,omitempty"`
	Expr       string `yaml:"expr" json:"expr"`
}

// collectionsFile is the YAML layout of COLLECTIONS_FILE.
type collectionsFile struct {
	Collections map[string]CollectionConfig `yaml:"collections"`
	Counts      map[string]CountRuleConfig  `yaml:"counts"`
}

// Config holds all configuration of the sync layer.
type Config struct {
	Backend string `env:"CONTENT_BACKEND" envDefault:"sqlite" json:"backend"`
	Push    string `env:"PUSH_MODE" envDefault:"local" json:"push"`

	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"content.db" json:"sqlite_path"`
	MongoDBURI     string        `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017" json:"-"`
	MongoDatabase  string        `env:"MONGODB_DATABASE" envDefault:"content_sync" json:"mongodb_database"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s" json:"connect_timeout"`

	// RelayURL is the change relay dialed in websocket push mode.
	RelayURL string `env:"RELAY_URL" json:"relay_url"`

	OrderingCandidates []string      `env:"ORDERING_CANDIDATES" envSeparator:"," envDefault:"created_at,updated_at" json:"ordering_candidates"`
	RefetchDelay       time.Duration `env:"REFETCH_DELAY" envDefault:"300ms" json:"refetch_delay"`
	CollectionsFile    string        `env:"COLLECTIONS_FILE" json:"collections_file"`

	Redis  RedisConfig  `json:"redis"`
	Server ServerConfig `json:"server"`
	Auth   AuthConfig   `json:"auth"`

	Collections map[string]CollectionConfig `env:"-" json:"collections,omitempty"`
	// CountRules overrides or adds derived count predicates by name.
	CountRules map[string]CountRuleConfig `env:"-" json:"count_rules,omitempty"`
}

// LoadConfig loads configuration from environment variables, applies the
// collections file when one is named, and validates the result.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load configuration from environment: " + err.Error())
	}
	if cfg.CollectionsFile != "" {
		if err := cfg.LoadCollectionsFile(cfg.CollectionsFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Backend:            BackendSQLite,
		Push:               PushLocal,
		SQLitePath:         "content.db",
		MongoDBURI:         "mongodb://localhost:27017",
		MongoDatabase:      "content_sync",
		ConnectTimeout:     10 * time.Second,
		OrderingCandidates: append([]string(nil), model.DefaultOrderingCandidates...),
		RefetchDelay:       300 * time.Millisecond,
		Redis:              *DefaultRedisConfig(),
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          "8080",
			WebSocketPath: "/ws/v1/changes",
		},
		Auth: AuthConfig{Issuer: "content-sync"},
	}
}

// LoadCollectionsFile merges the YAML collections file at path.
func (c *Config) LoadCollectionsFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read collections file: %w", err)
	}
	var file collectionsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("failed to parse collections file %s: %w", path, err)
	}
	if c.Collections == nil {
		c.Collections = make(map[string]CollectionConfig)
	}
	for name, cc := range file.Collections {
		c.Collections[name] = cc
	}
	if len(file.Counts) > 0 && c.CountRules == nil {
		c.CountRules = make(map[string]CountRuleConfig)
	}
	for name, rule := range file.Counts {
		c.CountRules[name] = rule
	}
	return nil
}

// Validate checks the enumerated settings and their combinations.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendMongoDB:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSQLite, BackendMongoDB)
	}
	switch c.Push {
	case PushLocal, PushRedis, PushWebSocket:
	case PushMongoDB:
		if c.Backend != BackendMongoDB {
			return errors.New("PUSH_MODE=mongodb needs CONTENT_BACKEND=mongodb")
		}
	default:
		return fmt.Errorf("unknown push mode %q", c.Push)
	}
	if c.Push == PushWebSocket && c.RelayURL == "" {
		return errors.New("RELAY_URL environment variable is not set")
	}
	if c.RefetchDelay < 0 {
		return errors.New("REFETCH_DELAY must not be negative")
	}
	for _, field := range c.OrderingCandidates {
		if strings.TrimSpace(field) == "" {
			return errors.New("ORDERING_CANDIDATES contains an empty column")
		}
	}
	return nil
}

// OrderingPolicy builds the ordering policy from the defaults and the
// per-collection overrides.
func (c *Config) OrderingPolicy() *model.OrderingPolicy {
	policy := model.NewOrderingPolicy(c.OrderingCandidates)
	for name, cc := range c.Collections {
		if cc.Ordering != nil {
			policy.Override(name, *cc.Ordering)
		}
	}
	return policy
}
