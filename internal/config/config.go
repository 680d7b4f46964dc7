// Package config provides configuration loading for the platform.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete platform configuration
type Config struct {
	// Node is the name of this node in the cluster (empty = generate one on startup)
	Node string `yaml:"node"`

	HTTP     HTTPConfig     `yaml:"http"`
	Messages MessagesConfig `yaml:"messages"`

	// Admin is the name of the model holding the ontology
	Admin string `yaml:"admin"`

	// ObjectCache is the maximum number of objects cached per model (0 = unbounded)
	ObjectCache int `yaml:"object_cache"`

	Models []ModelConfig `yaml:"models"`
}

// HTTPConfig configures the http server
type HTTPConfig struct {
	// Addr is the address to listen on
	Addr string `yaml:"addr"`
	// MaxConnections limits the number of simultaneous connections (0 = unlimited)
	MaxConnections int `yaml:"max_connections"`
	// ReadOnlyStores rejects writes through the store endpoints
	ReadOnlyStores bool `yaml:"read_only_stores"`
	// ShutdownTimeout is the time to wait for requests to finish on shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Message transports
const (
	TransportNone = "none"
	TransportUDP  = "udp"
	TransportNATS = "nats"
)

// MessagesConfig configures the cluster message center
type MessagesConfig struct {
	// Transport is one of "none", "udp" or "nats"
	Transport string `yaml:"transport"`

	// Listen is the udp address to receive messages on
	Listen string `yaml:"listen"`
	// Peers are udp addresses messages are sent to
	Peers []string `yaml:"peers"`
	// Broadcast is an optional udp broadcast address messages are sent to
	Broadcast string `yaml:"broadcast"`

	// URL is the address of the nats server
	URL string `yaml:"url"`
	// Subject is the nats subject used for messages
	Subject string `yaml:"subject"`
}

// Store backend types
const (
	StoreMemory  = "memory"
	StoreLevelDB = "leveldb"
	StoreSQL     = "sql"
	StoreRemote  = "remote"
)

// ModelConfig configures a single model
type ModelConfig struct {
	// Name identifies the model
	Name string `yaml:"name"`
	// Namespace is used to build the uris of new objects
	Namespace string `yaml:"namespace"`
	// Graph is the graph within the store holding the model (empty = default graph)
	Graph string `yaml:"graph"`

	Store StoreConfig `yaml:"store"`
}

// StoreConfig configures a triplestore backend
type StoreConfig struct {
	// Type is one of "memory", "leveldb", "sql" or "remote"
	Type string `yaml:"type"`

	// Path is the database directory of leveldb stores
	Path string `yaml:"path"`

	// Driver, DSN and Dialect configure sql stores
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	Dialect string `yaml:"dialect"`
	// Schema is an optional path to an xml schema descriptor
	Schema string `yaml:"schema"`
	// MaxSessions limits the number of concurrent database sessions
	MaxSessions int `yaml:"max_sessions"`

	// URL is the store endpoint of a remote store
	URL string `yaml:"url"`

	// Cache wraps the store in a result cache
	Cache     bool `yaml:"cache"`
	CacheSize int  `yaml:"cache_size"`
}

// DefaultAdminNamespace is the namespace of the default admin model
const DefaultAdminNamespace = "http://www.semanticwebbuilder.org/swb4/admin#"

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            "localhost:8080",
			MaxConnections:  256,
			ShutdownTimeout: 10 * time.Second,
		},
		Messages: MessagesConfig{
			Transport: TransportNone,
			Listen:    ":9494",
			Subject:   "swb.messages",
		},
		Admin: "admin",
		Models: []ModelConfig{
			{
				Name:      "admin",
				Namespace: DefaultAdminNamespace,
				Store:     StoreConfig{Type: StoreMemory},
			},
		},
	}
}

// Model returns the configuration of the named model
func (c *Config) Model(name string) (ModelConfig, bool) {
	for _, model := range c.Models {
		if model.Name == name {
			return model, true
		}
	}
	return ModelConfig{}, false
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.HTTP.MaxConnections < 0 {
		return fmt.Errorf("http.max_connections must not be negative")
	}

	switch c.Messages.Transport {
	case "", TransportNone:
	case TransportUDP:
		if c.Messages.Listen == "" {
			return fmt.Errorf("messages.listen is required for udp transport")
		}
	case TransportNATS:
		if c.Messages.URL == "" || c.Messages.Subject == "" {
			return fmt.Errorf("messages.url and messages.subject are required for nats transport")
		}
	default:
		return fmt.Errorf("messages.transport: unknown transport %q", c.Messages.Transport)
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}

	seen := make(map[string]struct{}, len(c.Models))
	for i, model := range c.Models {
		if model.Name == "" {
			return fmt.Errorf("models[%d].name is required", i)
		}
		if _, ok := seen[model.Name]; ok {
			return fmt.Errorf("models[%d]: duplicate model %q", i, model.Name)
		}
		seen[model.Name] = struct{}{}

		if model.Namespace == "" {
			return fmt.Errorf("model %q: namespace is required", model.Name)
		}
		if err := model.Store.Validate(); err != nil {
			return fmt.Errorf("model %q: %w", model.Name, err)
		}
	}

	if _, ok := seen[c.Admin]; !ok {
		return fmt.Errorf("admin model %q is not configured", c.Admin)
	}
	return nil
}

// Validate checks that the store configuration is valid
func (sc StoreConfig) Validate() error {
	switch sc.Type {
	case StoreMemory:
	case StoreLevelDB:
		if sc.Path == "" {
			return fmt.Errorf("store.path is required for leveldb stores")
		}
	case StoreSQL:
		if sc.Driver == "" || sc.DSN == "" {
			return fmt.Errorf("store.driver and store.dsn are required for sql stores")
		}
	case StoreRemote:
		if sc.URL == "" {
			return fmt.Errorf("store.url is required for remote stores")
		}
	default:
		return fmt.Errorf("store.type: unknown store type %q", sc.Type)
	}
	if sc.CacheSize < 0 {
		return fmt.Errorf("store.cache_size must not be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// relative paths are relative to the config file
	dir := filepath.Dir(path)
	for i := range config.Models {
		store := &config.Models[i].Store
		if store.Path != "" && !filepath.IsAbs(store.Path) {
			store.Path = filepath.Join(dir, store.Path)
		}
		if store.Schema != "" && !filepath.IsAbs(store.Schema) {
			store.Schema = filepath.Join(dir, store.Schema)
		}
	}

	return config, nil
}

// Load loads and validates the configuration at path.
// An empty path results in the default configuration.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	config := Default()
	if path != "" {
		var err error
		config, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded config", slog.String("path", path), slog.Int("models", len(config.Models)))
	} else {
		logger.Debug("No config file given, using defaults")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
