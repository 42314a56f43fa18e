// Package config loads the YAML configuration file that names databases,
// the AWS region, logging options and the secret backend. A Config is built
// once at startup and passed by reference to every collaborator.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no configuration file is given.
const DefaultPath = "~/config.yaml"

// Supported database dialects.
const (
	DialectTeradata = "teradata"
	DialectRedshift = "redshift"
)

// Supported secret backends.
const (
	SecretBackendSecretsManager = "secretsmanager"
	SecretBackendKeyring        = "keyring"
)

// Default ports per dialect.
const (
	DefaultTeradataPort = 1025
	DefaultRedshiftPort = 5439
)

// ErrUnknownDatabase is returned when a database key is not present in the file.
var ErrUnknownDatabase = errors.New("unknown database")

// Config holds the whole configuration file.
type Config struct {
	Region        string                    `yaml:"region"`         // AWS region for S3, Secrets Manager, IAM
	Profile       string                    `yaml:"profile"`        // Optional shared config profile
	LogLevel      string                    `yaml:"log_level"`      // debug|info|warn|error
	LogFormat     string                    `yaml:"log_format"`     // text|json
	SecretBackend string                    `yaml:"secret_backend"` // secretsmanager|keyring
	Databases     map[string]DatabaseConfig `yaml:"databases"`
}

// DatabaseConfig describes one named database connection.
type DatabaseConfig struct {
	Dialect  string            `yaml:"dialect"`  // teradata|redshift
	Host     string            `yaml:"host"`     // Server host name
	Port     int               `yaml:"port"`     // Server port, defaulted per dialect
	User     string            `yaml:"user"`     // Login user
	Password string            `yaml:"password"` // Login password
	Database string            `yaml:"database"` // Default database/schema
	Secret   string            `yaml:"secret"`   // Secret whose fields overlay this entry
	Options  map[string]string `yaml:"options"`  // Extra driver parameters
}

// Load reads and validates the configuration file at path. A leading "~" is
// expanded to the user's home directory.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.SecretBackend == "" {
		c.SecretBackend = SecretBackendSecretsManager
	}
	for key, db := range c.Databases {
		db.Dialect = strings.ToLower(db.Dialect)
		if db.Port == 0 {
			db.Port = DefaultPort(db.Dialect)
		}
		c.Databases[key] = db
	}
}

// Validate ensures all fields are present and have valid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn or error")
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log format must be text or json")
	}

	if c.SecretBackend != SecretBackendSecretsManager && c.SecretBackend != SecretBackendKeyring {
		return fmt.Errorf("secret backend must be secretsmanager or keyring")
	}

	for _, key := range c.DatabaseKeys() {
		if err := c.Databases[key].Validate(); err != nil {
			return fmt.Errorf("database %q: %w", key, err)
		}
	}

	return nil
}

// Validate checks a single database entry.
func (d DatabaseConfig) Validate() error {
	if d.Dialect != DialectTeradata && d.Dialect != DialectRedshift {
		return fmt.Errorf("dialect must be teradata or redshift")
	}

	// Credentials may come entirely from the secret store.
	if d.Secret == "" && d.Host == "" {
		return fmt.Errorf("host is required when no secret is configured")
	}

	if d.Port < 0 || d.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}

	return nil
}

// Database returns the entry registered under key.
func (c *Config) Database(key string) (DatabaseConfig, error) {
	db, ok := c.Databases[key]
	if !ok {
		return DatabaseConfig{}, fmt.Errorf("%w: %s", ErrUnknownDatabase, key)
	}
	return db, nil
}

// DatabaseKeys returns the configured database keys in sorted order.
func (c *Config) DatabaseKeys() []string {
	keys := make([]string, 0, len(c.Databases))
	for k := range c.Databases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge overlays fields from a secret onto a copy of d. Both "user" and
// "username", and both "database" and "dbname" are accepted.
func (d DatabaseConfig) Merge(fields map[string]string) (DatabaseConfig, error) {
	out := d
	for k, v := range fields {
		switch strings.ToLower(k) {
		case "host":
			out.Host = v
		case "port":
			port, err := strconv.Atoi(v)
			if err != nil {
				return DatabaseConfig{}, fmt.Errorf("invalid port in secret: %w", err)
			}
			out.Port = port
		case "user", "username":
			out.User = v
		case "password":
			out.Password = v
		case "database", "dbname":
			out.Database = v
		}
	}
	if out.Port == 0 {
		out.Port = DefaultPort(out.Dialect)
	}
	return out, nil
}

// DefaultPort returns the well known port for dialect, or 0 if unknown.
func DefaultPort(dialect string) int {
	switch dialect {
	case DialectTeradata:
		return DefaultTeradataPort
	case DialectRedshift:
		return DefaultRedshiftPort
	}
	return 0
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
