package config

import (
	"os"

	"github.com/gear6io/lattice/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the server configuration
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Metastore MetastoreConfig `yaml:"metastore"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`      // "json" or "console"
	FilePath   string `yaml:"file_path"`   // Path to log file
	Console    bool   `yaml:"console"`     // Whether to log to console
	MaxSize    int    `yaml:"max_size"`    // Max file size in MB
	MaxBackups int    `yaml:"max_backups"` // Max number of backup files
	MaxAge     int    `yaml:"max_age"`     // Max age in days
	Cleanup    bool   `yaml:"cleanup"`     // Whether to cleanup log file on startup
}

// MetastoreConfig represents metastore configuration
type MetastoreConfig struct {
	Catalog CatalogConfig `yaml:"catalog"`
	// EnableCaching controls the write-through object cache.
	// Left unset it defaults to true; set to false to read through
	// to the catalog on every lookup.
	EnableCaching *bool `yaml:"enable_caching"`
}

// CatalogConfig represents catalog backend configuration
type CatalogConfig struct {
	Type string `yaml:"type"` // "sqlite" or "memory"
	Path string `yaml:"path"` // Database file path for the sqlite backend
}

// HTTPConfig represents the admin HTTP API configuration
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadDefaultConfig returns a default configuration
func LoadDefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			FilePath:   "logs/lattice-server.log",
			Console:    true,
			MaxSize:    100, // 100MB
			MaxBackups: 3,
			MaxAge:     7,    // 7 days
			Cleanup:    true, // Cleanup log file on startup by default
		},
		Metastore: MetastoreConfig{
			Catalog: CatalogConfig{
				Type: "sqlite",
				Path: "data/lattice.db",
			},
			// EnableCaching left nil so CachingEnabled resolves to true
		},
		HTTP: HTTPConfig{
			Enabled: true,
		},
	}
}

// LoadConfig loads configuration from a file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.New(ErrConfigFileReadFailed, "failed to read config file", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.New(ErrConfigFileParseFailed, "failed to parse config file", err)
	}

	// Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, errors.New(ErrConfigValidationFailed, "configuration validation failed", err)
	}

	return &config, nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config *Config, filename string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.New(ErrConfigFileMarshalFailed, "failed to marshal config", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.New(ErrConfigFileWriteFailed, "failed to write config file", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Metastore.Validate(); err != nil {
		return errors.New(ErrMetastoreValidationFailed, "metastore validation failed", err)
	}
	return nil
}

// Validate validates the metastore configuration
func (m *MetastoreConfig) Validate() error {
	if err := m.Catalog.Validate(); err != nil {
		return errors.New(ErrCatalogValidationFailed, "catalog validation failed", err)
	}
	return nil
}

// Validate validates the catalog backend configuration
func (c *CatalogConfig) Validate() error {
	if c.Type == "" {
		return errors.New(ErrCatalogTypeRequired, "catalog type is required", nil)
	}

	if c.Type == "sqlite" && c.Path == "" {
		return errors.New(ErrCatalogPathRequired, "catalog path is required for the sqlite backend", nil)
	}

	return nil
}

// GetCatalogType returns the configured catalog backend type
func (c *Config) GetCatalogType() string {
	return c.Metastore.Catalog.Type
}

// GetCatalogPath returns the database path for the sqlite catalog backend
func (c *Config) GetCatalogPath() string {
	return c.Metastore.Catalog.Path
}

// CachingEnabled reports whether the metastore object cache is on.
// The cache is on unless the configuration disables it explicitly.
func (c *Config) CachingEnabled() bool {
	if c.Metastore.EnableCaching == nil {
		return true
	}
	return *c.Metastore.EnableCaching
}

// GetHTTPPort returns the fixed HTTP server port
func (c *Config) GetHTTPPort() int {
	return HTTP_SERVER_PORT
}

// GetHTTPAddress returns the HTTP server address
func (c *Config) GetHTTPAddress() string {
	return DEFAULT_SERVER_ADDRESS
}

// IsHTTPServerEnabled returns whether the HTTP server is enabled
func (c *Config) IsHTTPServerEnabled() bool {
	return c.HTTP.Enabled
}
