// Package config loads the YAML configuration shared by chirpcli and
// chirpstored.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jasonrowsell/chirpstore/pkg/protocol"
)

const (
	DefaultAddr        = "127.0.0.1:7380"
	DefaultRevision    = "v1"
	DefaultDialTimeout = 2 * time.Second
	DefaultLogLevel    = "info"
	DefaultShards      = 256
	DefaultListLimit   = 256
)

// Config is the top-level configuration file.
type Config struct {
	Client ClientConfig `yaml:"client"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// ClientConfig configures connections made by chirpcli.
type ClientConfig struct {
	Addr        string        `yaml:"addr"`
	Revision    string        `yaml:"revision"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// ServerConfig configures the chirpstored reference server.
type ServerConfig struct {
	Listen    string `yaml:"listen"`
	Shards    int    `yaml:"shards"` // must be a power of 2
	Revision  string `yaml:"revision"`
	ListLimit int    `yaml:"list_limit"`
	SeedFile  string `yaml:"seed_file"`
}

// LogConfig selects the log level, encoding and optional rotating file.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	File   string `yaml:"file"`

	MaxSize    int  `yaml:"max_size"` // megabytes
	MaxBackups int  `yaml:"max_backups"`
	MaxAge     int  `yaml:"max_age"` // days
	Compress   bool `yaml:"compress"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			Addr:        DefaultAddr,
			Revision:    DefaultRevision,
			DialTimeout: DefaultDialTimeout,
		},
		Server: ServerConfig{
			Listen:    DefaultAddr,
			Shards:    DefaultShards,
			Revision:  DefaultRevision,
			ListLimit: DefaultListLimit,
		},
		Log: LogConfig{
			Level:      DefaultLogLevel,
			Format:     "console",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	if c.Client.Addr == "" {
		return fmt.Errorf("client.addr is empty")
	}
	if _, err := protocol.RevisionByName(c.Client.Revision); err != nil {
		return fmt.Errorf("client.revision: %w", err)
	}
	if c.Client.DialTimeout < 0 || c.Client.CallTimeout < 0 {
		return fmt.Errorf("client timeouts must not be negative")
	}
	if n := c.Server.Shards; n <= 0 || n&(n-1) != 0 {
		return fmt.Errorf("server.shards (%d) must be a positive power of 2", n)
	}
	if _, err := protocol.RevisionByName(c.Server.Revision); err != nil {
		return fmt.Errorf("server.revision: %w", err)
	}
	if c.Server.ListLimit < 0 {
		return fmt.Errorf("server.list_limit must not be negative")
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format %q is not console or json", c.Log.Format)
	}
	return nil
}

// LoadSeed reads a YAML mapping of keys to string values used to populate
// the reference server at startup.
func LoadSeed(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed map[string]string
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return seed, nil
}
