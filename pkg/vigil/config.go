package vigil

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vigilator/vigil/pkg/core"
)

// Config is the file-level configuration of a vigil deployment.
type Config struct {
	Store    core.Config  `yaml:"store"`
	Server   ServerConfig `yaml:"server"`
	Backup   BackupConfig `yaml:"backup"`
	LogLevel string       `yaml:"log_level"`
}

// ServerConfig configures the query server.
type ServerConfig struct {
	Addr        string `yaml:"addr"`          // Listen address (default :3000)
	DefaultTopK int    `yaml:"default_top_k"` // top_k when the request omits it
}

// BackupConfig points at an S3-compatible bucket for snapshots.
type BackupConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Store: core.DefaultConfig(),
		Server: ServerConfig{
			Addr:        ":3000",
			DefaultTopK: 5,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path searches
// vigil.yaml and configs/vigil.yaml, falling back to defaults when neither
// exists.
func LoadConfig(path string) (Config, error) {
	return LoadConfigOver(path, DefaultConfig())
}

// LoadConfigOver is LoadConfig with base in place of the built-in defaults.
// Settings the file leaves unset keep their base value.
func LoadConfigOver(path string, base Config) (Config, error) {
	cfg := base

	if path == "" {
		for _, p := range []string{"vigil.yaml", "configs/vigil.yaml"} {
			data, err := os.ReadFile(p)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return cfg, err
			}
			return parseConfig(cfg, data)
		}
		applyDefaults(&cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return parseConfig(cfg, data)
}

func parseConfig(cfg Config, data []byte) (Config, error) {
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.DefaultTopK <= 0 {
		cfg.Server.DefaultTopK = def.Server.DefaultTopK
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
}
