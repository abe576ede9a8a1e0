package core

import (
	"fmt"
	"strings"

	"github.com/vigilator/vigil/internal/encoding"
)

// MemoryPath selects an in-memory database.
const MemoryPath = ":memory:"

// Config represents configuration options for the store
type Config struct {
	Path          string               `json:"path" yaml:"path"`                    // Database file path or ":memory:"
	Table         string               `json:"table" yaml:"table"`                  // Table name (default: model_outputs)
	Compression   encoding.Compression `json:"compression" yaml:"compression"`      // Sequence column compression
	MaxOpenConns  int                  `json:"maxOpenConns" yaml:"max_open_conns"`  // Pool size for file databases
	BusyTimeoutMS int                  `json:"busyTimeoutMs" yaml:"busy_timeout_ms"` // SQLite busy timeout
	Logger        Logger               `json:"-" yaml:"-"`                          // Optional logger (default: no-op)
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Path:          MemoryPath,
		Table:         DefaultTable,
		Compression:   encoding.CompressionNone,
		MaxOpenConns:  25,
		BusyTimeoutMS: 5000,
	}
}

// Validate checks the configuration and fills zero values with defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("%w: database path cannot be empty", ErrInvalidConfig)
	}
	if c.Table == "" {
		c.Table = def.Table
	}
	if !validTableName(c.Table) {
		return fmt.Errorf("%w: table name %q", ErrInvalidConfig, c.Table)
	}
	comp, err := encoding.ParseCompression(string(c.Compression))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.Compression = comp
	if c.MaxOpenConns < 0 || c.BusyTimeoutMS < 0 {
		return fmt.Errorf("%w: negative pool settings", ErrInvalidConfig)
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = def.MaxOpenConns
	}
	if c.BusyTimeoutMS == 0 {
		c.BusyTimeoutMS = def.BusyTimeoutMS
	}
	if c.Logger == nil {
		c.Logger = NopLogger()
	}
	return nil
}

func (c Config) inMemory() bool {
	return c.Path == MemoryPath || strings.Contains(c.Path, "mode=memory")
}

// dsn builds the modernc.org/sqlite connection string.
func (c Config) dsn() string {
	if c.inMemory() {
		return c.Path
	}
	sep := "?"
	if strings.Contains(c.Path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		c.Path, sep, c.BusyTimeoutMS)
}
