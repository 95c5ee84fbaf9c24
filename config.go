package njs

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds runtime settings. Fields are read from NJS_* environment
// variables; see LoadConfig.
type Config struct {
	Assertions     bool          `json:"assertions" env:"NJS_ASSERTIONS" envDefault:"true"`            // panic on binding misuse instead of logging
	LogLevel       string        `json:"log_level" env:"NJS_LOG_LEVEL" envDefault:"info"`              // logrus level name
	LogMode        string        `json:"log_mode" env:"NJS_LOG_MODE" envDefault:"TEXT"`                // TEXT|JSON
	Workers        int           `json:"workers" env:"NJS_WORKERS" envDefault:"4"`                     // concurrent task OnWork calls, 0 = unbounded
	MaxMessageSize int           `json:"max_message_size" env:"NJS_MAX_MESSAGE_SIZE" envDefault:"256"` // reporter buffer, messages keep one byte less
	DrainTimeout   time.Duration `json:"drain_timeout" env:"NJS_DRAIN_TIMEOUT" envDefault:"5s"`        // Runtime.Drain default deadline
	StoreDSN       string        `json:"store_dsn" env:"NJS_STORE_DSN" envDefault:"file::memory:"`     // sqlite DSN for the demo Store class
	Backend        string        `json:"backend,omitempty" env:"NJS_BACKEND"`                          // engine name, compiled-in one when empty
	MemoryLimitMB  int           `json:"memory_limit_mb" env:"NJS_MEMORY_LIMIT_MB" envDefault:"0"`     // quickjs heap cap, 0 = unlimited
	Modules        []string      `json:"modules,omitempty" env:"NJS_MODULES" envSeparator:","`         // modules exposed by `njs run`, all when empty
}

// DefaultConfig returns the configuration with every default applied and
// no environment lookups.
func DefaultConfig() Config {
	var cfg Config
	// Parsing an empty environment only applies envDefault tags.
	if err := env.Parse(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("njs: default config: %v", err))
	}
	return cfg
}

// LoadConfig reads the configuration from the environment after loading
// the given .env files. Later files override earlier ones and the process
// environment; missing files are skipped.
func LoadConfig(files ...string) (Config, error) {
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			return Config{}, fmt.Errorf("njs: loading %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("njs: parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("njs: NJS_WORKERS must not be negative, got %d", c.Workers)
	}
	if c.MemoryLimitMB < 0 {
		return fmt.Errorf("njs: NJS_MEMORY_LIMIT_MB must not be negative, got %d", c.MemoryLimitMB)
	}
	if c.MaxMessageSize < 2 {
		return fmt.Errorf("njs: NJS_MAX_MESSAGE_SIZE must be at least 2, got %d", c.MaxMessageSize)
	}
	if c.DrainTimeout < 0 {
		return fmt.Errorf("njs: NJS_DRAIN_TIMEOUT must not be negative, got %s", c.DrainTimeout)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("njs: NJS_LOG_LEVEL: %w", err)
	}
	return nil
}

// Apply installs the process-wide parts of the configuration: the logrus
// level and formatter and the assertion mode.
func (c Config) Apply() {
	if lvl, err := log.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if strings.EqualFold(c.LogMode, "JSON") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{})
	}
	SetAssertions(c.Assertions)
}
