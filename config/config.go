package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Log verbosity as accepted by override files and the CLI, from 1 (error)
// to 5 (trace).
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	// DefaultDebounceInterval is the quiet window a watcher waits for before
	// raising the last notification of a burst
	DefaultDebounceInterval = 1000 * time.Millisecond

	// DefaultNotifyQueueSize is the depth of a watcher's message queue
	DefaultNotifyQueueSize = 256

	// DefaultAllowUndo sends deletions to the recycle directory when one is set
	DefaultAllowUndo = true

	// DefaultNoConfirmation overwrites collisions instead of failing the item;
	// there is no interactive confirmation
	DefaultNoConfirmation = false

	// DefaultRenameOnCollision gives colliding items a "name (n)" suffix
	DefaultRenameOnCollision = false
)

// Config contains runtime configuration values for the storage bridge.
type Config struct {
	// Internal log level (Default info)
	LogLvl util.LogLevel `validate:"gte=0,lte=4"`
	// Optional rotating JSON log file (Default none)
	LogFile string
	// Watcher quiet window (Default 1s)
	DebounceInterval time.Duration `validate:"gt=0"`
	// Watcher message queue depth (Default 256)
	NotifyQueueSize int `validate:"gte=1,lte=65536"`
	// Recycle deletions instead of removing them (Default true)
	AllowUndo bool
	// Overwrite on collision (Default false)
	NoConfirmation bool
	// Rename on collision; wins over NoConfirmation (Default false)
	RenameOnCollision bool
	// Where recycled items go; empty means deletions are permanent
	RecycleDir string
	// Address for the shellctl Prometheus endpoint (Default none)
	MetricsAddr string `validate:"omitempty,hostname_port"`
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	LogLvl            *int    `yaml:"verbose,omitempty" json:"verbose,omitempty" toml:"verbose,omitempty"`
	LogFile           *string `yaml:"log_file,omitempty" json:"log_file,omitempty" toml:"log_file,omitempty"`
	DebounceMs        *int    `yaml:"debounce_ms,omitempty" json:"debounce_ms,omitempty" toml:"debounce_ms,omitempty"`
	NotifyQueueSize   *int    `yaml:"notify_queue_size,omitempty" json:"notify_queue_size,omitempty" toml:"notify_queue_size,omitempty"`
	AllowUndo         *bool   `yaml:"allow_undo,omitempty" json:"allow_undo,omitempty" toml:"allow_undo,omitempty"`
	NoConfirmation    *bool   `yaml:"no_confirmation,omitempty" json:"no_confirmation,omitempty" toml:"no_confirmation,omitempty"`
	RenameOnCollision *bool   `yaml:"rename_on_collision,omitempty" json:"rename_on_collision,omitempty" toml:"rename_on_collision,omitempty"`
	RecycleDir        *string `yaml:"recycle_dir,omitempty" json:"recycle_dir,omitempty" toml:"recycle_dir,omitempty"`
	MetricsAddr       *string `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty" toml:"metrics_addr,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		LogLvl:            DefaultLogLvl,
		DebounceInterval:  DefaultDebounceInterval,
		NotifyQueueSize:   DefaultNotifyQueueSize,
		AllowUndo:         DefaultAllowUndo,
		NoConfirmation:    DefaultNoConfirmation,
		RenameOnCollision: DefaultRenameOnCollision,
	}
}

// NewConfig creates a default Config with override applied. A nil override
// yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// VerboseToLogLevel maps a CLI verbosity between 1 (error) and 5 (trace) to
// the internal log level. Out of range values are clamped.
func VerboseToLogLevel(verbose int) util.LogLevel {
	verbose = min(max(verbose, ErrorVerbose), TraceVerbose)
	logLvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return logLvls[verbose-1]
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerboseToLogLevel(*override.LogLvl)
	}
	if override.LogFile != nil {
		c.LogFile = *override.LogFile
	}
	if override.DebounceMs != nil {
		c.DebounceInterval = time.Duration(*override.DebounceMs) * time.Millisecond
	}
	if override.NotifyQueueSize != nil {
		c.NotifyQueueSize = *override.NotifyQueueSize
	}
	if override.AllowUndo != nil {
		c.AllowUndo = *override.AllowUndo
	}
	if override.NoConfirmation != nil {
		c.NoConfirmation = *override.NoConfirmation
	}
	if override.RenameOnCollision != nil {
		c.RenameOnCollision = *override.RenameOnCollision
	}
	if override.RecycleDir != nil {
		c.RecycleDir = *override.RecycleDir
	}
	if override.MetricsAddr != nil {
		c.MetricsAddr = *override.MetricsAddr
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports YAML (.yaml, .yml), JSON (.json) and TOML (.toml) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults
// and validates the result.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg := NewConfig(override)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
