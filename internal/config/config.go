// Package config provides configuration types and defaults for keystone.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/zjrosen/keystone/internal/log"
	"github.com/zjrosen/keystone/internal/tracing"
)

// Config holds all configuration options for keystone.
type Config struct {
	CatalogDir string          `mapstructure:"catalog_dir"`
	Debug      bool            `mapstructure:"debug"`
	LogFile    string          `mapstructure:"log_file"` // debug log path, stderr when empty
	Output     OutputConfig    `mapstructure:"output"`
	Watch      WatchConfig     `mapstructure:"watch"`
	Cache      CacheConfig     `mapstructure:"cache"`
	Tracing    tracing.Config  `mapstructure:"tracing"`
	Flags      map[string]bool `mapstructure:"flags"` // feature flags, see internal/flags
}

// OutputConfig controls command output.
type OutputConfig struct {
	Format        string `mapstructure:"format"`         // "text" (default) or "json"
	NoColor       bool   `mapstructure:"no_color"`       // also set by NO_COLOR
	Width         int    `mapstructure:"width"`          // wrap width for text output
	MarkdownStyle string `mapstructure:"markdown_style"` // "dark" (default), "light" or "notty"
}

// WatchConfig holds catalog directory watching options.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// CacheConfig tunes the lookup cache of the live catalog.
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/keystone/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "keystone", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		CatalogDir: "catalog",
		Output: OutputConfig{
			Format:        "text",
			Width:         80,
			MarkdownStyle: "dark",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Cache: CacheConfig{
			TTL:             10 * time.Minute,
			CleanupInterval: 15 * time.Minute,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Validate checks the whole configuration and reports the first problem.
func (c Config) Validate() error {
	if c.CatalogDir == "" {
		return errors.New("catalog_dir must not be empty")
	}
	if err := ValidateOutput(c.Output); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return errors.Newf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	if c.Cache.TTL < 0 {
		return errors.Newf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}
	if c.Cache.CleanupInterval < 0 {
		return errors.Newf("cache.cleanup_interval must not be negative, got %s", c.Cache.CleanupInterval)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateOutput checks output settings. Empty values use defaults.
func ValidateOutput(out OutputConfig) error {
	switch out.Format {
	case "", "text", "json":
	default:
		return errors.Newf("output.format must be \"text\" or \"json\", got %q", out.Format)
	}
	switch out.MarkdownStyle {
	case "", "dark", "light", "notty":
	default:
		return errors.Newf("output.markdown_style must be \"dark\", \"light\", or \"notty\", got %q", out.MarkdownStyle)
	}
	if out.Width < 0 {
		return errors.Newf("output.width must not be negative, got %d", out.Width)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return errors.Newf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	if t.Exporter != "" {
		switch t.Exporter {
		case tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
		default:
			return errors.Newf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if t.Enabled {
		if t.Exporter == tracing.ExporterFile && t.FilePath == "" {
			return errors.New("tracing.file_path is required when exporter is \"file\"")
		}
		if t.Exporter == tracing.ExporterOTLP && t.OTLPEndpoint == "" {
			return errors.New("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Keystone Configuration

# Directory holding catalog definition files (*.yaml, *.yml, *.hcl)
catalog_dir: catalog

# Debug logging (also KEYSTONE_DEBUG=1)
debug: false
# log_file: keystone.log   # stderr when unset

# Command output
output:
  format: text            # text (default) or json
  no_color: false         # also honoured via NO_COLOR
  width: 80               # wrap width for text output
  markdown_style: dark    # dark (default), light, or notty

# keystone watch settings
watch:
  debounce: 300ms         # quiet period before a reload

# Lookup cache of the live catalog (flushed on every reload)
cache:
  ttl: 10m
  cleanup_interval: 15m

# Distributed tracing of catalog loads and lookups
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: stdout               # Export backend: none, file, stdout, otlp (default: stdout)
#   file_path: ~/.config/keystone/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)

# Feature flags (all default to false)
# flags:
#   bypass-lookup-cache: true   # resolve lookups without the cache
#   registry-events: true       # log every registration and freeze
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return errors.Wrap(err, "creating config directory")
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return errors.Wrap(err, "writing config file")
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
