// Package config loads and validates the pageforce configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edgecomet/pageforce/internal/common/configtypes"
	"github.com/edgecomet/pageforce/pkg/types"
)

const (
	defaultWatchdogInterval = 250 * time.Millisecond
	defaultMaxPages         = 100
	defaultMinAverage       = 1.0
	defaultMaxAverage       = 10.0
	defaultProgressDialogID = "renderProgress"
	defaultAttachTimeout    = 10 * time.Second
	defaultViewerObject     = "PDFViewerApplication"
	defaultTextLayerClass   = "textLayer"
)

// Config is the root pageforce configuration.
type Config struct {
	Force     ForceConfig               `yaml:"force"`
	Highlight HighlightConfig           `yaml:"highlight"`
	Viewer    ViewerConfig              `yaml:"viewer"`
	Log       configtypes.LogConfig     `yaml:"log"`
	Metrics   configtypes.MetricsConfig `yaml:"metrics"`
}

// ForceConfig configures the render-forcing cycle.
type ForceConfig struct {
	// WatchdogInterval is how often a paused forced page is re-issued.
	WatchdogInterval types.Duration `yaml:"watchdog_interval"`

	// MaxPages aborts the cycle for documents above this page count.
	// Negative disables the ceiling; zero means "use the default".
	MaxPages *int `yaml:"max_pages,omitempty"`

	// ProgressDialogID is the fixed identifier of the host progress dialog.
	ProgressDialogID string `yaml:"progress_dialog_id"`
}

// HighlightConfig configures the text-quality gate for the highlighting
// feature.
type HighlightConfig struct {
	Enabled bool `yaml:"enabled"`

	// The document is eligible when the average word length falls strictly
	// inside (min_average_word_length, max_average_word_length).
	MinAverageWordLength float64 `yaml:"min_average_word_length"`
	MaxAverageWordLength float64 `yaml:"max_average_word_length"`
}

// ViewerConfig configures the DevTools viewer adapter used by the harness.
type ViewerConfig struct {
	// DevtoolsURL is the ws:// or http:// endpoint of the browser running
	// the viewer. Empty lets the adapter launch its own browser.
	DevtoolsURL string `yaml:"devtools_url"`

	// PageURL is the viewer page to attach to (harness only).
	PageURL string `yaml:"page_url"`

	AttachTimeout types.Duration `yaml:"attach_timeout"`

	// ViewerObject is the global viewer application object in the page.
	ViewerObject string `yaml:"viewer_object"`

	// TextLayerClass is the class name of per-page text layer containers.
	TextLayerClass string `yaml:"text_layer_class"`
}

// Load reads, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := unmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ResolvePath resolves and verifies a config file path.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("config path cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("config file does not exist: %s", absPath)
	}

	return absPath, nil
}

// MaxPagesValue returns the effective page ceiling, 0 meaning disabled.
func (f *ForceConfig) MaxPagesValue() int {
	if f.MaxPages == nil {
		return defaultMaxPages
	}
	if *f.MaxPages < 0 {
		return 0
	}
	return *f.MaxPages
}

func (cfg *Config) applyDefaults() {
	if cfg.Force.WatchdogInterval == 0 {
		cfg.Force.WatchdogInterval = types.Duration(defaultWatchdogInterval)
	}
	if cfg.Force.MaxPages != nil && *cfg.Force.MaxPages == 0 {
		cfg.Force.MaxPages = nil
	}
	if cfg.Force.ProgressDialogID == "" {
		cfg.Force.ProgressDialogID = defaultProgressDialogID
	}

	if cfg.Highlight.MinAverageWordLength == 0 {
		cfg.Highlight.MinAverageWordLength = defaultMinAverage
	}
	if cfg.Highlight.MaxAverageWordLength == 0 {
		cfg.Highlight.MaxAverageWordLength = defaultMaxAverage
	}

	if cfg.Viewer.AttachTimeout == 0 {
		cfg.Viewer.AttachTimeout = types.Duration(defaultAttachTimeout)
	}
	if cfg.Viewer.ViewerObject == "" {
		cfg.Viewer.ViewerObject = defaultViewerObject
	}
	if cfg.Viewer.TextLayerClass == "" {
		cfg.Viewer.TextLayerClass = defaultTextLayerClass
	}

	// Enable console logging when both outputs are left disabled.
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = configtypes.LogLevelInfo
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = configtypes.LogFormatText
	}
}

// Validate checks configuration validity.
func (cfg *Config) Validate() error {
	if cfg.Force.WatchdogInterval <= 0 {
		return fmt.Errorf("force.watchdog_interval must be positive")
	}

	if cfg.Highlight.MinAverageWordLength < 0 {
		return fmt.Errorf("highlight.min_average_word_length must be >= 0")
	}
	if cfg.Highlight.MaxAverageWordLength <= cfg.Highlight.MinAverageWordLength {
		return fmt.Errorf("highlight.max_average_word_length must exceed min_average_word_length")
	}

	validLogLevels := map[string]bool{
		configtypes.LogLevelDebug: true,
		configtypes.LogLevelInfo:  true,
		configtypes.LogLevelWarn:  true,
		configtypes.LogLevelError: true,
	}
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log.level: %s (must be debug, info, warn or error)", cfg.Log.Level)
	}

	if cfg.Log.Console.Enabled && cfg.Log.Console.Format != "" {
		if cfg.Log.Console.Format != configtypes.LogFormatJSON && cfg.Log.Console.Format != configtypes.LogFormatConsole {
			return fmt.Errorf("invalid log.console.format: %s (must be json or console)", cfg.Log.Console.Format)
		}
	}

	if cfg.Log.File.Enabled {
		if cfg.Log.File.Path == "" {
			return fmt.Errorf("log.file.path must be specified when file logging is enabled")
		}
		if cfg.Log.File.Format != "" {
			if cfg.Log.File.Format != configtypes.LogFormatJSON && cfg.Log.File.Format != configtypes.LogFormatText {
				return fmt.Errorf("invalid log.file.format: %s (must be json or text)", cfg.Log.File.Format)
			}
		}
		if cfg.Log.File.Rotation.MaxSize < 0 {
			return fmt.Errorf("log.file.rotation.max_size must be >= 0, got %d", cfg.Log.File.Rotation.MaxSize)
		}
		if cfg.Log.File.Rotation.MaxAge < 0 {
			return fmt.Errorf("log.file.rotation.max_age must be >= 0, got %d", cfg.Log.File.Rotation.MaxAge)
		}
		if cfg.Log.File.Rotation.MaxBackups < 0 {
			return fmt.Errorf("log.file.rotation.max_backups must be >= 0, got %d", cfg.Log.File.Rotation.MaxBackups)
		}
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("metrics.listen is required when metrics enabled")
		} else if err := configtypes.ValidateListenAddress(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("invalid metrics.listen: %w", err)
		}
	}

	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics.path: %s (must start with /)", cfg.Metrics.Path)
	}

	if cfg.Metrics.Namespace != "" {
		if matched, _ := regexp.MatchString(`^[a-zA-Z_][a-zA-Z0-9_]*$`, cfg.Metrics.Namespace); !matched {
			return fmt.Errorf("invalid metrics.namespace: %s (must match [a-zA-Z_][a-zA-Z0-9_]*)", cfg.Metrics.Namespace)
		}
	}

	return nil
}

// unmarshalStrict decodes YAML rejecting unknown fields, catching config
// typos at load time.
func unmarshalStrict(data []byte, v interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(v); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "field") && strings.Contains(errStr, "not found") {
			return fmt.Errorf("unknown configuration field (check for typos): %w", err)
		}
		return err
	}

	return nil
}
