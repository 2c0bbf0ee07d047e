package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	PublishDir string `toml:"publish_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Storage contains configuration for published clip delivery.
type Storage struct {
	// PublicBaseURL prefixes uploaded object paths to form the URLs handed
	// back to clients.
	PublicBaseURL string `toml:"public_base_url"`
}

// Sourcing contains configuration for source media acquisition.
type Sourcing struct {
	// DownloadTimeout bounds a remote source fetch, in seconds. A timeout is
	// fatal to the job.
	DownloadTimeout int `toml:"download_timeout"`
}

// Encoding contains configuration for the ffmpeg-backed encoder.
type Encoding struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	// EncodeTimeout bounds one per-segment encode, in seconds. A timeout
	// fails that segment only.
	EncodeTimeout int `toml:"encode_timeout"`
}

// Tracking contains configuration for the optional subject-tracking analyzer.
type Tracking struct {
	AnalyzerBinary string `toml:"analyzer_binary"`
	AnalyzeTimeout int    `toml:"analyze_timeout"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	MaxRetries         int `toml:"max_retries"`
	// StaleWorkspaceHours is the age after which abandoned working
	// directories are swept at daemon start.
	StaleWorkspaceHours int `toml:"stale_workspace_hours"`
	// ClientPollInterval is the reconciliation interval used by polling
	// clients, in seconds.
	ClientPollInterval int `toml:"client_poll_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Plan declares one subscription tier's ceilings in the config file.
type Plan struct {
	MaxResolution    string `toml:"max_resolution"`
	WatermarkForced  bool   `toml:"watermark_forced"`
	DailyClipLimit   int    `toml:"daily_clip_limit"`
	MonthlyClipLimit int    `toml:"monthly_clip_limit"`
	Priority         int    `toml:"priority"`
}

// Config encapsulates all configuration values for clipper.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Storage: public URL shape for published clips
//   - Sourcing: source download limits
//   - Encoding: ffmpeg/ffprobe binaries and encode timeout
//   - Tracking: optional subject-tracking analyzer
//   - Workflow: daemon polling intervals, timeouts, retry ceiling
//   - Logging: log format and level
//   - Plans: subscription tiers keyed by plan code
type Config struct {
	Paths    Paths           `toml:"paths"`
	Storage  Storage         `toml:"storage"`
	Sourcing Sourcing        `toml:"sourcing"`
	Encoding Encoding        `toml:"encoding"`
	Tracking Tracking        `toml:"tracking"`
	Workflow Workflow        `toml:"workflow"`
	Logging  Logging         `toml:"logging"`
	Plans    map[string]Plan `toml:"plans"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipper/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// PublishDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.PublishDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.PublishDir, 0o755)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
