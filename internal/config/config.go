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

// Paths contains directory configuration.
type Paths struct {
	// LibraryRoots are the directories scanned for candidate game folders.
	LibraryRoots []string `toml:"library_roots"`
	DataDir      string   `toml:"data_dir"`
	LogDir       string   `toml:"log_dir"`
}

// GiantBomb contains configuration for the GiantBomb API.
type GiantBomb struct {
	Enabled           bool    `toml:"enabled"`
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// IGDB contains configuration for the IGDB API (Twitch credentials).
type IGDB struct {
	Enabled           bool    `toml:"enabled"`
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	BaseURL           string  `toml:"base_url"`
	TokenURL          string  `toml:"token_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// OpenCritic contains configuration for the OpenCritic API.
type OpenCritic struct {
	Enabled           bool    `toml:"enabled"`
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Sync contains configuration for sync runs.
type Sync struct {
	// ProviderOrder is the priority order in which providers are consulted
	// for each library path.
	ProviderOrder []string `toml:"provider_order"`
	// AllowSmartChoose auto-accepts the single exact name match per provider.
	AllowSmartChoose bool `toml:"allow_smart_choose"`
	// FilterPreviouslyDiscarded hides results the user already passed over
	// for the same path and provider.
	FilterPreviouslyDiscarded bool `toml:"filter_previously_discarded"`
	// SearchLimit is the page size requested from providers.
	SearchLimit int `toml:"search_limit"`
	// ChoiceTimeout bounds how long a run waits for an interactive choice,
	// in seconds. Zero means wait indefinitely.
	ChoiceTimeout int `toml:"choice_timeout"`
}

// Notify contains configuration for push notifications.
type Notify struct {
	Topic          string `toml:"topic"`
	RequestTimeout int    `toml:"request_timeout"`
	SyncEvents     bool   `toml:"sync_events"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ludex.
type Config struct {
	Paths      Paths      `toml:"paths"`
	GiantBomb  GiantBomb  `toml:"giantbomb"`
	IGDB       IGDB       `toml:"igdb"`
	OpenCritic OpenCritic `toml:"opencritic"`
	Sync       Sync       `toml:"sync"`
	Notify     Notify     `toml:"notify"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/ludex/config.toml")
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration file to the given location.
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

// Load locates, parses, normalizes, and validates a configuration file. The
// returned config has all path fields expanded. The second return value is
// the resolved path, the third whether a file existed there.
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
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
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
	projectPath, err := filepath.Abs("ludex.toml")
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
// Library roots are created best-effort so the daemon can start while
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, root := range c.Paths.LibraryRoots {
		if strings.TrimSpace(root) != "" {
			_ = os.MkdirAll(root, 0o755)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "library.db")
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "ludexd.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "ludexd.lock")
}

// LogFilePath returns the daemon log file location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "ludexd.log")
}

// ExpandPath resolves ~ prefixes and returns a cleaned absolute path.
func ExpandPath(pathValue string) (string, error) {
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
