package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Mode selects the application shell's startup strategy.
type Mode string

const (
	// ModeDebug attaches the debug logger and never spawns the sidecar.
	ModeDebug Mode = "debug"
	// ModeRelease spawns the bundled backend sidecar.
	ModeRelease Mode = "release"
)

// Config holds settings for both the application shell and the backend.
type Config struct {
	// Shell settings
	Mode     Mode   `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`

	// Backend server settings
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// Storage
	DataDir      string `mapstructure:"data_dir"`
	DatabasePath string `mapstructure:"database_path"`

	// API keys are loaded from files in KeysDir, one key per file.
	KeysDir           string `mapstructure:"keys_dir"`
	GeminiAPIKey      string `mapstructure:"-"`
	GoogleBooksAPIKey string `mapstructure:"-"`

	// Feature flags
	EnableLLM       bool `mapstructure:"enable_llm"`
	EnableProviders bool `mapstructure:"enable_providers"`

	// Audnexus public API (no key needed)
	AudnexusBaseURL string `mapstructure:"audnexus_base_url"`

	// Scan settings
	AudiobookFolderPattern string   `mapstructure:"audiobook_folder_pattern"`
	AudiobookExtensions    []string `mapstructure:"audiobook_extensions"`
	EbookExtensions        []string `mapstructure:"ebook_extensions"`
	ComicExtensions        []string `mapstructure:"comic_extensions"`

	// Duration threshold for audiobook detection, in seconds.
	AudiobookMinDuration int `mapstructure:"audiobook_min_duration"`

	// Naming templates
	AudiobookFolderTemplate string `mapstructure:"audiobook_folder_template"`
	AudiobookFileTemplate   string `mapstructure:"audiobook_file_template"`
}

// DefaultDataDir returns ~/.media-organizer, falling back to the working
// directory when the home directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".media-organizer"
	}
	return filepath.Join(home, ".media-organizer")
}

func setDefaults(v *viper.Viper) {
	dataDir := DefaultDataDir()

	v.SetDefault("mode", string(ModeRelease))
	v.SetDefault("log_level", "info")
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8742)
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("database_path", filepath.Join(dataDir, "media_organizer.db"))
	v.SetDefault("keys_dir", filepath.Join(dataDir, "keys"))
	v.SetDefault("enable_llm", true)
	v.SetDefault("enable_providers", true)
	v.SetDefault("audnexus_base_url", "https://api.audnex.us")
	v.SetDefault("audiobook_folder_pattern", "audiobook")
	v.SetDefault("audiobook_extensions", []string{".mp3", ".m4b", ".m4a", ".flac"})
	v.SetDefault("ebook_extensions", []string{".epub", ".mobi", ".pdf", ".azw3"})
	v.SetDefault("comic_extensions", []string{".cbz", ".cbr", ".cb7"})
	v.SetDefault("audiobook_min_duration", 1800)
	v.SetDefault("audiobook_folder_template", "{author_sort}/{series}/{series_index} - {title} ({year})")
	v.SetDefault("audiobook_file_template", "{series_index} - {title}.{ext}")
}

// Load reads configuration from the given file, or from
// <data dir>/config.yaml when cfgFile is empty, plus MEDIA_ORGANIZER_*
// environment variables. A missing config file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(DefaultDataDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MEDIA_ORGANIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Mode != ModeDebug && cfg.Mode != ModeRelease {
		return nil, fmt.Errorf("invalid mode %q (want debug or release)", cfg.Mode)
	}

	cfg.GeminiAPIKey = loadKeyFromFile(cfg.KeysDir, "gemini_key_local.txt")
	cfg.GoogleBooksAPIKey = loadKeyFromFile(cfg.KeysDir, "google_books_api_key.txt")

	return cfg, nil
}

// loadKeyFromFile reads an API key from a text file, returning "" if missing.
func loadKeyFromFile(keysDir, filename string) string {
	data, err := os.ReadFile(filepath.Join(keysDir, filename))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// EnsureDataDir creates the data directory tree and returns the database path.
func (c *Config) EnsureDataDir() (string, error) {
	if err := os.MkdirAll(filepath.Dir(c.DatabasePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return c.DatabasePath, nil
}

// LogDir returns the directory component loggers write to.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// BackendURL returns the base URL the shell uses to reach the backend.
func (c *Config) BackendURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// AllExtensions returns every supported media extension.
func (c *Config) AllExtensions() []string {
	out := make([]string, 0, len(c.AudiobookExtensions)+len(c.EbookExtensions)+len(c.ComicExtensions))
	out = append(out, c.AudiobookExtensions...)
	out = append(out, c.EbookExtensions...)
	out = append(out, c.ComicExtensions...)
	return out
}
