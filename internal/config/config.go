// Package config loads run configuration from flags, environment variables,
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is reported before any processing begins when no
// credential is available.
var ErrMissingAPIKey = errors.New("missing API key: pass --api-key or set MISTRAL_API_KEY in the environment or a .env file")

// DefaultTrackFile is the name of the always-on cost tracking file.
const DefaultTrackFile = "ocr_usage_tracking.csv"

// Config holds everything a run needs.
type Config struct {
	APIKey          string
	Model           string
	TranscribeModel string
	BaseURL         string
	Timeout         time.Duration
	TrackFile       string
	TrackFormat     string
	DBPath          string
	Verbose         bool
}

// Load reads configuration from a .env file (if present) and the
// environment. Flag values are applied by the caller on top of the result.
func Load() (*Config, error) {
	// Same behavior as load_dotenv: a missing .env is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DOCSCRIBE")
	v.AutomaticEnv()

	v.SetDefault("model", "mistral-ocr-latest")
	v.SetDefault("transcribe_model", "voxtral-mini-latest")
	v.SetDefault("base_url", "https://api.mistral.ai")
	v.SetDefault("timeout", "120s")
	v.SetDefault("track_format", "csv")

	// The credential is commonly set as MISTRAL_API_KEY; accept the
	// prefixed form too.
	_ = v.BindEnv("api_key", "MISTRAL_API_KEY", "DOCSCRIBE_API_KEY")
	_ = v.BindEnv("model", "DOCSCRIBE_MODEL")
	_ = v.BindEnv("transcribe_model", "DOCSCRIBE_TRANSCRIBE_MODEL")
	_ = v.BindEnv("base_url", "DOCSCRIBE_BASE_URL")
	_ = v.BindEnv("track_file", "DOCSCRIBE_TRACK_FILE")

	configDir, err := defaultConfigDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIKey:          v.GetString("api_key"),
		Model:           v.GetString("model"),
		TranscribeModel: v.GetString("transcribe_model"),
		BaseURL:         v.GetString("base_url"),
		Timeout:         v.GetDuration("timeout"),
		TrackFile:       v.GetString("track_file"),
		TrackFormat:     v.GetString("track_format"),
		DBPath:          filepath.Join(configDir, "usage.db"),
	}
	if cfg.TrackFile == "" {
		cfg.TrackFile = filepath.Join(configDir, DefaultTrackFile)
	}
	return cfg, nil
}

// Validate checks that the configuration can support API calls.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// defaultConfigDir returns ~/.config/docscribe, creating it if needed.
func defaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".config", "docscribe")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}
