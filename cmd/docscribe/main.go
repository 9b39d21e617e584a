package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/docscribe/docscribe/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "docscribe",
	Short: "docscribe - document OCR and audio transcription via the Mistral API",
	Long: `docscribe converts PDFs to markdown or plain text with Mistral OCR and
transcribes audio files, tracking the per-page API cost of every run.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	flagAPIKey  string
	flagVerbose bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "Mistral API key (overrides MISTRAL_API_KEY)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the run configuration and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}
	cfg.Verbose = flagVerbose
	return cfg, nil
}

// newLogger builds the process logger. Diagnostics go to stderr so stdout
// stays clean for the per-item progress lines.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}
