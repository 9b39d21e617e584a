package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docscribe/docscribe/internal/batch"
	"github.com/docscribe/docscribe/internal/convert"
	"github.com/docscribe/docscribe/internal/ledger"
	"github.com/docscribe/docscribe/internal/mistral"
	"github.com/docscribe/docscribe/internal/ui"
	"github.com/docscribe/docscribe/internal/usagedb"
)

// audioExts are the input extensions accepted for transcription.
var audioExts = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".opus", ".webm"}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [input]",
	Short: "Transcribe audio file(s) to text",
	Long: `Transcribe a single audio file, or every audio file under a directory
(recursively), to a .txt file next to the source. Skip and re-process
semantics match convert.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTranscribe,
}

var (
	transcribeModel     string
	transcribeURL       string
	transcribeKeep      bool
	transcribeYes       bool
	transcribeTrackFile string
	transcribeTrackFmt  string
)

func init() {
	f := transcribeCmd.Flags()
	f.StringVar(&transcribeModel, "model", "", "Transcription model name (default: voxtral-mini-latest)")
	f.StringVar(&transcribeURL, "url", "", "Download and transcribe a remote audio file")
	f.BoolVar(&transcribeKeep, "keep", false, "Keep the downloaded copy of a --url input")
	f.BoolVarP(&transcribeYes, "yes", "y", false, "Re-process without asking for confirmation")
	f.StringVar(&transcribeTrackFile, "track-file", "", "Additional tracking file (optional)")
	f.StringVar(&transcribeTrackFmt, "track-format", "csv", "Format for --track-file: csv or txt")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && transcribeURL == "" {
		return fmt.Errorf("provide an input path or --url")
	}
	if len(args) > 0 && transcribeURL != "" {
		return fmt.Errorf("an input path and --url are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := newLogger(cfg.Verbose)

	if transcribeModel != "" {
		cfg.TranscribeModel = transcribeModel
	}

	client := mistral.New(cfg.APIKey,
		mistral.WithBaseURL(cfg.BaseURL),
		mistral.WithTimeout(cfg.Timeout),
		mistral.WithLogger(log),
	)

	ctrl := &batch.Controller{
		Converter: &convert.Audio{Client: client, Model: cfg.TranscribeModel},
		Confirm:   ui.Confirm,
		Model:     cfg.TranscribeModel,
		Log:       log,
		Ledgers:   []*ledger.Ledger{ledger.New(cfg.TrackFile, ledger.FormatCSV)},
	}
	if transcribeTrackFile != "" {
		ctrl.Ledgers = append(ctrl.Ledgers, ledger.New(transcribeTrackFile, ledger.Format(transcribeTrackFmt)))
	}

	store, err := usagedb.Open(cfg.DBPath)
	if err != nil {
		log.Warn().Err(err).Msg("usage db unavailable")
	} else {
		defer store.Close()
		ctrl.Store = store
	}

	in := batch.Input{URL: transcribeURL}
	if len(args) > 0 {
		in.Path = args[0]
	}

	report, err := ctrl.Run(cmd.Context(), in, batch.Options{
		TargetExt:  ".txt",
		SourceExts: audioExts,
		Keep:       transcribeKeep,
		AssumeYes:  transcribeYes,
	})
	if err != nil {
		return err
	}

	printReport(report, cfg.TrackFile, transcribeTrackFile)
	return nil
}
