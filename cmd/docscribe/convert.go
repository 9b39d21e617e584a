package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docscribe/docscribe/internal/batch"
	"github.com/docscribe/docscribe/internal/convert"
	"github.com/docscribe/docscribe/internal/ledger"
	"github.com/docscribe/docscribe/internal/mistral"
	"github.com/docscribe/docscribe/internal/pdfinfo"
	"github.com/docscribe/docscribe/internal/ui"
	"github.com/docscribe/docscribe/internal/usagedb"
)

var convertCmd = &cobra.Command{
	Use:   "convert [input]",
	Short: "Convert PDF(s) to markdown or plain text",
	Long: `Convert a single PDF, every PDF under a directory (recursively), or a
remote document fetched from a URL.

Files whose output already exists are skipped in directory mode; in
single-file mode you are asked before re-processing, and a confirmed
re-process writes to a uniquely suffixed file (_1, _2, ...) instead of
overwriting. Every successful conversion appends a row to the cost
tracking file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

var (
	convertMD          bool
	convertTxt         bool
	convertURL         string
	convertKeep        bool
	convertModel       string
	convertTrackFile   string
	convertTrackFormat string
	convertYes         bool
	convertDryRun      bool
	convertImages      bool
)

func init() {
	f := convertCmd.Flags()
	f.BoolVar(&convertMD, "md", false, "Write markdown output (the default)")
	f.BoolVar(&convertTxt, "txt", false, "Write plain text output instead of markdown")
	f.StringVar(&convertURL, "url", "", "Download and convert a remote document")
	f.BoolVar(&convertKeep, "keep", false, "Keep the downloaded copy of a --url input")
	f.StringVar(&convertModel, "model", "", "OCR model name (default: mistral-ocr-latest)")
	f.StringVar(&convertTrackFile, "track-file", "", "Additional tracking file (optional)")
	f.StringVar(&convertTrackFormat, "track-format", "csv", "Format for --track-file: csv or txt")
	f.BoolVarP(&convertYes, "yes", "y", false, "Re-process without asking for confirmation")
	f.BoolVar(&convertDryRun, "dry-run", false, "Estimate cost from local page counts, no API calls")
	f.BoolVar(&convertImages, "images", false, "Save images embedded in the document next to it")
}

func runConvert(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && convertURL == "" {
		return fmt.Errorf("provide an input path or --url")
	}
	if len(args) > 0 && convertURL != "" {
		return fmt.Errorf("an input path and --url are mutually exclusive")
	}
	if convertMD && convertTxt {
		return fmt.Errorf("--md and --txt are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Verbose)

	if convertModel != "" {
		cfg.Model = convertModel
	}

	targetExt := ".md"
	if convertTxt {
		targetExt = ".txt"
	}

	ctrl := &batch.Controller{
		Confirm:  ui.Confirm,
		Estimate: pdfinfo.PageCount,
		Model:    cfg.Model,
		Log:      log,
	}

	// A dry run never talks to the API, so it works without a credential
	// and records nothing.
	if !convertDryRun {
		if err := cfg.Validate(); err != nil {
			return err
		}

		client := mistral.New(cfg.APIKey,
			mistral.WithBaseURL(cfg.BaseURL),
			mistral.WithTimeout(cfg.Timeout),
			mistral.WithLogger(log),
		)
		ctrl.Converter = &convert.Document{
			Client:        client,
			Model:         cfg.Model,
			PlainText:     convertTxt,
			ExtractImages: convertImages,
			Log:           log,
		}

		// The default tracking file is always CSV; a custom one honors
		// --track-format.
		ctrl.Ledgers = []*ledger.Ledger{ledger.New(cfg.TrackFile, ledger.FormatCSV)}
		if convertTrackFile != "" {
			ctrl.Ledgers = append(ctrl.Ledgers, ledger.New(convertTrackFile, ledger.Format(convertTrackFormat)))
		}

		store, err := usagedb.Open(cfg.DBPath)
		if err != nil {
			log.Warn().Err(err).Msg("usage db unavailable")
		} else {
			defer store.Close()
			ctrl.Store = store
		}
	}

	in := batch.Input{URL: convertURL}
	if len(args) > 0 {
		in.Path = args[0]
	}

	report, err := ctrl.Run(cmd.Context(), in, batch.Options{
		TargetExt:  targetExt,
		SourceExts: []string{".pdf"},
		Keep:       convertKeep,
		AssumeYes:  convertYes,
		DryRun:     convertDryRun,
	})
	if err != nil {
		return err
	}

	if !convertDryRun {
		printReport(report, cfg.TrackFile, convertTrackFile)
	}
	return nil
}

// printReport prints the end-of-run summary.
func printReport(r *batch.Report, trackFile, customTrackFile string) {
	fmt.Println()
	fmt.Println(ui.Title("Processing complete!"))
	fmt.Printf("Files processed: %d, skipped: %d, failed: %d\n", r.Processed, r.Skipped, r.Failed)
	if r.Processed > 0 {
		fmt.Printf("Total cost: $%.4f\n", r.TotalCost)
		fmt.Println(ui.Muted("Usage tracking saved to " + trackFile))
		if customTrackFile != "" {
			fmt.Println(ui.Muted("Custom tracking saved to " + customTrackFile))
		}
	}
	for _, f := range r.Failures {
		fmt.Fprintln(os.Stderr, ui.Failure(fmt.Sprintf("%s: %s", f.Source, f.Reason)))
	}
}
