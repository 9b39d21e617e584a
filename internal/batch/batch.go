// Package batch runs the idempotent file-processing loop: it enumerates
// inputs, decides per file whether to skip, process, or ask first, invokes
// the conversion backend, writes outputs, and records usage.
package batch

import (
	"context"
	"errors"
)

// Sentinel errors for fatal run conditions. All of these abort before any
// item is processed.
var (
	ErrUnreachableInput = errors.New("input path not found")
	ErrNoMatchingFiles  = errors.New("no matching files found")
	ErrDownloadFailed   = errors.New("download failed")
)

// Kind distinguishes how a work item entered the run.
type Kind int

const (
	// LocalFile is a file that was already on disk.
	LocalFile Kind = iota
	// DownloadedFile is a temporary local copy of a URL input.
	DownloadedFile
)

// WorkItem identifies one input unit.
type WorkItem struct {
	// SourcePath is the local file handed to the converter.
	SourcePath string
	// ResolvePath anchors output naming. For local files it equals
	// SourcePath; for downloads it points into the working directory so the
	// output does not land next to the temp copy.
	ResolvePath string
	Kind        Kind
	// CleanupOnFinish deletes SourcePath once the item is done, on every
	// exit path.
	CleanupOnFinish bool
}

// Output is what the conversion backend returns for one file: the final
// content in the requested format plus the billed unit count.
type Output struct {
	Content string
	Units   int
}

// Converter is the external conversion collaborator. Implementations call
// the hosted API; tests substitute a stub.
type Converter interface {
	Convert(ctx context.Context, sourcePath string) (*Output, error)
}

// ConvertFunc adapts a function to the Converter interface.
type ConvertFunc func(ctx context.Context, sourcePath string) (*Output, error)

func (f ConvertFunc) Convert(ctx context.Context, sourcePath string) (*Output, error) {
	return f(ctx, sourcePath)
}

// ConfirmFunc asks the user a yes/no question and blocks for the answer.
// The zero answer is no.
type ConfirmFunc func(question string) bool

// EstimateFunc returns the local unit-count estimate for a file, used by
// dry runs to price a batch without API calls.
type EstimateFunc func(sourcePath string) (int, error)

// Input names the work source: exactly one of Path or URL is set.
type Input struct {
	Path string
	URL  string
}

// Options control one run.
type Options struct {
	// TargetExt is the output extension, ".md" or ".txt".
	TargetExt string
	// SourceExts are the acceptable input extensions (lower case, with dot).
	SourceExts []string
	// Keep retains the temporary copy of a URL input after processing.
	Keep bool
	// AssumeYes answers every re-process confirmation with yes.
	AssumeYes bool
	// DryRun estimates cost locally and performs no API calls or writes.
	DryRun bool
}

// Failure describes one item that could not be processed.
type Failure struct {
	Source string
	Reason string
}

// Report summarizes a run. Per-item failures do not make a run fatal.
type Report struct {
	Processed int
	Skipped   int
	Failed    int
	Failures  []Failure
	TotalCost float64

	// Dry-run estimates; zero on real runs.
	EstimatedUnits int
	EstimatedCost  float64
}
