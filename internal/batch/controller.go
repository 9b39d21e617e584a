package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/docscribe/docscribe/internal/ledger"
	"github.com/docscribe/docscribe/internal/mistral"
	"github.com/docscribe/docscribe/internal/resolver"
	"github.com/docscribe/docscribe/internal/ui"
	"github.com/docscribe/docscribe/internal/usagedb"
)

// Controller drives a run. Fields left nil fall back to safe defaults; in
// particular a nil Confirm declines every re-process question.
type Controller struct {
	Converter Converter
	Confirm   ConfirmFunc
	Ledgers   []*ledger.Ledger
	Store     *usagedb.Store
	Estimate  EstimateFunc
	Model     string
	Out       io.Writer
	Log       zerolog.Logger
}

// Run enumerates the input, applies skip/confirm logic per item, and
// processes the remainder sequentially. The returned error is non-nil only
// for fatal conditions (bad input, failed single-URL download, credential
// rejection); per-item failures land in the report.
func (c *Controller) Run(ctx context.Context, in Input, opts Options) (*Report, error) {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}

	report := &Report{}

	items, directoryMode, err := c.enumerate(ctx, in, opts)
	if err != nil {
		return nil, err
	}

	var work []plannedItem
	if directoryMode {
		work = c.partitionDirectory(out, items, opts, report)
	} else {
		work, err = c.resolveSingle(out, items[0], opts, report)
		if err != nil {
			return nil, err
		}
	}

	if len(work) == 0 {
		c.cleanupAll(work)
		return report, nil
	}

	if opts.DryRun {
		defer c.cleanupAll(work)
		return report, c.estimateRun(out, work, report)
	}

	fmt.Fprintf(out, "Processing %d file(s)...\n", len(work))

	var progress *ui.Progress
	if directoryMode {
		progress = ui.NewProgress(len(work))
	}

	for i, item := range work {
		if err := ctx.Err(); err != nil {
			c.cleanupAll(work[i:])
			return report, err
		}

		err := c.processOne(ctx, out, item, report)
		if err != nil {
			// A rejected credential fails every subsequent call the same
			// way, so stop the whole run.
			c.cleanupAll(work[i+1:])
			return report, err
		}

		if progress != nil {
			fmt.Fprintln(out, progress.View(i+1))
		}
	}

	return report, nil
}

// plannedItem is a work item with its resolved output target.
type plannedItem struct {
	WorkItem
	target string
}

// enumerate turns the named input into work items. Exactly one of a file, a
// directory, or a URL.
func (c *Controller) enumerate(ctx context.Context, in Input, opts Options) ([]WorkItem, bool, error) {
	if in.URL != "" {
		localPath, name, err := download(ctx, in.URL)
		if err != nil {
			return nil, false, err
		}
		cwd, _ := os.Getwd()
		item := WorkItem{
			SourcePath:      localPath,
			ResolvePath:     filepath.Join(cwd, name),
			Kind:            DownloadedFile,
			CleanupOnFinish: !opts.Keep,
		}
		return []WorkItem{item}, false, nil
	}

	info, err := os.Stat(in.Path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", ErrUnreachableInput, in.Path)
	}

	if info.IsDir() {
		files, err := findFiles(in.Path, opts.SourceExts)
		if err != nil {
			return nil, false, err
		}
		if len(files) == 0 {
			return nil, false, fmt.Errorf("%w in directory: %s", ErrNoMatchingFiles, in.Path)
		}
		items := make([]WorkItem, 0, len(files))
		for _, f := range files {
			items = append(items, WorkItem{SourcePath: f, ResolvePath: f, Kind: LocalFile})
		}
		return items, true, nil
	}

	if !matchesExt(in.Path, opts.SourceExts) {
		return nil, false, fmt.Errorf("%w: expected %s, got %s",
			ErrUnreachableInput, strings.Join(opts.SourceExts, "/"), filepath.Base(in.Path))
	}
	return []WorkItem{{SourcePath: in.Path, ResolvePath: in.Path, Kind: LocalFile}}, false, nil
}

// partitionDirectory splits directory items into skip and process sets and
// reports the skip count. Directory batches never prompt.
func (c *Controller) partitionDirectory(out io.Writer, items []WorkItem, opts Options, report *Report) []plannedItem {
	var work []plannedItem
	for _, item := range items {
		d := resolver.Resolve(item.ResolvePath, opts.TargetExt, true)
		if d.Action == resolver.Skip {
			report.Skipped++
			c.Log.Debug().Str("file", item.SourcePath).Str("reason", d.Reason).Msg("skipping")
			continue
		}
		work = append(work, plannedItem{WorkItem: item, target: d.TargetPath})
	}

	if report.Skipped > 0 {
		fmt.Fprintf(out, "Skipping %d of %d already processed file(s), %d remaining.\n",
			report.Skipped, len(items), len(work))
	}
	return work
}

// resolveSingle handles single-file (and single-URL) mode, including the
// interactive re-process confirmation. A declined confirmation is a skip
// outcome with no side effects.
func (c *Controller) resolveSingle(out io.Writer, item WorkItem, opts Options, report *Report) ([]plannedItem, error) {
	d := resolver.Resolve(item.ResolvePath, opts.TargetExt, false)
	target := d.TargetPath

	if d.Action == resolver.ProcessWithConfirmation {
		question := fmt.Sprintf("File %q has already been processed. Re-process it?", filepath.Base(item.ResolvePath))
		confirmed := opts.AssumeYes
		if !confirmed && c.Confirm != nil {
			confirmed = c.Confirm(question)
		}
		if !confirmed {
			fmt.Fprintln(out, "Skipping processing.")
			report.Skipped++
			c.cleanupItem(item)
			return nil, nil
		}
		target = resolver.UniquePath(item.ResolvePath, opts.TargetExt)
		fmt.Fprintf(out, "Output will be saved as: %s\n", filepath.Base(target))
	}

	return []plannedItem{{WorkItem: item, target: target}}, nil
}

// estimateRun prices the planned work locally without touching the API or
// the ledger.
func (c *Controller) estimateRun(out io.Writer, work []plannedItem, report *Report) error {
	if c.Estimate == nil {
		return errors.New("dry run is not supported for this input type")
	}

	for _, item := range work {
		units, err := c.Estimate(item.SourcePath)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{
				Source: item.SourcePath,
				Reason: err.Error(),
			})
			fmt.Fprintln(out, ui.Failure(fmt.Sprintf("%s: %v", filepath.Base(item.SourcePath), err)))
			continue
		}
		cost := ledger.Cost(units)
		report.EstimatedUnits += units
		report.EstimatedCost += cost
		fmt.Fprintf(out, "%s: %d page(s), estimated $%.4f\n", filepath.Base(item.SourcePath), units, cost)
	}

	fmt.Fprintf(out, "Estimated total: %d page(s), $%.4f\n", report.EstimatedUnits, report.EstimatedCost)
	return nil
}

// processOne converts a single item and records the result. The returned
// error is non-nil only when the whole run must stop.
func (c *Controller) processOne(ctx context.Context, out io.Writer, item plannedItem, report *Report) error {
	defer c.cleanupItem(item.WorkItem)

	name := filepath.Base(item.ResolvePath)
	fmt.Fprintf(out, "Processing: %s\n", name)

	result, err := c.Converter.Convert(ctx, item.SourcePath)
	if err != nil {
		if errors.Is(err, mistral.ErrAuth) {
			return fmt.Errorf("authentication failed, aborting run: %w", err)
		}
		c.fail(out, report, item, err.Error())
		return nil
	}

	// The resolve-time existence check and this write are not atomic.
	// Re-check right before writing and skip rather than silently
	// overwrite whatever appeared in between.
	if _, statErr := os.Stat(item.target); statErr == nil {
		report.Skipped++
		fmt.Fprintln(out, ui.Warn(fmt.Sprintf("skipping %s: %s appeared during processing", name, filepath.Base(item.target))))
		return nil
	}

	if err := os.WriteFile(item.target, []byte(result.Content), 0644); err != nil {
		c.fail(out, report, item, fmt.Sprintf("write output: %v", err))
		return nil
	}

	rec := ledger.NewRecord(name, result.Units, item.target)
	for _, l := range c.Ledgers {
		if err := l.Append(rec); err != nil {
			c.fail(out, report, item, fmt.Sprintf("record usage: %v", err))
			return nil
		}
	}

	if c.Store != nil {
		_, err := c.Store.Append(usagedb.Record{
			Filename:    rec.Filename,
			UnitCount:   rec.UnitCount,
			ProcessedAt: rec.ProcessedAt,
			Cost:        rec.Cost,
			OutputPath:  rec.OutputPath,
			Model:       c.Model,
		})
		if err != nil {
			// The database mirrors the tracking file; losing a mirror row
			// is not worth failing the item.
			c.Log.Warn().Err(err).Msg("usage db append failed")
		}
	}

	report.Processed++
	report.TotalCost += rec.Cost
	fmt.Fprintln(out, ui.Success(fmt.Sprintf("Completed: %s (%d page(s), $%.4f)", filepath.Base(item.target), rec.UnitCount, rec.Cost)))
	return nil
}

func (c *Controller) fail(out io.Writer, report *Report, item plannedItem, reason string) {
	report.Failed++
	report.Failures = append(report.Failures, Failure{Source: item.SourcePath, Reason: reason})
	c.Log.Error().Str("file", item.SourcePath).Str("reason", reason).Msg("item failed")
	fmt.Fprintln(out, ui.Failure(fmt.Sprintf("Error processing %s: %s", filepath.Base(item.ResolvePath), reason)))
}

func (c *Controller) cleanupItem(item WorkItem) {
	if !item.CleanupOnFinish {
		return
	}
	if err := os.Remove(item.SourcePath); err != nil && !os.IsNotExist(err) {
		c.Log.Warn().Err(err).Str("file", item.SourcePath).Msg("temp file cleanup failed")
	}
}

func (c *Controller) cleanupAll(items []plannedItem) {
	for _, item := range items {
		c.cleanupItem(item.WorkItem)
	}
}

// findFiles walks root recursively and returns all files whose extension is
// in exts, sorted for deterministic processing order.
func findFiles(root string, exts []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && matchesExt(path, exts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func matchesExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
