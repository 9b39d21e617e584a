package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docscribe/docscribe/internal/ledger"
	"github.com/docscribe/docscribe/internal/mistral"
)

// stubConverter is a deterministic stand-in for the API-backed converter.
type stubConverter struct {
	calls     int
	units     int
	content   string
	err       error
	failFor   map[string]error
	onConvert func(path string)
}

func (s *stubConverter) Convert(ctx context.Context, path string) (*Output, error) {
	s.calls++
	if s.onConvert != nil {
		s.onConvert(path)
	}
	if s.err != nil {
		return nil, s.err
	}
	if err, ok := s.failFor[filepath.Base(path)]; ok {
		return nil, err
	}
	content := s.content
	if content == "" {
		content = "converted"
	}
	units := s.units
	if units == 0 {
		units = 1
	}
	return &Output{Content: content, Units: units}, nil
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestController(t *testing.T, conv Converter) (*Controller, string) {
	t.Helper()
	ledgerPath := filepath.Join(t.TempDir(), "usage.csv")
	ctrl := &Controller{
		Converter: conv,
		Ledgers:   []*ledger.Ledger{ledger.New(ledgerPath, ledger.FormatCSV)},
		Out:       &bytes.Buffer{},
	}
	return ctrl, ledgerPath
}

func TestDirectoryBatchSkipsProcessed(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 5; i++ {
		touch(t, filepath.Join(dir, fmt.Sprintf("doc%d.pdf", i)), "pdf")
	}
	for i := 1; i <= 3; i++ {
		touch(t, filepath.Join(dir, fmt.Sprintf("doc%d.md", i)), "done")
	}

	conv := &stubConverter{units: 2}
	ctrl, ledgerPath := newTestController(t, conv)
	opts := Options{TargetExt: ".md", SourceExts: []string{".pdf"}}

	report, err := ctrl.Run(context.Background(), Input{Path: dir}, opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Processed != 2 || report.Skipped != 3 || report.Failed != 0 {
		t.Fatalf("got processed=%d skipped=%d failed=%d, want 2/3/0",
			report.Processed, report.Skipped, report.Failed)
	}
	if conv.calls != 2 {
		t.Errorf("converter called %d times, want 2", conv.calls)
	}

	data, err := os.ReadFile(ledgerPath)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Errorf("ledger has %d lines, want header + 2 rows", len(lines))
	}

	// The identical command again is a no-op.
	report, err = ctrl.Run(context.Background(), Input{Path: dir}, opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Processed != 0 || report.Skipped != 5 || report.Failed != 0 {
		t.Fatalf("second run: got processed=%d skipped=%d failed=%d, want 0/5/0",
			report.Processed, report.Skipped, report.Failed)
	}
	if conv.calls != 2 {
		t.Errorf("second run called the converter %d extra times", conv.calls-2)
	}
}

func TestDirectoryModeNeverPrompts(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "doc.pdf"), "pdf")
	touch(t, filepath.Join(dir, "doc.md"), "done")

	prompted := false
	ctrl, _ := newTestController(t, &stubConverter{})
	ctrl.Confirm = func(string) bool { prompted = true; return true }

	report, err := ctrl.Run(context.Background(), Input{Path: dir},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if prompted {
		t.Error("directory batches must never prompt")
	}
	if report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}
}

func TestSingleFileDeclineHasNoSideEffects(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.pdf")
	touch(t, src, "pdf")
	touch(t, filepath.Join(dir, "doc.md"), "original")

	conv := &stubConverter{}
	ctrl, ledgerPath := newTestController(t, conv)
	asked := 0
	ctrl.Confirm = func(string) bool { asked++; return false }

	report, err := ctrl.Run(context.Background(), Input{Path: src},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if asked != 1 {
		t.Errorf("confirmation asked %d times, want 1", asked)
	}
	if report.Skipped != 1 || report.Processed != 0 {
		t.Errorf("got processed=%d skipped=%d, want 0/1", report.Processed, report.Skipped)
	}
	if conv.calls != 0 {
		t.Error("converter must not run after a declined confirmation")
	}
	if _, err := os.Stat(ledgerPath); !os.IsNotExist(err) {
		t.Error("ledger must not be touched after a declined confirmation")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("directory gained files: %d entries", len(entries))
	}
}

func TestReprocessingPicksUniqueNames(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.pdf")
	touch(t, src, "pdf")
	touch(t, filepath.Join(dir, "doc.md"), "original")

	ctrl, _ := newTestController(t, &stubConverter{})
	ctrl.Confirm = func(string) bool { return true }
	opts := Options{TargetExt: ".md", SourceExts: []string{".pdf"}}

	for i := 1; i <= 2; i++ {
		report, err := ctrl.Run(context.Background(), Input{Path: src}, opts)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if report.Processed != 1 {
			t.Fatalf("run %d: processed = %d", i, report.Processed)
		}
	}

	for _, name := range []string{"doc_1.md", "doc_2.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	data, _ := os.ReadFile(filepath.Join(dir, "doc.md"))
	if string(data) != "original" {
		t.Error("original output was overwritten")
	}
}

func TestAssumeYesSkipsPrompt(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.pdf")
	touch(t, src, "pdf")
	touch(t, filepath.Join(dir, "doc.md"), "original")

	ctrl, _ := newTestController(t, &stubConverter{})
	ctrl.Confirm = func(string) bool { t.Error("prompt called despite AssumeYes"); return false }

	report, err := ctrl.Run(context.Background(), Input{Path: src},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}, AssumeYes: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Processed != 1 {
		t.Errorf("processed = %d, want 1", report.Processed)
	}
}

func TestAuthErrorAbortsRun(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.pdf"), "pdf")
	touch(t, filepath.Join(dir, "b.pdf"), "pdf")

	conv := &stubConverter{failFor: map[string]error{
		"a.pdf": fmt.Errorf("ocr: %w", mistral.ErrAuth),
		"b.pdf": fmt.Errorf("ocr: %w", mistral.ErrAuth),
	}}
	ctrl, _ := newTestController(t, conv)

	_, err := ctrl.Run(context.Background(), Input{Path: dir},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}})
	if err == nil {
		t.Fatal("expected a fatal error for rejected credentials")
	}
	if !errors.Is(err, mistral.ErrAuth) {
		t.Errorf("error should wrap the auth sentinel: %v", err)
	}
	if conv.calls != 1 {
		t.Errorf("converter called %d times after auth failure, want 1", conv.calls)
	}
}

func TestPerItemFailureContinues(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.pdf"), "pdf")
	touch(t, filepath.Join(dir, "b.pdf"), "pdf")

	conv := &stubConverter{failFor: map[string]error{
		"a.pdf": errors.New("service exploded"),
	}}
	ctrl, _ := newTestController(t, conv)

	report, err := ctrl.Run(context.Background(), Input{Path: dir},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}})
	if err != nil {
		t.Fatalf("per-item failures must not be fatal: %v", err)
	}
	if report.Processed != 1 || report.Failed != 1 {
		t.Errorf("got processed=%d failed=%d, want 1/1", report.Processed, report.Failed)
	}
	if len(report.Failures) != 1 || report.Failures[0].Reason != "service exploded" {
		t.Errorf("unexpected failures: %+v", report.Failures)
	}
}

func TestTargetAppearingMidRunIsSkipped(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.pdf")
	touch(t, src, "pdf")
	target := filepath.Join(dir, "doc.md")

	conv := &stubConverter{}
	conv.onConvert = func(string) {
		// Simulate another process racing us to the target.
		touch(t, target, "theirs")
	}
	ctrl, _ := newTestController(t, conv)

	report, err := ctrl.Run(context.Background(), Input{Path: src},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Skipped != 1 || report.Processed != 0 {
		t.Errorf("got processed=%d skipped=%d, want 0/1", report.Processed, report.Skipped)
	}
	data, _ := os.ReadFile(target)
	if string(data) != "theirs" {
		t.Error("racing writer's file was overwritten")
	}
}

func TestDryRunMakesNoCallsAndNoRecords(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "doc.pdf"), "pdf")

	conv := &stubConverter{}
	ctrl, ledgerPath := newTestController(t, conv)
	ctrl.Estimate = func(string) (int, error) { return 6, nil }

	report, err := ctrl.Run(context.Background(), Input{Path: dir},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}, DryRun: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if conv.calls != 0 {
		t.Error("dry run must not call the converter")
	}
	if report.EstimatedUnits != 6 {
		t.Errorf("estimated units = %d, want 6", report.EstimatedUnits)
	}
	if report.EstimatedCost != 0.006 {
		t.Errorf("estimated cost = %v, want 0.006", report.EstimatedCost)
	}
	if _, err := os.Stat(ledgerPath); !os.IsNotExist(err) {
		t.Error("dry run must not touch the ledger")
	}
}

func TestDownloadedInputCleanup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer server.Close()

	workDir := t.TempDir()
	oldWD, _ := os.Getwd()
	if err := os.Chdir(workDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWD)

	for _, keep := range []bool{false, true} {
		var downloaded string
		conv := &stubConverter{onConvert: func(path string) { downloaded = path }}
		ctrl, _ := newTestController(t, conv)

		report, err := ctrl.Run(context.Background(),
			Input{URL: server.URL + "/paper.pdf"},
			Options{TargetExt: ".md", SourceExts: []string{".pdf"}, Keep: keep})
		if err != nil {
			t.Fatalf("keep=%v: run: %v", keep, err)
		}
		if report.Processed != 1 {
			t.Fatalf("keep=%v: processed = %d", keep, report.Processed)
		}
		if downloaded == "" {
			t.Fatalf("keep=%v: converter never saw the download", keep)
		}

		_, statErr := os.Stat(downloaded)
		if keep && statErr != nil {
			t.Errorf("keep=true: temp copy was deleted: %v", statErr)
		}
		if !keep && !os.IsNotExist(statErr) {
			t.Errorf("keep=false: temp copy still on disk at %s", downloaded)
		}
		os.Remove(downloaded)
		os.Remove(filepath.Join(workDir, "paper.md"))
	}
}

func TestDownloadedInputCleanupOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer server.Close()

	var downloaded string
	conv := &stubConverter{
		err:       errors.New("boom"),
		onConvert: func(path string) { downloaded = path },
	}
	ctrl, _ := newTestController(t, conv)

	report, err := ctrl.Run(context.Background(),
		Input{URL: server.URL + "/paper.pdf"},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("failed = %d, want 1", report.Failed)
	}
	if _, statErr := os.Stat(downloaded); !os.IsNotExist(statErr) {
		t.Error("temp copy must be deleted even when conversion fails")
	}
}

func TestDownloadFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	ctrl, _ := newTestController(t, &stubConverter{})
	_, err := ctrl.Run(context.Background(),
		Input{URL: server.URL + "/missing.pdf"},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}})
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestUnreachableInputIsFatal(t *testing.T) {
	ctrl, _ := newTestController(t, &stubConverter{})
	_, err := ctrl.Run(context.Background(),
		Input{Path: filepath.Join(t.TempDir(), "nope.pdf")},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}})
	if !errors.Is(err, ErrUnreachableInput) {
		t.Fatalf("expected ErrUnreachableInput, got %v", err)
	}
}

func TestWrongExtensionIsFatal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.docx")
	touch(t, src, "not a pdf")

	ctrl, _ := newTestController(t, &stubConverter{})
	_, err := ctrl.Run(context.Background(), Input{Path: src},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}})
	if err == nil {
		t.Fatal("expected an error for a non-matching extension")
	}
}

func TestEmptyDirectoryIsFatal(t *testing.T) {
	ctrl, _ := newTestController(t, &stubConverter{})
	_, err := ctrl.Run(context.Background(), Input{Path: t.TempDir()},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}})
	if !errors.Is(err, ErrNoMatchingFiles) {
		t.Fatalf("expected ErrNoMatchingFiles, got %v", err)
	}
}

func TestDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.pdf", "a.pdf", "b.pdf"} {
		touch(t, filepath.Join(dir, name), "pdf")
	}

	var order []string
	conv := &stubConverter{onConvert: func(path string) {
		order = append(order, filepath.Base(path))
	}}
	ctrl, _ := newTestController(t, conv)

	if _, err := ctrl.Run(context.Background(), Input{Path: dir},
		Options{TargetExt: ".md", SourceExts: []string{".pdf"}}); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"a.pdf", "b.pdf", "c.pdf"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("processing order %v, want %v", order, want)
		}
	}
}
