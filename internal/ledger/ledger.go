// Package ledger appends usage records to an append-only cost tracking file.
package ledger

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"time"
)

// RatePerUnit is the cost in USD per billed unit (Mistral OCR charges per page).
const RatePerUnit = 0.001

// Format selects how rows are written.
type Format string

const (
	FormatCSV Format = "csv"
	FormatTXT Format = "txt"
)

// header is the fixed first row of a CSV ledger file.
var header = []string{"filename", "page_count", "processing_date", "cost_usd", "output_path"}

// Record is one row of the ledger. Records are immutable once appended.
type Record struct {
	Filename    string
	UnitCount   int
	ProcessedAt time.Time
	Cost        float64
	OutputPath  string
}

// NewRecord builds a record for a successful conversion, computing the cost
// from the unit count at capture time.
func NewRecord(filename string, unitCount int, outputPath string) Record {
	return Record{
		Filename:    filename,
		UnitCount:   unitCount,
		ProcessedAt: time.Now(),
		Cost:        Cost(unitCount),
		OutputPath:  outputPath,
	}
}

// Cost computes the USD cost for a unit count, rounded half-up to four
// decimal digits.
func Cost(unitCount int) float64 {
	return math.Round(RatePerUnit*float64(unitCount)*10000) / 10000
}

// Ledger writes records to a single tracking file. It never rewrites prior
// rows; every append is exactly one new row.
type Ledger struct {
	path   string
	format Format
}

// New creates a ledger for the given path. The file itself is created lazily
// on the first append.
func New(path string, format Format) *Ledger {
	if format != FormatTXT {
		format = FormatCSV
	}
	return &Ledger{path: path, format: format}
}

// Path returns the tracking file location.
func (l *Ledger) Path() string { return l.path }

// Append writes one record. For CSV, a missing file is created with the
// header row first.
func (l *Ledger) Append(rec Record) error {
	if l.format == FormatTXT {
		return l.appendTXT(rec)
	}
	return l.appendCSV(rec)
}

func (l *Ledger) appendCSV(rec Record) error {
	_, statErr := os.Stat(l.path)
	needHeader := statErr != nil

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write ledger header: %w", err)
		}
	}

	row := []string{
		rec.Filename,
		fmt.Sprintf("%d", rec.UnitCount),
		rec.ProcessedAt.Format(time.RFC3339),
		fmt.Sprintf("%.4f", rec.Cost),
		rec.OutputPath,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}

	w.Flush()
	return w.Error()
}

func (l *Ledger) appendTXT(rec Record) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s: %d pages, processed on %s, cost: $%.4f, output: %s\n",
		rec.Filename, rec.UnitCount, rec.ProcessedAt.Format(time.RFC3339), rec.Cost, rec.OutputPath)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	return nil
}
