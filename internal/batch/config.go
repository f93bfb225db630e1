package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/scan"
)

// Config holds all configuration for batch scanning.
type Config struct {
	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// ContinueOnError keeps scanning after a file cannot be opened.
	ContinueOnError bool

	// Output settings
	Format     string // text, json, csv
	OutputFile string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
}

// DefaultConfig scans the given directories non-recursively and keeps going
// on unreadable files.
func DefaultConfig() *Config {
	return &Config{
		ContinueOnError:  true,
		Format:           "text",
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Item is the outcome for one file. Err is set when no task could be created.
type Item struct {
	File    string       `json:"file"`
	Outcome scan.Outcome `json:"outcome"`
	Err     string       `json:"error,omitempty"`
}

// Result holds the result of a batch run.
type Result struct {
	Items    []Item
	Duration time.Duration
	// Interrupted is set when the run stopped before every file was scanned.
	Interrupted bool
}

// Summary counts outcomes by status.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	NotFound  int `json:"not_found"`
	Failed    int `json:"failed"`
	TimedOut  int `json:"timed_out"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
}

// Summary tallies the items.
func (r *Result) Summary() Summary {
	s := Summary{Total: len(r.Items)}
	for _, it := range r.Items {
		if it.Err != "" {
			s.Skipped++
			continue
		}
		switch it.Outcome.Status {
		case scan.StateSucceeded:
			s.Succeeded++
		case scan.StateNotFound:
			s.NotFound++
		case scan.StateFailed:
			s.Failed++
		case scan.StateTimedOut:
			s.TimedOut++
		case scan.StateCancelled:
			s.Cancelled++
		}
	}
	return s
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile, or to w when empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, _ = fmt.Fprint(w, output)
	return nil
}

// PrintStats prints scanning statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	s := r.Summary()
	_, _ = fmt.Fprintf(w, "\nScan Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", s.Total)
	_, _ = fmt.Fprintf(w, "  Codes found: %d\n", s.Succeeded)
	_, _ = fmt.Fprintf(w, "  No code: %d\n", s.NotFound)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "  Timed out: %d\n", s.TimedOut)
	_, _ = fmt.Fprintf(w, "  Skipped: %d\n", s.Skipped)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if s.Total > 0 {
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", (r.Duration / time.Duration(s.Total)).Round(time.Millisecond))
	}
}
