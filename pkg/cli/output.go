package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"mercator-hq/cleaner/pkg/cleaner"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is a human-readable table (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
	// FormatCSV is one CSV row per touched table.
	FormatCSV OutputFormat = "csv"
)

// ParseOutputFormat validates a --format value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", NewConfigError("format", fmt.Sprintf("unknown output format %q", s))
	}
}

// Report is the printable outcome of a run.
type Report struct {
	RunID       string        `json:"run_id"`
	DryRun      bool          `json:"dry_run"`
	Started     time.Time     `json:"started"`
	DurationMS  int64         `json:"duration_ms"`
	Interrupted bool          `json:"interrupted,omitempty"`
	Tables      []TableReport `json:"tables"`
}

// TableReport is the outcome of one root table.
type TableReport struct {
	Table   string   `json:"table"`
	Skipped string   `json:"skipped,omitempty"`
	Batches int      `json:"batches"`
	Keys    int      `json:"keys"`
	Cycles  []string `json:"cycles,omitempty"`
	Error   string   `json:"error,omitempty"`

	// Counts maps every touched table to its deleted (or counted) rows.
	Counts map[string]cleaner.TableCount `json:"counts"`

	// Order lists Counts keys in deletion order.
	Order []string `json:"-"`
}

// NewReport converts a run summary.
func NewReport(s *cleaner.RunSummary) *Report {
	r := &Report{
		RunID:       s.RunID,
		DryRun:      s.DryRun,
		Started:     s.Started,
		DurationMS:  s.Duration.Milliseconds(),
		Interrupted: s.Interrupted,
		Tables:      make([]TableReport, 0, len(s.Tables)),
	}
	for _, ts := range s.Tables {
		tr := TableReport{
			Table:   ts.Table,
			Skipped: ts.Skipped,
			Batches: ts.Batches,
			Keys:    ts.Keys,
			Counts:  ts.Counts(),
			Order:   ts.Totals.Tables(),
		}
		for _, c := range ts.Cycles {
			tr.Cycles = append(tr.Cycles, c.String())
		}
		if ts.Err != nil {
			tr.Error = ts.Err.Error()
		}
		r.Tables = append(r.Tables, tr)
	}
	return r
}

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, r *Report) error
}

// TextFormatter renders an aligned table.
type TextFormatter struct{}

// FormatTo writes r as text.
func (f *TextFormatter) FormatTo(w io.Writer, r *Report) error {
	mode := "deleted"
	if r.DryRun {
		mode = "would delete"
	}
	fmt.Fprintf(w, "Run %s (%s)\n", r.RunID, modeName(r.DryRun))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ROOT\tTABLE\tROWS\tSTATUS\n")
	for _, t := range r.Tables {
		switch {
		case t.Skipped != "":
			fmt.Fprintf(tw, "%s\t-\t-\tskipped: %s\n", t.Table, t.Skipped)
			continue
		case t.Error != "":
			fmt.Fprintf(tw, "%s\t-\t-\tfailed: %s\n", t.Table, t.Error)
		}
		for _, name := range t.Order {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", t.Table, name, t.Counts[name].Count, mode)
		}
		for _, c := range t.Cycles {
			fmt.Fprintf(tw, "%s\t-\t-\tcycle dropped: %s\n", t.Table, c)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if r.Interrupted {
		fmt.Fprintln(w, "Run interrupted before all batches completed")
	}
	return nil
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes r as JSON.
func (f *JSONFormatter) FormatTo(w io.Writer, r *Report) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(r)
}

// CSVFormatter formats output as CSV.
type CSVFormatter struct{}

// FormatTo writes one row per root and touched table.
func (f *CSVFormatter) FormatTo(w io.Writer, r *Report) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write([]string{"run_id", "root", "table", "count", "dry_run", "status"}); err != nil {
		return err
	}
	dryRun := strconv.FormatBool(r.DryRun)
	for _, t := range r.Tables {
		status := "ok"
		switch {
		case t.Skipped != "":
			status = "skipped"
		case t.Error != "":
			status = "failed"
		}
		if len(t.Order) == 0 {
			if err := csvWriter.Write([]string{r.RunID, t.Table, "", "", dryRun, status}); err != nil {
				return err
			}
			continue
		}
		for _, name := range t.Order {
			row := []string{r.RunID, t.Table, name, strconv.FormatInt(t.Counts[name].Count, 10), dryRun, status}
			if err := csvWriter.Write(row); err != nil {
				return err
			}
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}

func modeName(dryRun bool) string {
	if dryRun {
		return "dry run"
	}
	return "live"
}
