package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/venue-events/internal/pipeline"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// IngestResult contains the reports of one ingest invocation
type IngestResult struct {
	CheckedAt time.Time          `json:"checked_at"`
	Reports   []*pipeline.Report `json:"reports"`
	Errors    []string           `json:"errors,omitempty"`
}

func newIngestResult() *IngestResult {
	return &IngestResult{
		CheckedAt: time.Now().UTC(),
		Reports:   []*pipeline.Report{},
	}
}

// Indexed returns the number of events written across all reports.
func (r *IngestResult) Indexed() int {
	n := 0
	for _, rep := range r.Reports {
		n += rep.Succeeded
	}
	return n
}

// Incomplete reports whether any listing was skipped or failed to index.
func (r *IngestResult) Incomplete() bool {
	for _, rep := range r.Reports {
		if rep.Skipped() > 0 || rep.IndexFailed > 0 {
			return true
		}
	}
	return false
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *IngestResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *IngestResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs one summary block per source, then totals
func writeText(w io.Writer, result *IngestResult, verbose bool) error {
	if len(result.Reports) == 0 {
		fmt.Fprintln(w, "No sources ingested.")
	}

	for _, rep := range result.Reports {
		fmt.Fprintf(w, "%s (%s, %s):\n", rep.Source, rep.RunID, rep.Duration().Round(time.Millisecond))
		writeCount(w, "received", rep.Received)
		writeCount(w, "indexed", rep.Succeeded)
		if rep.EnrichFailed > 0 {
			writeCount(w, "without location", rep.EnrichFailed)
		}
		if rep.SkippedParse > 0 {
			writeCount(w, "bad date", rep.SkippedParse)
		}
		if rep.SkippedInvalid > 0 {
			writeCount(w, "missing url", rep.SkippedInvalid)
		}
		if rep.IndexFailed > 0 {
			writeCount(w, "index failures", rep.IndexFailed)
		}
		if rep.Error != "" {
			fmt.Fprintf(w, "  ABORTED: %s\n", rep.Error)
		}
		if verbose {
			for _, f := range rep.Failures {
				label := f.Title
				if label == "" {
					label = f.URL
				}
				fmt.Fprintf(w, "    [%s] %s: %s\n", f.Stage, label, f.Error)
			}
		}
	}

	fmt.Fprintf(w, "\nTotal: %d indexed across %d sources\n", result.Indexed(), len(result.Reports))
	return nil
}

func writeCount(w io.Writer, label string, n int) {
	fmt.Fprintf(w, "  %-18s%d\n", label+":", n)
}
