package pipeline

import (
	"fmt"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Failure stages.
const (
	StageParse  = "parse"
	StageBuild  = "build"
	StageEnrich = "enrich"
	StageIndex  = "index"
	StageFetch  = "fetch"
)

const (
	runIDPrefix   = "run-"
	runIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	runIDLength   = 10
)

// Report summarizes one ingestion run.
type Report struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Received       int `json:"received"`
	Succeeded      int `json:"succeeded"`
	SkippedParse   int `json:"skipped_parse"`
	SkippedInvalid int `json:"skipped_invalid"`
	// EnrichFailed counts events indexed without a location.
	EnrichFailed int `json:"enrich_failed"`
	IndexFailed  int `json:"index_failed"`

	Failures []Failure `json:"failures"`
	// Error is set when the run was aborted.
	Error string `json:"error,omitempty"`
}

// Failure describes one listing that did not make it through cleanly.
type Failure struct {
	Stage string `json:"stage"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
	Error string `json:"error"`
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Skipped returns the number of listings that were never indexed.
func (r *Report) Skipped() int {
	return r.SkippedParse + r.SkippedInvalid
}

func (r *Report) fail(stage, url, title string, err error) {
	r.Failures = append(r.Failures, Failure{
		Stage: stage,
		URL:   url,
		Title: title,
		Error: err.Error(),
	})
}

// newRunID returns a short unique run identifier such as "run-V1StGXR8Z5".
func newRunID() (string, error) {
	id, err := nanoid.Generate(runIDAlphabet, runIDLength)
	if err != nil {
		return "", fmt.Errorf("run id: %w", err)
	}
	return runIDPrefix + id, nil
}
