package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pfrederiksen/venue-events/internal/event"
	"github.com/pfrederiksen/venue-events/internal/index"
	"github.com/pfrederiksen/venue-events/internal/logger"
	"github.com/pfrederiksen/venue-events/internal/metrics"
	"github.com/pfrederiksen/venue-events/internal/notify"
)

const (
	DefaultIndexTimeout = 10 * time.Second
	DefaultIndexRetries = 3
	DefaultRetryBackoff = 500 * time.Millisecond

	maxRetryBackoff = 10 * time.Second
	publishTimeout  = 5 * time.Second
)

// Adapter produces raw listings for one venue.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]event.Raw, error)
}

// Config bounds index writes.
type Config struct {
	// IndexTimeout limits each upsert attempt.
	IndexTimeout time.Duration
	// IndexRetries is the number of extra attempts after a failed upsert.
	IndexRetries int
	// RetryBackoff is the first delay between attempts; it doubles per retry.
	RetryBackoff time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		IndexTimeout: DefaultIndexTimeout,
		IndexRetries: DefaultIndexRetries,
		RetryBackoff: DefaultRetryBackoff,
	}
}

// Pipeline ingests batches of raw listings into an index.
type Pipeline struct {
	builder   *event.Builder
	resolver  event.Resolver
	indexer   index.Indexer
	publisher notify.Publisher
	metrics   *metrics.Pipeline
	log       *logger.Logger
	cfg       Config
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

func WithPublisher(pub notify.Publisher) Option {
	return func(p *Pipeline) {
		if pub != nil {
			p.publisher = pub
		}
	}
}

func WithMetrics(m *metrics.Pipeline) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithClock overrides the clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline that builds with builder, enriches with resolver
// and writes to indexer.
func New(builder *event.Builder, resolver event.Resolver, indexer index.Indexer, opts ...Option) *Pipeline {
	p := &Pipeline{
		builder:   builder,
		resolver:  resolver,
		indexer:   indexer,
		publisher: &notify.NoopPublisher{},
		log:       logger.Default(),
		cfg:       DefaultConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest fetches listings from a and runs them through the pipeline.
func (p *Pipeline) Ingest(ctx context.Context, a Adapter) (*Report, error) {
	raws, err := a.Fetch(ctx)
	if err != nil {
		report := p.newReport(a.Name())
		report.fail(StageFetch, "", "", err)
		return p.finish(ctx, report, &AdapterError{Source: a.Name(), Err: err})
	}
	return p.Run(ctx, a.Name(), raws)
}

// Run processes raws in order. Per-listing problems are recorded in the
// report; the returned error is set only when the run was aborted, in which
// case the report covers the listings handled so far.
func (p *Pipeline) Run(ctx context.Context, source string, raws []event.Raw) (*Report, error) {
	report := p.newReport(source)
	report.Received = len(raws)
	log := p.log.With(logger.Fields{"run_id": report.RunID, "source": source})

	if len(raws) == 0 {
		log.Info("No listings received", nil)
		return p.finish(ctx, report, nil)
	}

	if pinger, ok := p.indexer.(index.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			return p.finish(ctx, report, fmt.Errorf("index ping: %w", err))
		}
	}

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return p.finish(ctx, report, err)
		}

		if err := p.process(ctx, report, log, raw); err != nil {
			return p.finish(ctx, report, err)
		}
	}

	return p.finish(ctx, report, nil)
}

// process handles a single listing and returns an error only when the
// whole batch must stop.
func (p *Pipeline) process(ctx context.Context, report *Report, log *logger.Logger, raw event.Raw) error {
	source := report.Source

	evt, err := p.builder.Build(raw)
	if err != nil {
		fields := logger.Fields{"url": raw.URL, "title": raw.Title}
		if errors.Is(err, event.ErrMissingURL) {
			report.SkippedInvalid++
			report.fail(StageBuild, raw.URL, raw.Title, err)
			p.metrics.Event(source, metrics.EventSkippedInvalid)
			log.Warn("Skipping listing without URL", fields, err)
			return nil
		}
		report.SkippedParse++
		report.fail(StageParse, raw.URL, raw.Title, err)
		p.metrics.Event(source, metrics.EventSkippedParse)
		fields["start_raw"] = raw.StartRaw
		log.Warn("Skipping listing with unparseable date", fields, err)
		return nil
	}

	fields := logger.Fields{"url": evt.URL, "title": evt.Title}

	if err := evt.Enrich(ctx, p.resolver); err != nil {
		report.EnrichFailed++
		report.fail(StageEnrich, evt.URL, evt.Title, err)
		p.metrics.Event(source, metrics.EventEnrichFailed)
		fields["raw_location"] = evt.RawLocation
		log.Warn("Geocoding failed, indexing without location", fields, err)
	}

	if err := p.upsert(ctx, index.FromEvent(evt)); err != nil {
		report.IndexFailed++
		report.fail(StageIndex, evt.URL, evt.Title, err)
		p.metrics.Event(source, metrics.EventIndexFailed)
		log.Error("Failed to index event", fields, err)
		if errors.Is(err, index.ErrUnavailable) {
			return err
		}
		return nil
	}

	report.Succeeded++
	p.metrics.Event(source, metrics.EventIndexed)
	log.Debug("Indexed event", fields)
	return nil
}

func (p *Pipeline) upsert(ctx context.Context, doc index.Document) error {
	attempts := p.cfg.IndexRetries + 1
	err := retry(ctx, attempts, p.cfg.RetryBackoff, maxRetryBackoff, func() error {
		callCtx := ctx
		if p.cfg.IndexTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.cfg.IndexTimeout)
			defer cancel()
		}
		return p.indexer.Upsert(callCtx, doc)
	})
	if err != nil {
		return &IndexWriteError{URL: doc.URL, Err: err}
	}
	return nil
}

func (p *Pipeline) newReport(source string) *Report {
	id, err := newRunID()
	if err != nil {
		id = runIDPrefix + strconv.FormatInt(p.now().UnixNano(), 36)
	}
	return &Report{
		RunID:     id,
		Source:    source,
		StartedAt: p.now().UTC(),
		Failures:  []Failure{},
	}
}

// finish stamps the report, records metrics, logs a summary and publishes
// the report. Publishing problems are logged and never change the result.
func (p *Pipeline) finish(ctx context.Context, report *Report, runErr error) (*Report, error) {
	report.FinishedAt = p.now().UTC()
	if runErr != nil {
		report.Error = runErr.Error()
	}

	p.metrics.Run(report.Source, report.Duration(), runErr)

	log := p.log.With(logger.Fields{"run_id": report.RunID, "source": report.Source})
	fields := logger.Fields{
		"received":        report.Received,
		"succeeded":       report.Succeeded,
		"skipped_parse":   report.SkippedParse,
		"skipped_invalid": report.SkippedInvalid,
		"enrich_failed":   report.EnrichFailed,
		"index_failed":    report.IndexFailed,
		"duration_ms":     report.Duration().Milliseconds(),
	}
	if runErr != nil {
		log.Error("Ingestion run aborted", fields, runErr)
	} else {
		log.Info("Ingestion run completed", fields)
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.publisher.Publish(pubCtx, notify.TopicIngestCompleted, report); err != nil {
		log.Warn("Failed to publish run report", logger.Fields{"topic": notify.TopicIngestCompleted}, err)
	}

	return report, runErr
}
