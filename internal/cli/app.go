package cli

import (
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/pfrederiksen/venue-events/internal/config"
	"github.com/pfrederiksen/venue-events/internal/event"
	"github.com/pfrederiksen/venue-events/internal/geocode"
	"github.com/pfrederiksen/venue-events/internal/index"
	"github.com/pfrederiksen/venue-events/internal/index/postgres"
	"github.com/pfrederiksen/venue-events/internal/logger"
	"github.com/pfrederiksen/venue-events/internal/metrics"
	"github.com/pfrederiksen/venue-events/internal/notify"
	"github.com/pfrederiksen/venue-events/internal/pipeline"
	"github.com/pfrederiksen/venue-events/internal/source"
)

// app holds what every command needs after flags and config are resolved.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Registry
	parser  *event.DateParser
}

func newApp(opts *rootOptions, logOut io.Writer) (*app, error) {
	if opts.envFile != "" {
		if err := config.LoadDotEnv(opts.envFile); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.backend != "" {
		cfg.Index.Backend = strings.ToLower(opts.backend)
	}
	if opts.dataDir != "" {
		cfg.Index.Path = opts.dataDir
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.verbose {
		cfg.LogLevel = string(logger.LevelDebug)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level, ok := logger.ParseLevel(cfg.LogLevel)
	if !ok {
		return nil, fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	log := logger.New(level, logOut)
	logger.SetDefault(log)

	parser, err := event.LoadDateParser(cfg.Timezone)
	if err != nil {
		log.Warn("Unknown timezone, interpreting listing dates as UTC", logger.Fields{"timezone": cfg.Timezone}, err)
	}

	return &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.NewRegistry(),
		parser:  parser,
	}, nil
}

func (a *app) builder() *event.Builder {
	return event.NewBuilder(a.parser)
}

func (a *app) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		IndexTimeout: a.cfg.Pipeline.IndexTimeout,
		IndexRetries: a.cfg.Pipeline.Retries(),
		RetryBackoff: a.cfg.Pipeline.RetryBackoff,
	}
}

// adapters returns the requested sources, or every configured source when
// names is empty. Requested sources missing from the config use the
// adapter defaults.
func (a *app) adapters(names []string) ([]pipeline.Adapter, error) {
	selected := a.cfg.Sources
	if len(names) > 0 {
		selected = make([]config.SourceConfig, 0, len(names))
		for _, name := range names {
			sc, ok := a.cfg.Source(name)
			if !ok {
				sc = config.SourceConfig{Name: name}
			}
			selected = append(selected, sc)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	adapters := make([]pipeline.Adapter, 0, len(selected))
	for _, sc := range selected {
		ad, err := source.New(source.Config{
			Name:     sc.Name,
			URL:      sc.URL,
			Render:   sc.Render,
			Location: sc.Location,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, ad)
	}
	return adapters, nil
}

func (a *app) openIndex() (index.Index, error) {
	switch a.cfg.Index.Backend {
	case config.BackendMemory:
		return index.NewMemoryIndex(), nil
	case config.BackendFile:
		dir := a.cfg.Index.Path
		if dir == "" {
			dir = index.DefaultDataDir
		}
		idx, err := index.OpenFile(dir)
		if err != nil {
			return nil, fmt.Errorf("opening file index: %w", err)
		}
		a.log.Debug("Opened file index", logger.Fields{"path": idx.Path()})
		return idx, nil
	case config.BackendPostgres:
		idx, err := postgres.New(a.cfg.Index.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres index: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", a.cfg.Index.Backend)
	}
}

func (a *app) resolver() (*geocode.Resolver, error) {
	gc := a.cfg.Geocoder
	if gc.APIKey == "" {
		return nil, fmt.Errorf("no Google API key set (use %s or geocoder.api_key)", config.EnvGoogleAPIKey)
	}

	translations := maps.Clone(geocode.DefaultTranslations)
	maps.Copy(translations, gc.Translations)

	provider := geocode.NewGoogleProvider(gc.APIKey, gc.BaseURL, gc.Language)
	return geocode.NewResolver(provider,
		geocode.WithTimeout(gc.Timeout),
		geocode.WithTranslations(translations),
		geocode.WithLogger(a.log),
		geocode.WithMetrics(a.metrics.Geocoder),
	), nil
}

func (a *app) publisher() (notify.Publisher, error) {
	if a.cfg.NATSURL == "" {
		return &notify.NoopPublisher{}, nil
	}
	pub, err := notify.NewNATSPublisher(a.cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	a.log.Debug("Publishing run reports to NATS", logger.Fields{"url": a.cfg.NATSURL, "topic": notify.TopicIngestCompleted})
	return pub, nil
}
