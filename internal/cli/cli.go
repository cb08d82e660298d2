package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/venue-events/internal/notify"
	"github.com/pfrederiksen/venue-events/internal/pipeline"
	"github.com/pfrederiksen/venue-events/internal/server"
	"github.com/pfrederiksen/venue-events/internal/source"
)

const (
	ExitSuccess    = 0
	ExitError      = 1
	ExitIncomplete = 2
)

// exitError carries a non-zero exit code that is not a failure of the command itself.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	verbose    bool
	backend    string
	dataDir    string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "venue-events",
		Short: "Collect venue event listings into a searchable index",
		Long: `A tool that scrapes event listings from venue websites, geocodes their
locations and stores them in a searchable index, plus a small HTTP service
to query that index.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Path to .env file (ignored if missing)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	flags.StringVar(&opts.backend, "index", "", "Index backend: memory, file or postgres")
	flags.StringVar(&opts.dataDir, "data-dir", "", "Data directory for the file index")

	cmd.AddCommand(newIngestCmd(opts), newServeCmd(opts))
	return cmd
}

type ingestOptions struct {
	sources []string
	format  string
	dryRun  bool
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	opts := &ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Scrape the configured venues and index their events",
		Long: `Fetch every configured venue's listing page, build and geocode its events
and upsert them into the index. Sources run concurrently.

Exit status is 2 when some listings were skipped or could not be indexed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, root, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.sources, "source", nil,
		fmt.Sprintf("Source to ingest, repeatable (default: all configured; known: %s)", strings.Join(source.Names(), ", ")))
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run-notify", false, "Print run reports instead of publishing them")
	return cmd
}

func runIngest(cmd *cobra.Command, root *rootOptions, opts *ingestOptions) error {
	format := OutputFormat(strings.ToLower(opts.format))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", opts.format)
	}

	a, err := newApp(root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	adapters, err := a.adapters(opts.sources)
	if err != nil {
		return err
	}

	idx, err := a.openIndex()
	if err != nil {
		return err
	}
	defer idx.Close()

	resolver, err := a.resolver()
	if err != nil {
		return err
	}

	var pub notify.Publisher
	if opts.dryRun {
		pub = notify.NewDryRunPublisher(cmd.ErrOrStderr())
	} else if pub, err = a.publisher(); err != nil {
		return err
	}
	defer pub.Close()

	p := pipeline.New(a.builder(), resolver, idx,
		pipeline.WithConfig(a.pipelineConfig()),
		pipeline.WithPublisher(pub),
		pipeline.WithMetrics(a.metrics.Pipeline),
		pipeline.WithLogger(a.log),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := ingestAll(ctx, p, adapters)

	if err := WriteOutput(cmd.OutOrStdout(), result, format, root.verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if len(result.Errors) > 0 {
		return errors.New(strings.Join(result.Errors, "; "))
	}
	if result.Incomplete() {
		return &exitError{code: ExitIncomplete}
	}
	return nil
}

// ingestAll runs every adapter concurrently and collects the reports in
// adapter order.
func ingestAll(ctx context.Context, p *pipeline.Pipeline, adapters []pipeline.Adapter) *IngestResult {
	reports := make([]*pipeline.Report, len(adapters))
	errs := make([]error, len(adapters))

	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			reports[i], errs[i] = p.Ingest(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	result := newIngestResult()
	for i := range adapters {
		if reports[i] != nil {
			result.Reports = append(result.Reports, reports[i])
		}
		if errs[i] != nil {
			result.Errors = append(result.Errors, errs[i].Error())
		}
	}
	return result
}

type serveOptions struct {
	listen string
	limit  int
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search queries over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.listen, "listen", "", "Listen address (default from config, "+server.DefaultListen+")")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum number of search results (0 = unlimited)")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	a, err := newApp(root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	idx, err := a.openIndex()
	if err != nil {
		return err
	}
	defer idx.Close()

	listen := a.cfg.Listen
	if opts.listen != "" {
		listen = opts.listen
	}

	srv := server.New(idx,
		server.WithLogger(a.log),
		server.WithMetrics(a.metrics.HTTP, a.metrics.Gatherer),
		server.WithLocation(a.parser.Location()),
		server.WithLimit(opts.limit),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, listen)
}

// Execute runs the CLI
func Execute() {
	err := NewRootCmd().Execute()
	if err == nil {
		os.Exit(ExitSuccess)
	}
	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitError)
}
