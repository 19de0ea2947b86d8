package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/localizer/internal/config"
	"github.com/nao1215/localizer/internal/model"
)

// DefaultConcurrency is the number of source trees localized at once. With
// the default, trees are localized one after another and no two downloads
// overlap.
const DefaultConcurrency = 1

// BatchRunner localizes several source trees concurrently.
// Each tree gets its own Runner, store and ledger; only the HTTP client
// is shared.
type BatchRunner struct {
	cfg         *config.Config
	client      *http.Client
	concurrency int
	logger      *slog.Logger
	runOpts     []RunOption
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchRunner) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs. Each run stays
// sequential internally; values above 1 only overlap separate trees.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchRunner) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRunOptions passes options to every Runner of the batch.
func WithRunOptions(opts ...RunOption) BatchOption {
	return func(b *BatchRunner) {
		b.runOpts = append(b.runOpts, opts...)
	}
}

// NewBatchRunner creates a BatchRunner. cfg is the template configuration;
// its SourceDir is replaced per tree.
func NewBatchRunner(cfg *config.Config, client *http.Client, opts ...BatchOption) *BatchRunner {
	b := &BatchRunner{
		cfg:         cfg,
		client:      client,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// RunAll localizes every source directory and returns the reports in the
// order of sources. A failed run does not stop the others; cancellation
// stops runs that have not started, which are reported as cancelled.
func (b *BatchRunner) RunAll(ctx context.Context, sources []string) []*model.RunReport {
	b.logger.Info("starting batch localization",
		"total_sources", len(sources),
		"concurrency", b.concurrency,
	)
	startTime := time.Now()

	reports := make([]*model.RunReport, len(sources))

	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)

	for i, source := range sources {
		g.Go(func() error {
			cfg := *b.cfg
			cfg.SourceDir = source

			reports[i] = Run(ctx, &cfg, b.client, append([]RunOption{WithRunLogger(b.logger)}, b.runOpts...)...)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // runs report their own errors

	b.logger.Info("batch localization complete",
		"total_sources", len(sources),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)
	return reports
}
