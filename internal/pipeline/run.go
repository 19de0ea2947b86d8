package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/localizer/internal/audit"
	"github.com/nao1215/localizer/internal/config"
	"github.com/nao1215/localizer/internal/css"
	"github.com/nao1215/localizer/internal/fetch"
	"github.com/nao1215/localizer/internal/htmldoc"
	"github.com/nao1215/localizer/internal/log"
	"github.com/nao1215/localizer/internal/model"
	"github.com/nao1215/localizer/internal/store"
	"github.com/nao1215/localizer/internal/walker"
)

// MirrorSuffix separates the source directory name from the timestamp in
// the mirror directory name.
const MirrorSuffix = "_localized_"

// MirrorTimeLayout formats the mirror timestamp as YYYYMMDD_HHMMSS.
const MirrorTimeLayout = "20060102_150405"

// MirrorDir returns the sibling output directory for sourceDir.
func MirrorDir(sourceDir string, t time.Time) string {
	clean := filepath.Clean(sourceDir)
	return filepath.Join(filepath.Dir(clean), filepath.Base(clean)+MirrorSuffix+t.Format(MirrorTimeLayout))
}

// Runner performs one localization run.
type Runner struct {
	cfg        *config.Config
	client     *http.Client
	logger     *slog.Logger
	onProgress func(model.Progress)
	now        func() time.Time
	newID      func() string
}

// RunOption configures a Runner.
type RunOption func(*Runner)

// WithRunLogger sets the logger shared by every component of the run.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithProgress registers a callback invoked after every walked file.
func WithProgress(fn func(model.Progress)) RunOption {
	return func(r *Runner) {
		r.onProgress = fn
	}
}

// WithClock replaces time.Now, which names the mirror directory.
func WithClock(now func() time.Time) RunOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator replaces the UUID run ID generator.
func WithIDGenerator(fn func() string) RunOption {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// NewRunner creates a Runner. client carries the proxy configuration and
// is shared by every download of the run.
func NewRunner(cfg *config.Config, client *http.Client, opts ...RunOption) *Runner {
	r := &Runner{
		cfg:    cfg,
		client: client,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run localizes cfg.SourceDir. See Runner.Run.
func Run(ctx context.Context, cfg *config.Config, client *http.Client, opts ...RunOption) *model.RunReport {
	return NewRunner(cfg, client, opts...).Run(ctx)
}

// Run executes the run and returns its report. It never returns nil.
//
// Exactly one terminal line is logged: SUCCESS when every file was
// handled, WARN when ctx was cancelled, ERROR with the cause otherwise.
func (r *Runner) Run(ctx context.Context) *model.RunReport {
	startedAt := r.now()

	source, err := filepath.Abs(r.cfg.SourceDir)
	if err != nil {
		source = r.cfg.SourceDir
	}
	mirror := MirrorDir(source, startedAt)
	report := model.NewRunReport(r.newID(), source, mirror, startedAt)

	r.logger.Info("starting localization", "source", source, "output", mirror)

	err = r.build(report).Execute(ctx, report)
	r.finish(ctx, report, err)
	return report
}

// build wires the components of one run. Every component reports into
// the same RunReport.
func (r *Runner) build(report *model.RunReport) *Pipeline {
	onFailure := func(reference, document string, err error) {
		report.AddFailure(reference, document, err)
	}

	fetcher := fetch.New(r.client,
		fetch.WithUserAgent(r.cfg.UserAgent),
		fetch.WithMaxBodySize(r.cfg.MaxBodySize),
		fetch.WithLogger(r.logger),
	)
	st := store.New(report.OutputDir,
		store.WithLogger(r.logger),
		store.WithRecorder(report.AddAsset),
	)
	resolver := css.New(fetcher, st,
		css.WithLogger(r.logger),
		css.WithFailureHandler(onFailure),
	)
	processor := htmldoc.New(report.SourceDir, report.OutputDir, fetcher, st, resolver,
		htmldoc.WithLogger(r.logger),
		htmldoc.WithFailureHandler(onFailure),
	)
	w := walker.New(report.SourceDir, report.OutputDir, processor,
		walker.WithLogger(r.logger),
		walker.WithProgress(r.onProgress),
	)

	p := New(WithLogger(r.logger))
	p.AddSteps(NewPrepareStep(report.OutputDir, st), NewLocalizeStep(w))
	if r.cfg.InspectImages {
		inspector := audit.New(audit.WithLogger(r.logger))
		p.AddStep(NewInspectImagesStep(inspector, st.Dir(model.CategoryImages)))
	}
	return p
}

// finish sets the terminal status and logs the terminal line.
func (r *Runner) finish(ctx context.Context, report *model.RunReport, err error) {
	finishedAt := r.now()

	switch {
	case err == nil:
		report.Finish(model.StatusSuccess, nil, finishedAt)
		log.Success(ctx, r.logger, "localization complete",
			"output", report.OutputDir,
			"rewritten", report.DocumentsRewritten,
			"copied", report.FilesCopied,
			"assets", len(report.StoredAssets()),
			"failures", len(report.Failures),
			"duration", report.Duration().Round(time.Millisecond),
		)
	case errors.Is(err, context.Canceled) || errors.Is(err, model.ErrCancelled):
		report.Finish(model.StatusCancelled, model.ErrCancelled, finishedAt)
		r.logger.Warn("localization cancelled",
			"output", report.OutputDir,
			"rewritten", report.DocumentsRewritten,
			"copied", report.FilesCopied,
		)
	default:
		report.Finish(model.StatusFailed, err, finishedAt)
		r.logger.Error("localization failed", "error", err)
	}
}
