package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/localizer/internal/model"
)

// Step is one stage of a localization run: prepare the mirror, walk the
// tree, audit images. Every step writes into the same RunReport.
type Step interface {
	// Do executes the pipeline step.
	// Non-fatal problems (a failed download, an unreadable image) are
	// recorded in the report and Do returns nil; a returned error ends
	// the run.
	Do(ctx context.Context, report *model.RunReport) error

	// Name identifies the step in logs and in RunReport.Steps.
	Name() string
}

// Pipeline runs steps in order until one fails or the run is cancelled.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for step tracing. Nil keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddStep appends step; steps run in insertion order.
func (p *Pipeline) AddStep(step Step) {
	p.AddSteps(step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// The context is checked before each step; steps check it themselves
// while they run. Execute stops at the first error and returns it.
// The terminal log line belongs to the caller, so failures are only
// logged at debug level here.
func (p *Pipeline) Execute(ctx context.Context, report *model.RunReport) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Debug("pipeline cancelled", "step", step.Name(), "reason", err)
			return err
		}

		start := time.Now()
		p.logger.Debug("step started", "step", step.Name(), "source", report.SourceDir)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Debug("step stopped", "step", step.Name(), "error", err)
			return err
		}

		report.Steps = append(report.Steps, step.Name())
		p.logger.Debug("step finished", "step", step.Name(), "elapsed", time.Since(start).Round(time.Millisecond))
	}

	return nil
}

// StepCount returns the number of steps added so far.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
