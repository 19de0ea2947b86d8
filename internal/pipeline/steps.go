package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/nao1215/localizer/internal/model"
	"github.com/nao1215/localizer/internal/walker"
)

// ErrMirrorExists is returned when the output directory is already present.
var ErrMirrorExists = errors.New("output directory already exists")

// Preparer creates the category directories of the content store.
type Preparer interface {
	Prepare() error
}

// PrepareStep creates the mirror directory and the static/ layout.
type PrepareStep struct {
	mirrorDir string
	store     Preparer
}

// NewPrepareStep creates a step that creates mirrorDir and lets the store
// lay out its category directories.
func NewPrepareStep(mirrorDir string, store Preparer) *PrepareStep {
	return &PrepareStep{mirrorDir: mirrorDir, store: store}
}

// Name returns the step name.
func (s *PrepareStep) Name() string {
	return "prepare"
}

// Do creates the mirror. An existing directory is never reused, so two
// runs can not write into the same mirror.
func (s *PrepareStep) Do(_ context.Context, _ *model.RunReport) error {
	if err := os.Mkdir(s.mirrorDir, 0o750); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrMirrorExists, s.mirrorDir)
		}
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := s.store.Prepare(); err != nil {
		return fmt.Errorf("failed to create static directories: %w", err)
	}
	return nil
}

// Walker mirrors the source tree.
type Walker interface {
	Walk(ctx context.Context) error
	Stats() walker.Stats
}

// LocalizeStep walks the source tree, localizing HTML documents and copying
// everything else.
type LocalizeStep struct {
	walker Walker
}

// NewLocalizeStep creates the walk step.
func NewLocalizeStep(w Walker) *LocalizeStep {
	return &LocalizeStep{walker: w}
}

// Name returns the step name.
func (s *LocalizeStep) Name() string {
	return "localize"
}

// Do runs the walk. Counters are copied to the report even when the walk
// stops early, so a cancelled run reports what it finished.
func (s *LocalizeStep) Do(ctx context.Context, report *model.RunReport) error {
	err := s.walker.Walk(ctx)

	stats := s.walker.Stats()
	report.DocumentsRewritten = stats.DocumentsRewritten
	report.DocumentsUnchanged = stats.DocumentsUnchanged
	report.FilesCopied = stats.FilesCopied

	return err
}

// ImageInspector scans stored images for metadata.
type ImageInspector interface {
	Inspect(ctx context.Context, imagesDir string, assets []model.Asset) ([]model.Finding, error)
}

// InspectImagesStep audits the localized images for EXIF metadata.
type InspectImagesStep struct {
	inspector ImageInspector
	imagesDir string
}

// NewInspectImagesStep creates the image audit step for imagesDir.
func NewInspectImagesStep(inspector ImageInspector, imagesDir string) *InspectImagesStep {
	return &InspectImagesStep{inspector: inspector, imagesDir: imagesDir}
}

// Name returns the step name.
func (s *InspectImagesStep) Name() string {
	return "inspect_images"
}

// Do adds a finding to the report for every metadata tag found.
func (s *InspectImagesStep) Do(ctx context.Context, report *model.RunReport) error {
	findings, err := s.inspector.Inspect(ctx, s.imagesDir, report.Assets)
	for _, f := range findings {
		report.AddFinding(f)
	}
	return err
}
