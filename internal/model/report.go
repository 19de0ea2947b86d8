package model

import (
	"errors"
	"time"
)

// ErrCancelled is returned when a localization run stops because the user
// asked it to. It is distinct from failures: a cancelled run is reported as
// cancelled, never as an error.
var ErrCancelled = errors.New("localization cancelled")

// RunStatus is the terminal outcome of one localization run.
type RunStatus string

const (
	// StatusRunning is the status while the pipeline is executing.
	StatusRunning RunStatus = "running"

	// StatusSuccess means every file was processed.
	// Individual fetch failures do not change this.
	StatusSuccess RunStatus = "success"

	// StatusCancelled means the run stopped at a cancellation checkpoint.
	// Output written so far stays on disk.
	StatusCancelled RunStatus = "cancelled"

	// StatusFailed means a fatal error (filesystem, configuration) aborted the run.
	StatusFailed RunStatus = "failed"
)

// RunReport collects everything that happened during one localization run.
// The same value is rendered by every report writer and stored in the
// history database.
type RunReport struct {
	// ID uniquely identifies the run (UUID).
	ID string `json:"id"`

	// SourceDir is the absolute path of the source tree.
	SourceDir string `json:"source_dir"`

	// OutputDir is the absolute path of the mirror tree.
	OutputDir string `json:"output_dir"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended (zero while running).
	FinishedAt time.Time `json:"finished_at"`

	// Status is the terminal outcome.
	Status RunStatus `json:"status"`

	// Message carries the error text for failed runs.
	Message string `json:"message,omitempty"`

	// DocumentsRewritten counts HTML files written to the mirror.
	DocumentsRewritten int `json:"documents_rewritten"`

	// DocumentsUnchanged counts HTML files with nothing to localize.
	// These are not written to the mirror.
	DocumentsUnchanged int `json:"documents_unchanged"`

	// FilesCopied counts non-HTML files copied verbatim.
	FilesCopied int `json:"files_copied"`

	// Assets lists every asset saved or reused by the content store.
	Assets []Asset `json:"assets,omitempty"`

	// Failures lists references that could not be localized.
	Failures []Failure `json:"failures,omitempty"`

	// Findings lists metadata findings from the image audit.
	Findings []Finding `json:"findings,omitempty"`

	// Steps lists the pipeline steps that ran.
	Steps []string `json:"steps,omitempty"`
}

// Asset records one content store operation.
type Asset struct {
	// Category is where the asset was stored.
	Category Category `json:"-"`

	// CategoryName is Category as text, for serialized reports.
	CategoryName string `json:"category"`

	// Filename is the final name under the category directory.
	Filename string `json:"filename"`

	// Origin is the URL or explicit filename the asset was saved for.
	Origin string `json:"origin"`

	// Hash is the 8 hex character content fingerprint.
	Hash string `json:"hash"`

	// Size is the content length in bytes.
	Size int `json:"size"`

	// Reused is true when identical content was already stored under
	// Filename and nothing was written.
	Reused bool `json:"reused"`
}

// Failure records a reference that was left unlocalized.
type Failure struct {
	// Reference is the URL (or truncated data URI) that failed.
	Reference string `json:"reference"`

	// Document is the HTML file or stylesheet URL containing the reference.
	Document string `json:"document"`

	// Reason is the error text.
	Reason string `json:"reason"`
}

// Progress is reported after each file the walker handles.
type Progress struct {
	// Path is the file path relative to the source root.
	Path string

	// FilesDone is the number of files handled so far.
	FilesDone int

	// Rewritten is true when the file was an HTML document written to the mirror.
	Rewritten bool
}

// NewRunReport creates a report for a run over sourceDir.
func NewRunReport(id, sourceDir, outputDir string, startedAt time.Time) *RunReport {
	return &RunReport{
		ID:        id,
		SourceDir: sourceDir,
		OutputDir: outputDir,
		StartedAt: startedAt,
		Status:    StatusRunning,
		Assets:    make([]Asset, 0),
		Failures:  make([]Failure, 0),
		Findings:  make([]Finding, 0),
	}
}

// AddAsset appends a content store record.
func (r *RunReport) AddAsset(asset Asset) {
	asset.CategoryName = asset.Category.String()
	r.Assets = append(r.Assets, asset)
}

// AddFailure appends a failed reference.
func (r *RunReport) AddFailure(reference, document string, err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	r.Failures = append(r.Failures, Failure{
		Reference: reference,
		Document:  document,
		Reason:    reason,
	})
}

// AddFinding appends a finding, skipping exact duplicates.
func (r *RunReport) AddFinding(finding Finding) {
	for _, f := range r.Findings {
		if f.Type == finding.Type && f.Value == finding.Value && f.Location == finding.Location {
			return
		}
	}
	r.Findings = append(r.Findings, finding)
}

// Finish sets the terminal status and end time.
func (r *RunReport) Finish(status RunStatus, err error, finishedAt time.Time) {
	r.Status = status
	r.FinishedAt = finishedAt
	if err != nil {
		r.Message = err.Error()
	}
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// AssetCounts returns the number of stored (not reused) assets per category.
func (r *RunReport) AssetCounts() map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, a := range r.Assets {
		if a.Reused {
			continue
		}
		counts[a.Category]++
	}
	return counts
}

// StoredAssets returns the assets that were written to disk.
func (r *RunReport) StoredAssets() []Asset {
	stored := make([]Asset, 0, len(r.Assets))
	for _, a := range r.Assets {
		if !a.Reused {
			stored = append(stored, a)
		}
	}
	return stored
}
