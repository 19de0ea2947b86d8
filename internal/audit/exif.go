package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/localizer/internal/model"
)

// DefaultMaxImageSize limits the images read for inspection.
const DefaultMaxImageSize int64 = 20 << 20

// tagFindings maps EXIF tag names to finding types.
var tagFindings = map[string]string{
	"GPSLatitude":        "exif_gps",
	"GPSLongitude":       "exif_gps",
	"GPSLatitudeRef":     "exif_gps",
	"GPSLongitudeRef":    "exif_gps",
	"Make":               "exif_camera",
	"Model":              "exif_camera",
	"SerialNumber":       "exif_serial",
	"CameraSerialNumber": "exif_serial",
	"BodySerialNumber":   "exif_serial",
	"LensSerialNumber":   "exif_serial",
	"Software":           "exif_software",
	"ProcessingSoftware": "exif_software",
	"Artist":             "exif_author",
	"Author":             "exif_author",
	"Copyright":          "exif_author",
	"XPAuthor":           "exif_author",
	"DateTimeOriginal":   "exif_datetime",
	"DateTimeDigitized":  "exif_datetime",
	"DateTime":           "exif_datetime",
	"HostComputer":       "exif_computer",
}

// Inspector scans stored image assets for EXIF metadata.
type Inspector struct {
	maxImageSize int64
	logger       *slog.Logger
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Inspector) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithMaxImageSize skips images larger than n bytes.
func WithMaxImageSize(n int64) Option {
	return func(i *Inspector) {
		if n > 0 {
			i.maxImageSize = n
		}
	}
}

// New creates an Inspector.
func New(opts ...Option) *Inspector {
	i := &Inspector{
		maxImageSize: DefaultMaxImageSize,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Inspect scans every stored image asset under imagesDir.
// Reused assets are skipped because their file was already inspected.
// Unreadable files are logged and skipped; ctx is checked before each image.
func (i *Inspector) Inspect(ctx context.Context, imagesDir string, assets []model.Asset) ([]model.Finding, error) {
	findings := make([]model.Finding, 0)

	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		if asset.Category != model.CategoryImages || asset.Reused {
			continue
		}

		path := filepath.Join(imagesDir, asset.Filename)
		found, err := i.InspectFile(path, asset.Origin)
		if err != nil {
			i.logger.Debug("skipping image", "file", asset.Filename, "error", err)
			continue
		}
		for _, f := range found {
			i.logger.Warn("image metadata found",
				"file", asset.Filename,
				"type", f.Type,
				"value", f.Value,
			)
		}
		findings = append(findings, found...)
	}

	return findings, nil
}

// InspectFile reads one image and returns its findings. location is
// recorded on each finding, typically the asset's origin URL.
func (i *Inspector) InspectFile(path, location string) ([]model.Finding, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > i.maxImageSize {
		return nil, fmt.Errorf("image %s is larger than %d bytes", path, i.maxImageSize)
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is inside the mirror
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if location == "" {
		location = filepath.Base(path)
	}
	return Analyze(data, location), nil
}

// Analyze extracts EXIF metadata from image bytes.
// Images without EXIF data yield no findings.
func Analyze(data []byte, location string) []model.Finding {
	findings := make([]model.Finding, 0)

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return findings
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return findings
	}

	for _, entry := range entries {
		findingType, ok := tagFindings[entry.TagName]
		if !ok {
			continue
		}
		findings = append(findings, model.NewFinding(findingType, entry.TagName+": "+entry.Formatted, location))
	}

	return findings
}
