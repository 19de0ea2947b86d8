package audit

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/localizer/internal/model"
)

// tiffWithSoftware builds a little-endian TIFF header whose IFD0 holds a
// single ASCII Software tag.
func tiffWithSoftware(software string) []byte {
	value := append([]byte(software), 0)

	buf := make([]byte, 0, 64)
	buf = append(buf, 'I', 'I', 0x2A, 0x00)
	buf = binary.LittleEndian.AppendUint32(buf, 8)

	// IFD0: one entry.
	buf = binary.LittleEndian.AppendUint16(buf, 1)
	buf = binary.LittleEndian.AppendUint16(buf, 0x0131) // Software
	buf = binary.LittleEndian.AppendUint16(buf, 2)      // ASCII
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value)))
	buf = binary.LittleEndian.AppendUint32(buf, 26) // value offset
	buf = binary.LittleEndian.AppendUint32(buf, 0)  // no next IFD

	return append(buf, value...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestAnalyze tests EXIF extraction from raw image bytes.
func TestAnalyze(t *testing.T) {
	t.Parallel()

	t.Run("software tag", func(t *testing.T) {
		t.Parallel()

		findings := Analyze(tiffWithSoftware("GIMP 2.10"), "https://cdn.example.com/bg.tiff")
		if len(findings) != 1 {
			t.Fatalf("expected 1 finding, got %+v", findings)
		}
		f := findings[0]
		if f.Type != "exif_software" || f.Severity != model.SeverityLow {
			t.Errorf("unexpected finding %+v", f)
		}
		if !strings.Contains(f.Value, "GIMP 2.10") {
			t.Errorf("expected value to contain software name, got %q", f.Value)
		}
		if f.Location != "https://cdn.example.com/bg.tiff" {
			t.Errorf("unexpected location %q", f.Location)
		}
	})

	t.Run("no exif", func(t *testing.T) {
		t.Parallel()

		png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
		if findings := Analyze(png, "x.png"); len(findings) != 0 {
			t.Errorf("expected no findings, got %+v", findings)
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		if findings := Analyze(nil, "x"); len(findings) != 0 {
			t.Errorf("expected no findings, got %+v", findings)
		}
	})
}

// TestInspector_Inspect tests scanning stored image assets.
func TestInspector_Inspect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string][]byte{
		"photo.tiff": tiffWithSoftware("Photoshop"),
		"plain.png":  []byte("\x89PNG\r\n\x1a\n"),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			t.Fatalf("failed to write image: %v", err)
		}
	}

	assets := []model.Asset{
		{Category: model.CategoryImages, Filename: "photo.tiff", Origin: "https://cdn.example.com/photo.tiff"},
		{Category: model.CategoryImages, Filename: "plain.png", Origin: "https://cdn.example.com/plain.png"},
		{Category: model.CategoryImages, Filename: "photo.tiff", Origin: "https://cdn.example.com/again.tiff", Reused: true},
		{Category: model.CategoryImages, Filename: "missing.jpg"},
		{Category: model.CategoryCSS, Filename: "photo.tiff"},
	}

	findings, err := New(WithLogger(quietLogger())).Inspect(context.Background(), dir, assets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %+v", findings)
	}
	if findings[0].Location != "https://cdn.example.com/photo.tiff" {
		t.Errorf("unexpected location %q", findings[0].Location)
	}
}

// TestInspector_Cancelled tests that cancellation stops the audit.
func TestInspector_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assets := []model.Asset{{Category: model.CategoryImages, Filename: "a.jpg"}}
	_, err := New(WithLogger(quietLogger())).Inspect(ctx, t.TempDir(), assets)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// TestInspector_MaxImageSize tests that oversized images are skipped.
func TestInspector_MaxImageSize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "big.tiff")
	if err := os.WriteFile(path, tiffWithSoftware("GIMP"), 0o600); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}

	if _, err := New(WithMaxImageSize(4)).InspectFile(path, ""); err == nil {
		t.Error("expected size error")
	}
}
