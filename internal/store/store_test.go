package store

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/localizer/internal/model"
)

// TestFingerprint tests that fingerprints are short, hex and stable.
func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := Fingerprint([]byte("body{}"))
	b := Fingerprint([]byte("body{}"))
	c := Fingerprint([]byte("body{color:red}"))

	if !regexp.MustCompile(`^[0-9a-f]{8}$`).MatchString(a) {
		t.Errorf("expected 8 hex characters, got %q", a)
	}
	if a != b {
		t.Errorf("expected stable fingerprint, got %q and %q", a, b)
	}
	if a == c {
		t.Errorf("expected different fingerprints for different content, got %q", a)
	}
}

// TestDeriveFilename tests filename derivation from origin URLs.
func TestDeriveFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		origin   string
		category model.Category
		want     string
	}{
		{
			name:     "basename of URL path",
			origin:   "https://cdn.example.com/css/app.css",
			category: model.CategoryCSS,
			want:     "app.css",
		},
		{
			name:     "query string is ignored",
			origin:   "https://cdn.example.com/js/app.js?v=3",
			category: model.CategoryJS,
			want:     "app.js",
		},
		{
			name:     "version spliced before extension",
			origin:   "https://cdn.jsdelivr.net/npm/bootstrap@5.3.0/dist/css/bootstrap.min.css",
			category: model.CategoryCSS,
			want:     "bootstrap.min_v5.3.0.css",
		},
		{
			name:     "two component version",
			origin:   "https://cdn.example.com/jquery@3.7/dist/jquery.min.js",
			category: model.CategoryJS,
			want:     "jquery.min_v3.7.js",
		},
		{
			name:     "empty path synthesizes name",
			origin:   "https://fonts.googleapis.com",
			category: model.CategoryCSS,
			want:     "file_deadbeef.css",
		},
		{
			name:     "trailing slash synthesizes name",
			origin:   "https://example.com/assets/",
			category: model.CategoryJS,
			want:     "file_deadbeef.js",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := DeriveFilename(tt.origin, "deadbeef", tt.category); got != tt.want {
				t.Errorf("DeriveFilename(%q) = %q, want %q", tt.origin, got, tt.want)
			}
		})
	}
}

// TestStore_SaveIdenticalContentIsIdempotent tests that identical bytes are written once.
func TestStore_SaveIdenticalContentIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var assets []model.Asset
	s := New(root, WithRecorder(func(a model.Asset) { assets = append(assets, a) }))

	content := []byte("body{margin:0}")
	origin := "https://cdn.example.com/css/app.css"

	first, err := s.Save(content, origin, model.CategoryCSS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	target := filepath.Join(root, "static", "css", first)
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(target, old, old); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}

	second, err := s.Save(content, origin, model.CategoryCSS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != "app.css" || second != first {
		t.Errorf("expected app.css twice, got %q and %q", first, second)
	}

	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	if !info.ModTime().Equal(old) {
		t.Errorf("expected file not to be rewritten, mtime changed to %v", info.ModTime())
	}

	entries, err := os.ReadDir(filepath.Join(root, "static", "css"))
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 file, got %d", len(entries))
	}

	if len(assets) != 2 || assets[0].Reused || !assets[1].Reused {
		t.Errorf("expected one stored and one reused asset, got %+v", assets)
	}
}

// TestStore_SaveDifferentContentIsDisambiguated tests hash-suffixed names on collision.
func TestStore_SaveDifferentContentIsDisambiguated(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := New(root)

	a := []byte("console.log('a')")
	b := []byte("console.log('b')")

	first, err := s.Save(a, "https://one.example.com/app.js", model.CategoryJS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Save(b, "https://two.example.com/app.js", model.CategoryJS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != "app.js" {
		t.Errorf("expected app.js, got %q", first)
	}
	want := "app_" + Fingerprint(b) + ".js"
	if second != want {
		t.Errorf("expected %q, got %q", want, second)
	}
	if !regexp.MustCompile(`_[0-9a-f]{8}\.js$`).MatchString(second) {
		t.Errorf("expected 8 hex suffix, got %q", second)
	}

	for name, content := range map[string][]byte{first: a, second: b} {
		got, err := os.ReadFile(filepath.Join(root, "static", "js", name))
		if err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("expected %s to hold %q, got %q", name, content, got)
		}
	}

	// Saving b again resolves to the suffixed name without a new file.
	third, err := s.Save(b, "https://two.example.com/app.js", model.CategoryJS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third != second {
		t.Errorf("expected %q, got %q", second, third)
	}

	hashes := s.Ledger().Entries()
	if hashes["js/app.js"] != Fingerprint(a) {
		t.Errorf("expected app.js bound to first content hash, got %q", hashes["js/app.js"])
	}
	if len(hashes) != 2 {
		t.Errorf("expected 2 ledger entries, got %d", len(hashes))
	}
}

// TestStore_SaveAs tests saving under an explicit filename.
func TestStore_SaveAs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := New(root)

	name, err := s.SaveAs([]byte{0x89, 'P', 'N', 'G'}, "data_url_0badf00d.png", model.CategoryImages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "data_url_0badf00d.png" {
		t.Errorf("expected explicit name, got %q", name)
	}
	if _, err := os.Stat(filepath.Join(root, "static", "images", name)); err != nil {
		t.Errorf("expected image to exist: %v", err)
	}
}

// TestStore_CategoriesDoNotCollide tests that equal names in different categories are independent.
func TestStore_CategoriesDoNotCollide(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())

	css, err := s.Save([]byte("a"), "https://example.com/main", model.CategoryCSS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	js, err := s.Save([]byte("b"), "https://example.com/main", model.CategoryJS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if css != "main" || js != "main" {
		t.Errorf("expected both to keep their name, got %q and %q", css, js)
	}
}

// TestStore_Prepare tests that every category directory is created.
func TestStore_Prepare(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := New(root)
	if err := s.Prepare(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, dir := range []string{"static/css", "static/js", "static/css/fonts", "static/images"} {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(dir)))
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s: %v", dir, err)
		}
	}
}

// TestStore_SaveWriteError tests that filesystem errors are returned.
func TestStore_SaveWriteError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	blocker := filepath.Join(root, "static")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0o600); err != nil {
		t.Fatalf("failed to create blocker: %v", err)
	}

	s := New(root)
	_, err := s.Save([]byte("x"), "https://example.com/a.css", model.CategoryCSS)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "css") {
		t.Errorf("expected error to name the category, got %v", err)
	}
}
