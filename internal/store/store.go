package store

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/nao1215/localizer/internal/model"
)

// HashLength is the number of hex characters kept from the content digest.
const HashLength = 8

// versionPattern finds an npm-style "@1.2.3" version segment in an origin.
var versionPattern = regexp.MustCompile(`@(\d+(?:\.\d+)*)`)

// Fingerprint returns the first HashLength hex characters of the BLAKE2b-256
// digest of content. It only needs to avoid collisions within one run.
func Fingerprint(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])[:HashLength]
}

// Store persists fetched artifacts under the mirror's static directories.
// A Store belongs to exactly one localization run: its Ledger starts empty
// and is never shared with another run.
//
// Store is not safe for concurrent use; the pipeline drives it from a
// single worker goroutine.
type Store struct {
	root   string
	ledger *Ledger
	logger *slog.Logger
	// onSave is called for every saved or reused asset.
	onSave func(model.Asset)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLedger injects a ledger, mainly for tests that inspect it.
func WithLedger(ledger *Ledger) Option {
	return func(s *Store) {
		if ledger != nil {
			s.ledger = ledger
		}
	}
}

// WithRecorder registers a callback invoked for every asset the store
// writes or reuses. The pipeline uses it to fill the run report.
func WithRecorder(fn func(model.Asset)) Option {
	return func(s *Store) {
		s.onSave = fn
	}
}

// New creates a Store rooted at the mirror directory root.
// Category directories are created lazily by Prepare or on first save.
func New(root string, opts ...Option) *Store {
	s := &Store{
		root:   root,
		ledger: NewLedger(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the mirror root directory.
func (s *Store) Root() string {
	return s.root
}

// Ledger returns the run's content ledger.
func (s *Store) Ledger() *Ledger {
	return s.ledger
}

// Dir returns the absolute directory for a category.
func (s *Store) Dir(category model.Category) string {
	return filepath.Join(s.root, category.Subdir())
}

// Prepare creates every category directory under the mirror root.
func (s *Store) Prepare() error {
	for _, c := range model.Categories {
		if err := os.MkdirAll(s.Dir(c), 0o750); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", c, err)
		}
	}
	return nil
}

// Save persists content fetched from originURL and returns the filename
// actually used. Callers must rewrite references with the returned name.
func (s *Store) Save(content []byte, originURL string, category model.Category) (string, error) {
	hash := Fingerprint(content)
	return s.save(content, DeriveFilename(originURL, hash, category), originURL, hash, category)
}

// SaveAs persists content under an explicit filename, such as the synthetic
// name of a data: URI. The same collision policy applies.
func (s *Store) SaveAs(content []byte, filename string, category model.Category) (string, error) {
	hash := Fingerprint(content)
	return s.save(content, filename, filename, hash, category)
}

func (s *Store) save(content []byte, filename, origin, hash string, category model.Category) (string, error) {
	// The ledger is keyed by category-relative path so css/app.css and
	// js/app.css never collide with each other.
	key := path.Join(category.String(), filename)

	if stored, seen := s.ledger.Lookup(key); seen {
		if stored == hash {
			s.logger.Debug("reusing stored asset", "file", filename, "category", category.String())
			s.record(category, filename, origin, hash, len(content), true)
			return filename, nil
		}
		filename = AppendSuffix(filename, hash)
		key = path.Join(category.String(), filename)
		if stored, seen := s.ledger.Lookup(key); seen && stored == hash {
			s.record(category, filename, origin, hash, len(content), true)
			return filename, nil
		}
	}

	dir := s.Dir(category)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", category, err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), content, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}

	s.ledger.Record(key, hash)
	s.record(category, filename, origin, hash, len(content), false)
	return filename, nil
}

func (s *Store) record(category model.Category, filename, origin, hash string, size int, reused bool) {
	if s.onSave == nil {
		return
	}
	s.onSave(model.Asset{
		Category: category,
		Filename: filename,
		Origin:   origin,
		Hash:     hash,
		Size:     size,
		Reused:   reused,
	})
}

// DeriveFilename picks the local filename for content fetched from origin.
// It takes the last path segment of the URL, falls back to
// file_<hash>.<category> when the path has none, and splices _v<version>
// before the extension when the origin carries an "@<version>" segment.
func DeriveFilename(origin, hash string, category model.Category) string {
	name := ""
	if u, err := url.Parse(origin); err == nil {
		name = lastSegment(u.Path)
	} else {
		name = lastSegment(origin)
	}
	if name == "" {
		name = fmt.Sprintf("file_%s.%s", hash, category)
	}

	if m := versionPattern.FindStringSubmatch(origin); m != nil {
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext) + "_v" + m[1] + ext
	}
	return name
}

// AppendSuffix inserts _<hash> before the extension of name.
func AppendSuffix(name, hash string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + hash + ext
}

func lastSegment(p string) string {
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
