package walker

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/localizer/internal/model"
)

// HTMLSuffix marks files handed to the HTML processor.
const HTMLSuffix = ".html"

// Processor localizes one HTML document and reports whether it was
// written to the mirror.
type Processor interface {
	Process(ctx context.Context, path string) (bool, error)
}

// Stats counts what a walk did.
type Stats struct {
	// DocumentsRewritten is the number of HTML files written to the mirror.
	DocumentsRewritten int
	// DocumentsUnchanged is the number of HTML files with nothing to rewrite.
	DocumentsUnchanged int
	// FilesCopied is the number of other files copied verbatim.
	FilesCopied int
}

// Walker mirrors a source tree: HTML files go through the Processor,
// everything else is copied byte for byte.
type Walker struct {
	sourceRoot string
	mirrorRoot string
	processor  Processor
	logger     *slog.Logger
	onProgress func(model.Progress)
	stats      Stats
	done       int
}

// Option configures a Walker.
type Option func(*Walker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithProgress registers a callback invoked after each file is handled.
func WithProgress(fn func(model.Progress)) Option {
	return func(w *Walker) {
		w.onProgress = fn
	}
}

// New creates a Walker from sourceRoot to mirrorRoot.
func New(sourceRoot, mirrorRoot string, processor Processor, opts ...Option) *Walker {
	w := &Walker{
		sourceRoot: sourceRoot,
		mirrorRoot: mirrorRoot,
		processor:  processor,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Stats returns the counters collected so far.
func (w *Walker) Stats() Stats {
	return w.stats
}

// Walk visits every file under the source root in lexical order.
//
// ctx is checked before each directory and each file; when it is done,
// Walk returns ctx.Err() and leaves everything already written in place.
// Any filesystem error stops the walk and is returned.
func (w *Walker) Walk(ctx context.Context) error {
	return filepath.WalkDir(w.sourceRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return fmt.Errorf("failed to read %s: %w", path, walkErr)
		}

		if d.IsDir() {
			if w.isMirror(path) {
				w.logger.Warn("skipping output directory inside source tree", "dir", path)
				return filepath.SkipDir
			}
			w.logger.Debug("entering directory", "dir", path)
			return nil
		}

		return w.visitFile(ctx, path, d)
	})
}

func (w *Walker) visitFile(ctx context.Context, path string, d fs.DirEntry) error {
	rel, err := filepath.Rel(w.sourceRoot, path)
	if err != nil {
		return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
	}

	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil {
			w.logger.Warn("skipping broken symlink", "file", rel)
			return nil
		}
		if info.IsDir() {
			w.logger.Warn("skipping symlinked directory", "file", rel)
			return nil
		}
	} else if !d.Type().IsRegular() {
		w.logger.Warn("skipping special file", "file", rel)
		return nil
	}

	rewritten := false
	if strings.HasSuffix(d.Name(), HTMLSuffix) {
		rewritten, err = w.processor.Process(ctx, path)
		if err != nil {
			return err
		}
		if rewritten {
			w.stats.DocumentsRewritten++
		} else {
			w.stats.DocumentsUnchanged++
		}
	} else {
		if err := copyFile(path, filepath.Join(w.mirrorRoot, rel)); err != nil {
			return err
		}
		w.stats.FilesCopied++
		w.logger.Debug("copied", "file", rel)
	}

	w.done++
	if w.onProgress != nil {
		w.onProgress(model.Progress{Path: rel, FilesDone: w.done, Rewritten: rewritten})
	}
	return nil
}

// isMirror reports whether dir is the mirror root, which only happens when
// the mirror was placed inside the source tree.
func (w *Walker) isMirror(dir string) bool {
	a, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	b, err := filepath.Abs(w.mirrorRoot)
	if err != nil {
		return false
	}
	return a == b
}

// copyFile copies src to dst, creating parent directories and keeping the
// permission bits and modification time.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close() //nolint:errcheck // copy error takes precedence
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set times on %s: %w", dst, err)
	}
	return nil
}
