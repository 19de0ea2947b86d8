package css

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/nao1215/localizer/internal/fetch"
	"github.com/nao1215/localizer/internal/log"
	"github.com/nao1215/localizer/internal/model"
)

// urlPattern matches url(...) tokens with optional single or double quotes.
// The captured reference is trimmed before use.
var urlPattern = regexp.MustCompile(`url\(['"]?(.*?)['"]?\)`)

// Fetcher returns the content behind a reference.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.Artifact, error)
}

// Store persists assets and returns the filename to reference.
type Store interface {
	Save(content []byte, originURL string, category model.Category) (string, error)
	SaveAs(content []byte, filename string, category model.Category) (string, error)
}

// FailureFunc is called for every reference left unlocalized because its
// fetch failed. document is the stylesheet URL.
type FailureFunc func(reference, document string, err error)

// Resolver localizes the fonts and images a stylesheet references.
type Resolver struct {
	fetcher   Fetcher
	store     Store
	logger    *slog.Logger
	onFailure FailureFunc
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFailureHandler registers a callback for failed references.
func WithFailureHandler(fn FailureFunc) Option {
	return func(r *Resolver) {
		r.onFailure = fn
	}
}

// New creates a Resolver that downloads with fetcher and saves into store.
func New(fetcher Fetcher, store Store, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve rewrites every url(...) token in cssText that can be localized
// and returns the new text. cssURL is the address the stylesheet was
// fetched from; relative references resolve against its directory.
//
// Token handling:
//   - data: URIs are decoded and stored under images
//   - absolute http(s) URLs are left byte-identical
//   - other references are resolved, classified by extension, fetched and
//     stored under fonts or images; unclassified ones are left alone
//
// A failed fetch leaves its token unchanged. The returned error is non-nil
// only when ctx is cancelled or the store cannot write.
func (r *Resolver) Resolve(ctx context.Context, cssText, cssURL string) (string, error) {
	base, err := url.Parse(cssURL)
	if err != nil {
		return cssText, fmt.Errorf("invalid stylesheet URL %q: %w", cssURL, err)
	}

	matches := urlPattern.FindAllStringSubmatchIndex(cssText, -1)
	if len(matches) == 0 {
		return cssText, nil
	}

	// Replacements already computed in this pass, keyed by reference.
	visited := make(map[string]string)

	var b strings.Builder
	b.Grow(len(cssText))
	last := 0
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return cssText, err
		}

		token := cssText[m[0]:m[1]]
		ref := cleanRef(cssText[m[2]:m[3]])

		replacement, seen := visited[ref]
		if !seen {
			replacement, err = r.resolveToken(ctx, token, ref, base, cssURL)
			if err != nil {
				return cssText, err
			}
			visited[ref] = replacement
		}

		b.WriteString(cssText[last:m[0]])
		b.WriteString(replacement)
		last = m[1]
	}
	b.WriteString(cssText[last:])
	return b.String(), nil
}

// resolveToken returns the replacement for one token; the token itself
// when it is left alone.
func (r *Resolver) resolveToken(ctx context.Context, token, ref string, base *url.URL, cssURL string) (string, error) {
	switch {
	case ref == "":
		return token, nil
	case fetch.IsDataURI(ref):
		return r.resolveDataURI(ctx, token, ref, cssURL)
	case IsAbsoluteHTTP(ref):
		return token, nil
	}

	rel, err := url.Parse(ref)
	if err != nil {
		r.logger.Debug("skipping unparsable reference", "ref", ref, "stylesheet", cssURL)
		return token, nil
	}
	resolved := base.ResolveReference(rel)

	category, ok := model.ClassifyExtension(path.Ext(resolved.Path))
	if !ok {
		r.logger.Debug("leaving unclassified reference", "ref", ref, "stylesheet", cssURL)
		return token, nil
	}

	target := resolved.String()
	artifact, err := r.fetcher.Fetch(ctx, target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return token, ctxErr
		}
		r.fail(target, cssURL, err)
		return token, nil
	}

	name, err := r.store.Save(artifact.Content, target, category)
	if err != nil {
		return token, err
	}
	log.Success(ctx, r.logger, "localized stylesheet asset", "url", target, "file", name, "category", category.String())
	return rewritten(category, name), nil
}

func (r *Resolver) resolveDataURI(ctx context.Context, token, ref, cssURL string) (string, error) {
	artifact, err := r.fetcher.Fetch(ctx, ref)
	if err != nil {
		r.fail(ref, cssURL, err)
		return token, nil
	}
	name, err := r.store.SaveAs(artifact.Content, artifact.Filename, model.CategoryImages)
	if err != nil {
		return token, err
	}
	r.logger.Debug("stored inline data URI", "file", name, "stylesheet", cssURL)
	return rewritten(model.CategoryImages, name), nil
}

func (r *Resolver) fail(reference, document string, err error) {
	r.logger.Error("failed to localize stylesheet asset", "url", reference, "stylesheet", document, "error", err)
	if r.onFailure != nil {
		r.onFailure(reference, document, err)
	}
}

// rewritten formats the replacement token. Paths are relative to the
// stylesheet's own directory (static/css).
func rewritten(category model.Category, name string) string {
	return fmt.Sprintf(`url("./%s/%s")`, category.String(), name)
}

// cleanRef trims whitespace and quotes left inside the parentheses,
// as in url( "a.png" ).
func cleanRef(raw string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))
}

// IsAbsoluteHTTP reports whether ref is an absolute http or https URL.
func IsAbsoluteHTTP(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
