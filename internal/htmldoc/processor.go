package htmldoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/localizer/internal/charset"
	"github.com/nao1215/localizer/internal/css"
	"github.com/nao1215/localizer/internal/log"
	"github.com/nao1215/localizer/internal/model"
)

// Fetcher returns the content behind a reference.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.Artifact, error)
}

// Store persists assets and returns the filename to reference.
type Store interface {
	Save(content []byte, originURL string, category model.Category) (string, error)
}

// Resolver localizes the url(...) references of a stylesheet.
type Resolver interface {
	Resolve(ctx context.Context, cssText, cssURL string) (string, error)
}

// FailureFunc is called for every reference left unlocalized.
// document is the HTML file path relative to the source root.
type FailureFunc func(reference, document string, err error)

// Processor localizes the stylesheets and scripts of HTML documents.
// Elements are selected with goquery and the tree, doctype included, is
// serialized with golang.org/x/net/html.
//
// A Processor belongs to one run. It remembers the local path produced for
// each remote URL so that documents sharing an asset fetch it once.
type Processor struct {
	sourceRoot string
	mirrorRoot string
	fetcher    Fetcher
	store      Store
	resolver   Resolver
	logger     *slog.Logger
	onFailure  FailureFunc
	memo       map[string]string
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFailureHandler registers a callback for failed references.
func WithFailureHandler(fn FailureFunc) Option {
	return func(p *Processor) {
		p.onFailure = fn
	}
}

// New creates a Processor that reads documents under sourceRoot and writes
// rewritten documents to the same relative path under mirrorRoot.
func New(sourceRoot, mirrorRoot string, fetcher Fetcher, store Store, resolver Resolver, opts ...Option) *Processor {
	p := &Processor{
		sourceRoot: sourceRoot,
		mirrorRoot: mirrorRoot,
		fetcher:    fetcher,
		store:      store,
		resolver:   resolver,
		logger:     slog.Default(),
		memo:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// reference describes one kind of localizable element.
type reference struct {
	selector string
	attr     string
	category model.Category
	// match filters selected elements; nil accepts all.
	match func(*goquery.Selection) bool
}

var references = []reference{
	{
		selector: "link[href]",
		attr:     "href",
		category: model.CategoryCSS,
		match:    isStylesheet,
	},
	{
		selector: "script[src]",
		attr:     "src",
		category: model.CategoryJS,
	},
}

// Process localizes one HTML document. It reports whether at least one
// reference was rewritten; only then is the document written to the mirror.
//
// A failed fetch leaves that reference unchanged. The error is non-nil when
// ctx is cancelled or a filesystem operation fails.
func (p *Processor) Process(ctx context.Context, path string) (bool, error) {
	rel, err := filepath.Rel(p.sourceRoot, path)
	if err != nil {
		return false, fmt.Errorf("failed to compute relative path for %s: %w", path, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", rel, err)
	}

	text, enc, decodeErr := charset.DecodeHTML(raw)
	if decodeErr != nil {
		p.logger.Warn("could not detect document encoding, parsing raw bytes", "file", rel)
		text = string(raw)
	} else if enc != charset.UTF8 {
		p.logger.Debug("decoded document", "file", rel, "charset", enc)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", rel, err)
	}
	if decodeErr == nil {
		declareUTF8(doc)
	}

	p.logger.Info("processing document", "file", rel)

	modified := false
	for _, ref := range references {
		changed, err := p.rewrite(ctx, doc, ref, rel)
		if err != nil {
			return false, err
		}
		modified = modified || changed
	}

	if !modified {
		p.logger.Debug("no remote references, document not written", "file", rel)
		return false, nil
	}

	if err := p.write(doc, path, rel); err != nil {
		return false, err
	}
	log.Success(ctx, p.logger, "rewrote document", "file", rel)
	return true, nil
}

func (p *Processor) rewrite(ctx context.Context, doc *goquery.Document, ref reference, rel string) (bool, error) {
	modified := false
	var fatal error

	doc.Find(ref.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if err := ctx.Err(); err != nil {
			fatal = err
			return false
		}
		if ref.match != nil && !ref.match(s) {
			return true
		}

		target := strings.TrimSpace(s.AttrOr(ref.attr, ""))
		if !css.IsAbsoluteHTTP(target) {
			return true
		}

		local, err := p.localize(ctx, target, ref.category, rel)
		if err != nil {
			if errors.Is(err, errSkipped) {
				return true
			}
			fatal = err
			return false
		}

		s.SetAttr(ref.attr, local)
		modified = true
		return true
	})

	return modified, fatal
}

// errSkipped marks a reference whose fetch failed and was recorded.
var errSkipped = errors.New("reference skipped")

// localize returns the local path for target, fetching and storing it on
// first use.
func (p *Processor) localize(ctx context.Context, target string, category model.Category, rel string) (string, error) {
	memoKey := category.String() + " " + target
	if local, ok := p.memo[memoKey]; ok {
		p.logger.Debug("reusing localized asset", "url", target, "path", local)
		return local, nil
	}

	artifact, err := p.fetcher.Fetch(ctx, target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		p.fail(target, rel, err)
		return "", errSkipped
	}

	content := artifact.Content
	if category == model.CategoryCSS {
		content, err = p.processStylesheet(ctx, artifact, target)
		if err != nil {
			return "", err
		}
	}

	name, err := p.store.Save(content, target, category)
	if err != nil {
		return "", err
	}

	local := "./" + filepath.ToSlash(category.Subdir()) + "/" + name
	p.memo[memoKey] = local
	log.Success(ctx, p.logger, "localized", "url", target, "file", name, "category", category.String())
	return local, nil
}

// processStylesheet decodes the stylesheet and localizes its url(...)
// references. Undecodable stylesheets are stored as downloaded.
func (p *Processor) processStylesheet(ctx context.Context, artifact *model.Artifact, target string) ([]byte, error) {
	text, enc, err := charset.Decode(artifact.Content)
	if err != nil {
		p.logger.Warn("stylesheet is not decodable text, storing it unresolved", "url", target, "error", err)
		return artifact.Content, nil
	}
	if enc != charset.UTF8 {
		p.logger.Info("decoded stylesheet", "url", target, "charset", enc)
	}
	text = replaceCSSCharset(text)

	base := artifact.FinalURL
	if base == "" {
		base = target
	}
	resolved, err := p.resolver.Resolve(ctx, text, base)
	if err != nil {
		return nil, err
	}
	return []byte(resolved), nil
}

func (p *Processor) write(doc *goquery.Document, path, rel string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", rel, err)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc.Get(0)); err != nil {
		return fmt.Errorf("failed to render %s: %w", rel, err)
	}

	out := filepath.Join(p.mirrorRoot, rel)
	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(out, buf.Bytes(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}

// declareUTF8 points the <meta> charset declarations of doc at UTF-8, the
// encoding every rewritten document is rendered in.
func declareUTF8(doc *goquery.Document) {
	doc.Find("meta[charset]").SetAttr("charset", charset.UTF8)
	doc.Find("meta[http-equiv][content]").Each(func(_ int, s *goquery.Selection) {
		if strings.EqualFold(strings.TrimSpace(s.AttrOr("http-equiv", "")), "content-type") {
			s.SetAttr("content", "text/html; charset="+charset.UTF8)
		}
	})
}

// cssCharsetRule matches an @charset rule at the start of a stylesheet.
var cssCharsetRule = regexp.MustCompile(`^(\x{FEFF})?\s*@charset\s+["'][^"']*["']\s*;`)

// replaceCSSCharset rewrites a leading @charset rule to "UTF-8". A byte
// order mark before the rule is dropped with it. Stylesheets without the
// rule are returned unchanged.
func replaceCSSCharset(cssText string) string {
	loc := cssCharsetRule.FindStringIndex(cssText)
	if loc == nil {
		return cssText
	}
	return `@charset "UTF-8";` + cssText[loc[1]:]
}

func (p *Processor) fail(reference, document string, err error) {
	p.logger.Error("failed to localize", "url", reference, "document", document, "error", err)
	if p.onFailure != nil {
		p.onFailure(reference, document, err)
	}
}

// isStylesheet reports whether a <link> has "stylesheet" among its rel tokens.
func isStylesheet(s *goquery.Selection) bool {
	for _, token := range strings.Fields(s.AttrOr("rel", "")) {
		if strings.EqualFold(token, "stylesheet") {
			return true
		}
	}
	return false
}
