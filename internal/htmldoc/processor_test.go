package htmldoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/nao1215/localizer/internal/css"
	"github.com/nao1215/localizer/internal/fetch"
	"github.com/nao1215/localizer/internal/model"
	"github.com/nao1215/localizer/internal/store"
)

type fakeFetcher struct {
	content map[string][]byte
	calls   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, rawURL)
	body, ok := f.content[rawURL]
	if !ok {
		return nil, fmt.Errorf("%w: 404 Not Found", fetch.ErrHTTPStatus)
	}
	return &model.Artifact{Content: body, Origin: rawURL, FinalURL: rawURL}, nil
}

type fixture struct {
	src       string
	mirror    string
	fetcher   *fakeFetcher
	processor *Processor
	failures  []model.Failure
}

func newFixture(t *testing.T, content map[string][]byte) *fixture {
	t.Helper()

	f := &fixture{
		src:     t.TempDir(),
		mirror:  t.TempDir(),
		fetcher: &fakeFetcher{content: content},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(f.mirror, store.WithLogger(logger))
	onFailure := func(ref, doc string, err error) {
		f.failures = append(f.failures, model.Failure{Reference: ref, Document: doc, Reason: err.Error()})
	}
	resolver := css.New(f.fetcher, st, css.WithLogger(logger), css.WithFailureHandler(onFailure))
	f.processor = New(f.src, f.mirror, f.fetcher, st, resolver,
		WithLogger(logger), WithFailureHandler(onFailure))
	return f
}

func (f *fixture) writeSource(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.src, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}
	return path
}

// TestProcess_RewritesRemoteReferences tests stylesheet and script localization.
func TestProcess_RewritesRemoteReferences(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string][]byte{
		"https://cdn.example.com/lib@2.1.0/css/site.css": []byte(`body{background:url(../img/bg.png)}`),
		"https://cdn.example.com/lib@2.1.0/img/bg.png":   []byte("png"),
		"https://cdn.example.com/app.js":                 []byte("console.log(1)"),
	})

	path := f.writeSource(t, "index.html", `<!DOCTYPE html>
<html><head>
<link rel="stylesheet" href="https://cdn.example.com/lib@2.1.0/css/site.css">
<link rel="icon" href="https://cdn.example.com/favicon.ico">
<link rel="stylesheet" href="local.css">
<script src="https://cdn.example.com/app.js"></script>
<script>var inline = 1;</script>
</head><body><img src="https://cdn.example.com/photo.png"></body></html>`)

	modified, err := f.processor.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !modified {
		t.Fatal("expected document to be modified")
	}

	out, err := os.ReadFile(filepath.Join(f.mirror, "index.html"))
	if err != nil {
		t.Fatalf("expected rewritten document: %v", err)
	}
	got := string(out)

	for _, want := range []string{
		`href="./static/css/site_v2.1.0.css"`,
		`src="./static/js/app.js"`,
		`href="https://cdn.example.com/favicon.ico"`,
		`href="local.css"`,
		`src="https://cdn.example.com/photo.png"`,
		`<!DOCTYPE html>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}

	sheet, err := os.ReadFile(filepath.Join(f.mirror, "static", "css", "site_v2.1.0.css"))
	if err != nil {
		t.Fatalf("expected stylesheet: %v", err)
	}
	if string(sheet) != `body{background:url("./images/bg_v2.1.0.png")}` {
		t.Errorf("unexpected stylesheet content %q", sheet)
	}
	if _, err := os.Stat(filepath.Join(f.mirror, "static", "images", "bg_v2.1.0.png")); err != nil {
		t.Errorf("expected image to be stored: %v", err)
	}
}

// TestProcess_NoRemoteReferencesWritesNothing tests that local-only documents are not written.
func TestProcess_NoRemoteReferencesWritesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	path := f.writeSource(t, "about/index.html", `<html><head>
<link rel="stylesheet" href="../css/site.css"><script src="/js/app.js"></script>
</head><body></body></html>`)

	modified, err := f.processor.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if modified {
		t.Error("expected document not to be modified")
	}
	if _, err := os.Stat(filepath.Join(f.mirror, "about", "index.html")); !os.IsNotExist(err) {
		t.Errorf("expected no output file, got %v", err)
	}
	if len(f.fetcher.calls) != 0 {
		t.Errorf("expected no fetches, got %v", f.fetcher.calls)
	}
}

// TestProcess_FetchFailureKeepsReference tests that one failed reference does not stop the document.
func TestProcess_FetchFailureKeepsReference(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string][]byte{
		"https://cdn.example.com/ok.js": []byte("ok()"),
	})
	path := f.writeSource(t, "sub/page.html", `<html><head>
<script src="https://cdn.example.com/missing.js"></script>
<script src="https://cdn.example.com/ok.js"></script>
</head></html>`)

	modified, err := f.processor.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !modified {
		t.Fatal("expected document to be modified")
	}

	out, err := os.ReadFile(filepath.Join(f.mirror, "sub", "page.html"))
	if err != nil {
		t.Fatalf("expected rewritten document: %v", err)
	}
	if !strings.Contains(string(out), `src="https://cdn.example.com/missing.js"`) {
		t.Errorf("expected failed reference to stay, got:\n%s", out)
	}
	if !strings.Contains(string(out), `src="./static/js/ok.js"`) {
		t.Errorf("expected ok.js to be rewritten, got:\n%s", out)
	}
	if len(f.failures) != 1 || f.failures[0].Document != filepath.Join("sub", "page.html") {
		t.Errorf("expected one failure for sub/page.html, got %+v", f.failures)
	}
}

// TestProcess_SharedAssetFetchedOnce tests the run-scoped memo across documents.
func TestProcess_SharedAssetFetchedOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string][]byte{
		"https://cdn.example.com/jquery.js": []byte("jq"),
	})
	page := `<html><head><script src="https://cdn.example.com/jquery.js"></script></head></html>`
	a := f.writeSource(t, "a.html", page)
	b := f.writeSource(t, "b.html", page)

	for _, path := range []string{a, b} {
		if _, err := f.processor.Process(context.Background(), path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(f.fetcher.calls) != 1 {
		t.Errorf("expected one fetch, got %v", f.fetcher.calls)
	}
}

// TestProcess_Cancelled tests that cancellation stops the document without writing it.
func TestProcess_Cancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string][]byte{"https://cdn.example.com/a.js": []byte("a")})
	path := f.writeSource(t, "index.html", `<script src="https://cdn.example.com/a.js"></script>`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	modified, err := f.processor.Process(ctx, path)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if modified {
		t.Error("expected no modification")
	}
	if _, err := os.Stat(filepath.Join(f.mirror, "index.html")); !os.IsNotExist(err) {
		t.Errorf("expected no output, got %v", err)
	}
}

// TestIsStylesheet tests rel token matching.
func TestIsStylesheet(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string][]byte{
		"https://a.example.com/1.css": []byte("a{}"),
		"https://a.example.com/2.css": []byte("b{}"),
		"https://a.example.com/3.css": []byte("c{}"),
	})
	path := f.writeSource(t, "index.html", `<html><head>
<link rel="Stylesheet" href="https://a.example.com/1.css">
<link rel="alternate stylesheet" href="https://a.example.com/2.css">
<link rel="preload" href="https://a.example.com/3.css">
</head></html>`)

	if _, err := f.processor.Process(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"https://a.example.com/1.css", "https://a.example.com/2.css"}
	if strings.Join(f.fetcher.calls, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, f.fetcher.calls)
	}
}

// TestProcess_DeclaresUTF8 tests that a document read as GBK is written as UTF-8 and says so.
func TestProcess_DeclaresUTF8(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta string
		want string
	}{
		{
			name: "meta charset",
			meta: `<meta charset="gbk">`,
			want: `<meta charset="utf-8"/>`,
		},
		{
			name: "http-equiv content type",
			meta: `<meta http-equiv="Content-Type" content="text/html; charset=gbk">`,
			want: `content="text/html; charset=utf-8"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, map[string][]byte{
				"https://cdn.example.com/app.js": []byte("console.log(1)"),
			})
			page := `<html><head>` + tt.meta + `<title>中文页面</title>
<script src="https://cdn.example.com/app.js"></script></head><body><p>你好，世界</p></body></html>`
			encoded, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(page))
			if err != nil {
				t.Fatalf("failed to encode: %v", err)
			}
			path := f.writeSource(t, "index.html", string(encoded))

			if _, err := f.processor.Process(context.Background(), path); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			out, err := os.ReadFile(filepath.Join(f.mirror, "index.html"))
			if err != nil {
				t.Fatalf("expected rewritten document: %v", err)
			}
			if !utf8.Valid(out) {
				t.Fatal("expected UTF-8 output")
			}
			got := string(out)
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in output, got:\n%s", tt.want, got)
			}
			if strings.Contains(strings.ToLower(got), "gbk") {
				t.Errorf("expected no gbk declaration left, got:\n%s", got)
			}
			if !strings.Contains(got, "你好，世界") {
				t.Errorf("expected decoded text, got:\n%s", got)
			}
		})
	}
}

// TestProcess_StylesheetCharsetRule tests that a stored stylesheet declares UTF-8.
func TestProcess_StylesheetCharsetRule(t *testing.T) {
	t.Parallel()

	sheet := `@charset "GBK";` + "\n/* " + strings.Repeat("中文样式表注释，", 10) + " */\n.a{color:red}"
	encoded, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(sheet))
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	f := newFixture(t, map[string][]byte{
		"https://cdn.example.com/site.css": encoded,
	})
	path := f.writeSource(t, "index.html",
		`<html><head><link rel="stylesheet" href="https://cdn.example.com/site.css"></head></html>`)

	if _, err := f.processor.Process(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := os.ReadFile(filepath.Join(f.mirror, "static", "css", "site.css"))
	if err != nil {
		t.Fatalf("expected stylesheet: %v", err)
	}
	if !utf8.Valid(out) {
		t.Fatal("expected UTF-8 stylesheet")
	}
	if !strings.HasPrefix(string(out), `@charset "UTF-8";`) {
		t.Errorf("expected UTF-8 charset rule, got %q", out)
	}
	if !strings.HasSuffix(string(out), ".a{color:red}") {
		t.Errorf("expected rules to survive, got %q", out)
	}
}

func TestReplaceCSSCharset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "double quotes", in: `@charset "GBK"; a{}`, want: `@charset "UTF-8"; a{}`},
		{name: "single quotes", in: `@charset 'iso-8859-1';a{}`, want: `@charset "UTF-8";a{}`},
		{name: "byte order mark", in: "\uFEFF@charset \"GBK\";a{}", want: `@charset "UTF-8";a{}`},
		{name: "no rule", in: `a{}`, want: `a{}`},
		{name: "rule not leading", in: `a{} @charset "GBK";`, want: `a{} @charset "GBK";`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := replaceCSSCharset(tt.in); got != tt.want {
				t.Errorf("replaceCSSCharset(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
