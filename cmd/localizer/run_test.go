package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/localizer/internal/config"
	"github.com/nao1215/localizer/internal/history"
	"github.com/nao1215/localizer/internal/log"
	"github.com/nao1215/localizer/internal/model"
)

func newCDN(t *testing.T) *httptest.Server {
	t.Helper()

	assets := map[string]string{
		"/lib@2.1.0/css/lib.css":  `.icon{background:url("../img/icon.png")}`,
		"/lib@2.1.0/img/icon.png": "png",
		"/main.js":                "console.log('main')",
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := assets[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(server.Close)
	return server
}

func writeSite(t *testing.T, root, cdn string) {
	t.Helper()

	files := map[string]string{
		"index.html": `<html><head><link rel="stylesheet" href="` + cdn + `/lib@2.1.0/css/lib.css">` +
			`<script src="` + cdn + `/main.js"></script></head><body></body></html>`,
		"about/plain.html": `<html><body>no remote assets</body></html>`,
		"img/logo.png":     "logo",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func executeRoot(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// TestNewRunCmd tests the run command flags.
func TestNewRunCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRunCmd()
	for _, tc := range []struct {
		name      string
		shorthand string
	}{
		{config.FlagProxy, "x"},
		{config.FlagTor, ""},
		{config.FlagUserAgent, ""},
		{config.FlagHistory, ""},
		{config.FlagInspectImages, ""},
		{"tui", ""},
		{"concurrency", "n"},
		{"config", "c"},
		{config.FlagJSON, "j"},
		{config.FlagMarkdown, "m"},
		{"output", "o"},
	} {
		flag := cmd.Flags().Lookup(tc.name)
		if flag == nil {
			t.Errorf("expected %s flag", tc.name)
			continue
		}
		if flag.Shorthand != tc.shorthand {
			t.Errorf("%s: expected shorthand %q, got %q", tc.name, tc.shorthand, flag.Shorthand)
		}
	}
}

// TestRunCmd_JSON tests a full run with a JSON report on stdout.
func TestRunCmd_JSON(t *testing.T) {
	cdn := newCDN(t)
	root := t.TempDir()
	src := filepath.Join(root, "site")
	writeSite(t, src, cdn.URL)

	stdout, stderr, err := executeRoot(t, "run", "--json", src)
	if err != nil {
		t.Fatalf("unexpected error: %v\nstderr:\n%s", err, stderr)
	}

	var decoded struct {
		Report struct {
			Status             string `json:"status"`
			OutputDir          string `json:"output_dir"`
			DocumentsRewritten int    `json:"documents_rewritten"`
			DocumentsUnchanged int    `json:"documents_unchanged"`
			FilesCopied        int    `json:"files_copied"`
		} `json:"report"`
		AssetCounts map[string]int `json:"asset_counts"`
	}
	if err := json.Unmarshal([]byte(stdout), &decoded); err != nil {
		t.Fatalf("invalid JSON report: %v\n%s", err, stdout)
	}

	r := decoded.Report
	if r.Status != string(model.StatusSuccess) {
		t.Errorf("expected success, got %s", r.Status)
	}
	if r.DocumentsRewritten != 1 || r.DocumentsUnchanged != 1 || r.FilesCopied != 1 {
		t.Errorf("unexpected counters %+v", r)
	}
	if decoded.AssetCounts["css"] != 1 || decoded.AssetCounts["js"] != 1 || decoded.AssetCounts["images"] != 1 {
		t.Errorf("unexpected asset counts %v", decoded.AssetCounts)
	}
	if !strings.HasPrefix(filepath.Base(r.OutputDir), "site_localized_") {
		t.Errorf("unexpected output dir %s", r.OutputDir)
	}

	html, err := os.ReadFile(filepath.Join(r.OutputDir, "index.html"))
	if err != nil {
		t.Fatalf("expected rewritten index.html: %v", err)
	}
	if strings.Contains(string(html), cdn.URL) {
		t.Errorf("expected remote references to be rewritten:\n%s", html)
	}
	if _, err := os.Stat(filepath.Join(r.OutputDir, "static", "images", "icon_v2.1.0.png")); err != nil {
		t.Errorf("expected localized image: %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.OutputDir, "about", "plain.html")); !os.IsNotExist(err) {
		t.Errorf("expected unchanged HTML to be absent, got %v", err)
	}

	if strings.Count(stderr, "localization complete") != 1 {
		t.Errorf("expected one terminal line, got:\n%s", stderr)
	}
}

// TestRunCmd_MarkdownToFile tests report file output.
func TestRunCmd_MarkdownToFile(t *testing.T) {
	cdn := newCDN(t)
	root := t.TempDir()
	src := filepath.Join(root, "site")
	writeSite(t, src, cdn.URL)
	reportPath := filepath.Join(root, "reports", "run.md")

	stdout, stderr, err := executeRoot(t, "run", "--markdown", "-o", reportPath, src)
	if err != nil {
		t.Fatalf("unexpected error: %v\nstderr:\n%s", err, stderr)
	}
	if stdout != "" {
		t.Errorf("expected nothing on stdout, got %q", stdout)
	}

	content, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("expected report file: %v", err)
	}
	if !strings.Contains(string(content), "# Localizer Report") {
		t.Errorf("unexpected report:\n%s", content)
	}
}

// TestRunCmd_Errors tests argument and configuration errors.
func TestRunCmd_Errors(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{name: "no source", args: []string{"run"}},
		{name: "missing source", args: []string{"run", filepath.Join(root, "absent")}, wantErr: config.ErrSourceNotDir},
		{name: "source is a file", args: []string{"run", file}, wantErr: config.ErrSourceNotDir},
		{name: "proxy and tor", args: []string{"run", "--proxy", "127.0.0.1:1080", "--tor", root}},
		{name: "json and markdown", args: []string{"run", "--json", "--markdown", root}},
		{name: "bad proxy", args: []string{"run", "--proxy", "ftp://host:21", root}},
		{name: "missing config file", args: []string{"run", "-c", filepath.Join(root, "absent.yaml"), root}, wantErr: config.ErrConfigNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeRoot(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestRunCmd_FailedRun tests that a failed run yields an error exit.
func TestRunCmd_FailedRun(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "site")
	writeSite(t, src, "https://cdn.invalid")

	// A mirror that already exists for this second makes the run fail.
	for _, offset := range []time.Duration{0, time.Second, 2 * time.Second} {
		mirror := src + "_localized_" + time.Now().Add(offset).Format("20060102_150405")
		if err := os.MkdirAll(mirror, 0o750); err != nil {
			t.Fatal(err)
		}
	}

	stdout, _, err := executeRoot(t, "run", src)
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("expected errRunFailed, got %v", err)
	}
	if !strings.Contains(stdout, "Failed - ") {
		t.Errorf("expected failed status in report, got:\n%s", stdout)
	}
}

// TestBuildConfig_Precedence tests flag > environment > file.
func TestBuildConfig_Precedence(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "localizer.yaml")
	content := "proxy: \"127.0.0.1:1111\"\nuserAgent: file-agent\nhistory: true\nreport: markdown\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("file values", func(t *testing.T) {
		t.Setenv(config.ProxyEnv, "")

		cmd := NewRunCmd()
		if err := cmd.ParseFlags([]string{"-c", cfgPath}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{root})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Proxy != "127.0.0.1:1111" || cfg.UserAgent != "file-agent" || !cfg.RecordHistory {
			t.Errorf("expected file values, got %+v", cfg)
		}
		if cfg.ReportFormat != config.ReportMarkdown {
			t.Errorf("expected markdown, got %s", cfg.ReportFormat)
		}
	})

	t.Run("environment beats file", func(t *testing.T) {
		t.Setenv(config.ProxyEnv, "127.0.0.1:2222")

		cmd := NewRunCmd()
		if err := cmd.ParseFlags([]string{"-c", cfgPath}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{root})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Proxy != "127.0.0.1:2222" {
			t.Errorf("expected environment proxy, got %s", cfg.Proxy)
		}
	})

	t.Run("flags beat everything", func(t *testing.T) {
		t.Setenv(config.ProxyEnv, "127.0.0.1:2222")

		cmd := NewRunCmd()
		if err := cmd.ParseFlags([]string{"-c", cfgPath, "-x", "127.0.0.1:3333", "--user-agent", "flag-agent", "--json"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{root})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Proxy != "127.0.0.1:3333" || cfg.UserAgent != "flag-agent" {
			t.Errorf("expected flag values, got %+v", cfg)
		}
		if cfg.ReportFormat != config.ReportJSON {
			t.Errorf("expected json, got %s", cfg.ReportFormat)
		}
	})
}

// TestExecute_Batch tests that several sources are localized independently.
func TestExecute_Batch(t *testing.T) {
	t.Parallel()

	cdn := newCDN(t)
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	c := filepath.Join(root, "c")
	writeSite(t, a, cdn.URL)
	writeSite(t, b, cdn.URL)
	writeSite(t, c, cdn.URL)

	cfg := config.NewConfig()
	client, err := newClient(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	var progress int
	logger := log.NewSecureLogger(io.Discard, false)
	reports := execute(context.Background(), cfg, client, []string{a, filepath.Join(root, "absent"), b}, 2, logger, nil)
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	if reports[0].Status != model.StatusSuccess || reports[2].Status != model.StatusSuccess {
		t.Errorf("expected successful runs, got %s and %s", reports[0].Status, reports[2].Status)
	}
	if reports[1].Status != model.StatusFailed {
		t.Errorf("expected missing source to fail, got %s", reports[1].Status)
	}

	single := execute(context.Background(), cfg, client, []string{c}, 1, logger, func(model.Progress) { progress++ })
	if len(single) != 1 {
		t.Fatalf("expected 1 report, got %d", len(single))
	}
	if progress != 3 {
		t.Errorf("expected 3 progress callbacks, got %d", progress)
	}
}

// TestOutputReports tests report format selection and file output.
func TestOutputReports(t *testing.T) {
	t.Parallel()

	r := model.NewRunReport("run-1", "/src", "/src_localized_20240506_070809", time.Now())
	r.Finish(model.StatusSuccess, nil, time.Now())

	var buf bytes.Buffer
	cfg := config.NewConfig()
	if err := outputReports(&buf, cfg, []*model.RunReport{r, r}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(buf.String(), "LOCALIZER REPORT") != 2 {
		t.Errorf("expected two text reports, got:\n%s", buf.String())
	}

	cfg.ReportFormat = "yaml"
	if err := outputReports(&buf, cfg, []*model.RunReport{r}); !errors.Is(err, config.ErrInvalidReportFormat) {
		t.Errorf("expected ErrInvalidReportFormat, got %v", err)
	}
}

// TestSaveHistory tests recording reports in the history database.
func TestSaveHistory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := model.NewRunReport("run-1", "/src", "/out", time.Now())
	r.Finish(model.StatusSuccess, nil, time.Now())

	if err := saveHistory(context.Background(), dir, []*model.RunReport{r}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	db, err := history.Open(dir, history.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	runs, err := db.ListRuns(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Errorf("unexpected runs %+v", runs)
	}
}
