package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/localizer/internal/config"
	"github.com/nao1215/localizer/internal/history"
	"github.com/nao1215/localizer/internal/log"
	"github.com/nao1215/localizer/internal/model"
	"github.com/nao1215/localizer/internal/pipeline"
	"github.com/nao1215/localizer/internal/report"
	"github.com/nao1215/localizer/internal/transport"
	"github.com/nao1215/localizer/internal/tui"
)

// errRunFailed is returned when at least one run ended with StatusFailed.
var errRunFailed = errors.New("localization failed")

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <source-dir>...",
		Short: "Localize the remote CSS and JavaScript of an HTML site",
		Long: `Run copies each source tree into <source>_localized_<YYYYMMDD_HHMMSS>.

Every HTML file whose <link rel="stylesheet"> or <script src> points at an
absolute URL is rewritten to use a local copy stored under static/. Fonts
and images referenced by url(...) inside those stylesheets are downloaded
too. Other files are copied unchanged. References that cannot be fetched
are left as they are and listed in the report.

Examples:
  # Localize a site
  localizer run ./site

  # Download through a SOCKS5 proxy
  localizer run --proxy socks5://127.0.0.1:1080 ./site

  # Download through an embedded Tor daemon
  localizer run --tor ./site

  # Watch progress interactively (press c to cancel)
  localizer run --tui ./site

  # Localize several trees and write a Markdown report
  localizer run --markdown -o report.md ./site-a ./site-b

  # Record the run and check localized images for EXIF metadata
  localizer run --history --inspect-images ./site`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRunCmd,
	}

	// Network flags
	cmd.Flags().StringP(config.FlagProxy, "x", "",
		"Proxy for downloads (host:port or http://, socks5:// URL)")
	cmd.Flags().Bool(config.FlagTor, false,
		"Download through an embedded Tor daemon")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	cmd.Flags().String(config.FlagUserAgent, config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.MarkFlagsMutuallyExclusive(config.FlagProxy, config.FlagTor)

	// Feature flags
	cmd.Flags().Bool(config.FlagHistory, false,
		"Record the run in the history database")
	cmd.Flags().Bool(config.FlagInspectImages, false,
		"Scan localized images for EXIF metadata")
	cmd.Flags().Bool("tui", false,
		"Show an interactive progress view")
	cmd.Flags().IntP("concurrency", "n", pipeline.DefaultConcurrency,
		"Number of source trees localized at the same time (above 1, downloads of different trees overlap)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .localizer in current or home directory)")

	// Report flags
	cmd.Flags().BoolP(config.FlagJSON, "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP(config.FlagMarkdown, "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.MarkFlagsMutuallyExclusive(config.FlagJSON, config.FlagMarkdown)

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	for _, source := range args {
		c := *cfg
		c.SourceDir = source
		if err := c.Validate(); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
	}

	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports, err := runLocalize(ctx, cmd, cfg, args, concurrency)
	if err != nil {
		return err
	}

	if err := outputReports(cmd.OutOrStdout(), cfg, reports); err != nil {
		return err
	}

	for _, r := range reports {
		if r.Status == model.StatusFailed {
			return errRunFailed
		}
	}
	return nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the configuration file,
// the environment and the command flags, in increasing precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.SourceDir = args[0]
	cfg.Verbose = getVerboseFlag(cmd)

	var err error

	if cfg.Proxy, err = cmd.Flags().GetString(config.FlagProxy); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = cmd.Flags().GetBool(config.FlagTor); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = cmd.Flags().GetString(config.FlagUserAgent); err != nil {
		return nil, err
	}
	if cfg.RecordHistory, err = cmd.Flags().GetBool(config.FlagHistory); err != nil {
		return nil, err
	}
	if cfg.InspectImages, err = cmd.Flags().GetBool(config.FlagInspectImages); err != nil {
		return nil, err
	}
	if cfg.Interactive, err = cmd.Flags().GetBool("tui"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}

	jsonReport, err := cmd.Flags().GetBool(config.FlagJSON)
	if err != nil {
		return nil, err
	}
	markdownReport, err := cmd.Flags().GetBool(config.FlagMarkdown)
	if err != nil {
		return nil, err
	}
	switch {
	case jsonReport:
		cfg.ReportFormat = config.ReportJSON
	case markdownReport:
		cfg.ReportFormat = config.ReportMarkdown
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.Load(cmd.Flags().Changed); err != nil {
		return nil, err
	}

	return cfg, nil
}

// runLocalize sets up the network and runs every source tree.
func runLocalize(ctx context.Context, cmd *cobra.Command, cfg *config.Config, sources []string, concurrency int) ([]*model.RunReport, error) {
	stderr := cmd.ErrOrStderr()

	proxyURL, err := cfg.ProxyURL()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if cfg.UseTor {
		embedded, err := startEmbeddedTor(ctx, cfg, stderr)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := embedded.Stop(); err != nil {
				fmt.Fprintf(stderr, "failed to stop embedded Tor: %v\n", err)
			}
		}()
		if proxyURL, err = embedded.ProxyURL(); err != nil {
			return nil, err
		}
	} else if proxyURL != nil && transport.IsSOCKS(proxyURL) {
		if err := transport.CheckSOCKS5(ctx, proxyURL.Host).Err(); err != nil {
			return nil, fmt.Errorf("proxy check failed for %s: %w", proxyURL.Redacted(), err)
		}
	}

	client, err := newClient(cfg, proxyURL)
	if err != nil {
		return nil, err
	}

	var reports []*model.RunReport
	if cfg.Interactive {
		reports, err = runInteractive(ctx, cfg, client, sources, concurrency)
		if err != nil {
			return nil, err
		}
	} else {
		logger := log.NewSecureLogger(stderr, cfg.Verbose)
		reports = execute(ctx, cfg, client, sources, concurrency, logger, nil)
	}

	if cfg.RecordHistory {
		if err := saveHistory(context.WithoutCancel(ctx), cfg.DBDir, reports); err != nil {
			fmt.Fprintf(stderr, "failed to record history: %v\n", err)
		}
	}
	return reports, nil
}

// newClient creates the HTTP client shared by every download.
func newClient(cfg *config.Config, proxyURL *url.URL) (*http.Client, error) {
	client, err := transport.NewHTTPClient(transport.ClientOptions{
		Proxy:        proxyURL,
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, nil
}

// execute runs one source with pipeline.Run or several with a BatchRunner.
func execute(ctx context.Context, cfg *config.Config, client *http.Client, sources []string, concurrency int, logger *slog.Logger, progress func(model.Progress)) []*model.RunReport {
	opts := []pipeline.RunOption{pipeline.WithRunLogger(logger)}
	if progress != nil {
		opts = append(opts, pipeline.WithProgress(progress))
	}

	if len(sources) == 1 {
		c := *cfg
		c.SourceDir = sources[0]
		return []*model.RunReport{pipeline.Run(ctx, &c, client, opts...)}
	}

	b := pipeline.NewBatchRunner(cfg, client,
		pipeline.WithBatchLogger(logger),
		pipeline.WithConcurrency(concurrency),
		pipeline.WithRunOptions(opts...),
	)
	return b.RunAll(ctx, sources)
}

// runInteractive runs the localization on a worker goroutine while the
// bubbletea program owns the terminal. The view can cancel the worker;
// the worker reaches the view only through program.Send.
func runInteractive(ctx context.Context, cfg *config.Config, client *http.Client, sources []string, concurrency int) ([]*model.RunReport, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	handler := tui.NewLogHandler(level)
	logger := tui.NewLogger(handler)

	outputs := make([]string, len(sources))
	for i, source := range sources {
		outputs[i] = filepath.Clean(source) + pipeline.MirrorSuffix + "<timestamp>"
	}
	view := tui.New(strings.Join(sources, ", "), strings.Join(outputs, ", "), cancel)
	program := tui.NewProgram(view, handler, tea.WithAltScreen(), tea.WithContext(ctx))

	var reports []*model.RunReport
	var g errgroup.Group
	g.Go(func() error {
		reports = execute(runCtx, cfg, client, sources, concurrency, logger, tui.ProgressFunc(program))
		program.Send(tui.DoneMsg{Reports: reports})
		return nil
	})
	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("interactive view failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// startEmbeddedTor starts an embedded Tor daemon using tornago.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, out io.Writer) (*transport.EmbeddedTor, error) {
	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embedded := transport.NewEmbeddedTor(
		transport.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embedded.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	if status := transport.CheckSOCKS5(ctx, embedded.SocksAddr()); status.Err() != nil {
		_ = embedded.Stop() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
	}

	fmt.Fprintf(out, "SOCKS proxy: %s\n\n", embedded.SocksAddr())
	return embedded, nil
}

// outputReports writes every report in the configured format to the
// report file, or to w when no file was given.
func outputReports(w io.Writer, cfg *config.Config, reports []*model.RunReport) error {
	output := w
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	writer, err := report.NewWriter(cfg.ReportFormat, output, getVersion())
	if err != nil {
		return err
	}
	for _, r := range reports {
		if _, err := writer.Write(r); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

// saveHistory records every report in the history database.
func saveHistory(ctx context.Context, dbDir string, reports []*model.RunReport) error {
	db, err := history.Open(dbDir, history.DefaultOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	for _, r := range reports {
		if err := db.SaveRun(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
