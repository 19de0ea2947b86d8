package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/localizer/internal/config"
	"github.com/nao1215/localizer/internal/history"
	"github.com/nao1215/localizer/internal/model"
	"github.com/nao1215/localizer/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [source-dir]",
		Short: "List recorded localization runs",
		Long: `History lists runs recorded with "localizer run --history".

Runs are stored in $XDG_DATA_HOME/localizer/localizer.db, newest first.
Give a source directory to list only the runs over that tree, or --id to
print the full report of one run.

Examples:
  # List every recorded run
  localizer history

  # List runs over one tree
  localizer history ./site

  # Show one run as Markdown
  localizer history --id 3f2a... --markdown

  # Find where a localized file came from
  localizer history --hash 1a2b3c4d`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("id", "i", "",
		"Print the full report of the run with this ID")
	cmd.Flags().String("hash", "",
		"List stored assets with this content fingerprint")
	cmd.Flags().BoolP(config.FlagJSON, "j", false,
		"Print the report in JSON format (with --id)")
	cmd.Flags().BoolP(config.FlagMarkdown, "m", false,
		"Print the report in Markdown format (with --id)")
	cmd.MarkFlagsMutuallyExclusive(config.FlagJSON, config.FlagMarkdown)
	cmd.MarkFlagsMutuallyExclusive("id", "hash")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	id, err := cmd.Flags().GetString("id")
	if err != nil {
		return err
	}
	hash, err := cmd.Flags().GetString("hash")
	if err != nil {
		return err
	}

	format := config.ReportText
	if v, _ := cmd.Flags().GetBool(config.FlagJSON); v { //nolint:errcheck // flag is defined above
		format = config.ReportJSON
	}
	if v, _ := cmd.Flags().GetBool(config.FlagMarkdown); v { //nolint:errcheck // flag is defined above
		format = config.ReportMarkdown
	}

	db, err := history.Open(config.XDGDataDir(), history.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case id != "":
		return showRun(ctx, out, db, id, format)
	case hash != "":
		return listAssets(ctx, out, db, hash)
	default:
		source := ""
		if len(args) == 1 {
			if source, err = filepath.Abs(args[0]); err != nil {
				return fmt.Errorf("invalid source directory: %w", err)
			}
		}
		return listRuns(ctx, out, db, source)
	}
}

// listRuns prints recorded runs, newest first.
func listRuns(ctx context.Context, out io.Writer, db *history.DB, source string) error {
	runs, err := db.ListRuns(ctx, source)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		if source != "" {
			fmt.Fprintf(out, "No recorded runs for %s\n", source)
		} else {
			fmt.Fprintln(out, "No recorded runs")
		}
		fmt.Fprintln(out, "\nUse 'localizer run --history <dir>' to record a run.")
		return nil
	}

	fmt.Fprintf(out, "Recorded runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %-8s  %s\n", "ID", "Started", "Status", "Summary", "Source")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))

	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %-8s  %s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Status,
			formatRunSummary(r),
			r.SourceDir,
		)
	}

	fmt.Fprintln(out, "\nUse 'localizer history --id <id>' to show a full report.")
	return nil
}

// formatRunSummary condenses the counters of a run: H html rewritten,
// A assets stored, F failures.
func formatRunSummary(r history.RunSummary) string {
	return fmt.Sprintf("H:%d A:%d F:%d", r.DocumentsRewritten, r.Assets, r.Failures)
}

// showRun prints the stored report of one run.
func showRun(ctx context.Context, out io.Writer, db *history.DB, id string, format config.ReportFormat) error {
	r, err := db.GetRun(ctx, id)
	if errors.Is(err, history.ErrRunNotFound) {
		return fmt.Errorf("no recorded run with ID %s", id)
	}
	if err != nil {
		return err
	}

	writer, err := report.NewWriter(format, out, getVersion())
	if err != nil {
		return err
	}
	_, err = writer.Write(r)
	return err
}

// listAssets prints every stored asset with the given fingerprint.
func listAssets(ctx context.Context, out io.Writer, db *history.DB, hash string) error {
	assets, err := db.FindAssetsByHash(ctx, hash)
	if err != nil {
		return err
	}
	if len(assets) == 0 {
		fmt.Fprintf(out, "No stored asset with hash %s\n", hash)
		return nil
	}

	fmt.Fprintf(out, "Assets with hash %s (%d):\n\n", hash, len(assets))
	for _, a := range assets {
		state := "stored"
		if a.Reused {
			state = "reused"
		}
		fmt.Fprintf(out, "  %-6s  %s (%s)\n", categoryLabel(a), a.Filename, state)
		fmt.Fprintf(out, "          from %s\n", a.Origin)
	}
	return nil
}

func categoryLabel(a model.Asset) string {
	if a.CategoryName != "" {
		return a.CategoryName
	}
	return a.Category.String()
}
