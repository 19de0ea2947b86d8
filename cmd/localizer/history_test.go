package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/localizer/internal/config"
	"github.com/nao1215/localizer/internal/history"
	"github.com/nao1215/localizer/internal/model"
)

func setupHistory(t *testing.T) *history.DB {
	t.Helper()

	db, err := history.Open(t.TempDir(), history.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	started := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	for i, source := range []string{"/www/a", "/www/b"} {
		r := model.NewRunReport("run-"+string(rune('1'+i)), source, source+"_localized_20240506_070809", started.Add(time.Duration(i)*time.Hour))
		r.DocumentsRewritten = 3
		r.AddAsset(model.Asset{Category: model.CategoryJS, Filename: "app.js", Origin: "https://cdn.example.com/app.js", Hash: "abcdef01", Size: 10})
		r.Finish(model.StatusSuccess, nil, r.StartedAt.Add(time.Second))
		if err := db.SaveRun(context.Background(), r); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}
	return db
}

// TestNewHistoryCmd tests the history command flags.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	for _, name := range []string{"id", "hash", config.FlagJSON, config.FlagMarkdown} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
	if err := cmd.Args(cmd, []string{"a", "b"}); err == nil {
		t.Error("expected at most one source argument")
	}
}

// TestListRuns tests the run listing.
func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupHistory(t)

	t.Run("all runs newest first", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		if err := listRuns(context.Background(), &out, db, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s := out.String()
		if !strings.Contains(s, "Recorded runs (2)") {
			t.Errorf("unexpected output:\n%s", s)
		}
		if strings.Index(s, "run-2") > strings.Index(s, "run-1") {
			t.Errorf("expected newest run first:\n%s", s)
		}
		if !strings.Contains(s, "H:3 A:1 F:0") {
			t.Errorf("expected run summary:\n%s", s)
		}
	})

	t.Run("filtered by source", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		if err := listRuns(context.Background(), &out, db, "/www/a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(out.String(), "run-2") {
			t.Errorf("expected only /www/a runs:\n%s", out.String())
		}
	})

	t.Run("no runs", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		if err := listRuns(context.Background(), &out, db, "/www/none"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "No recorded runs for /www/none") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})
}

// TestShowRun tests printing a stored report.
func TestShowRun(t *testing.T) {
	t.Parallel()

	db := setupHistory(t)

	var out bytes.Buffer
	if err := showRun(context.Background(), &out, db, "run-1", config.ReportMarkdown); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "# Localizer Report") || !strings.Contains(out.String(), "/www/a") {
		t.Errorf("unexpected report:\n%s", out.String())
	}

	err := showRun(context.Background(), &out, db, "missing", config.ReportText)
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("expected not found error, got %v", err)
	}
	if errors.Is(err, history.ErrRunNotFound) {
		t.Error("expected a user-facing error")
	}
}

// TestListAssets tests lookup by content fingerprint.
func TestListAssets(t *testing.T) {
	t.Parallel()

	db := setupHistory(t)

	var out bytes.Buffer
	if err := listAssets(context.Background(), &out, db, "abcdef01"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := out.String()
	if !strings.Contains(s, "(2)") || !strings.Contains(s, "js      app.js (stored)") {
		t.Errorf("unexpected output:\n%s", s)
	}

	out.Reset()
	if err := listAssets(context.Background(), &out, db, "00000000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No stored asset") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}
