package log

import (
	"context"
	"log/slog"
)

// LevelSuccess sits between INFO and WARN. It marks completed work the user
// cares about: a localized asset, a rewritten document, a finished run.
const LevelSuccess = slog.Level(2)

// LevelName returns the display name of a level, including SUCCESS.
func LevelName(level slog.Level) string {
	if level == LevelSuccess {
		return "SUCCESS"
	}
	return level.String()
}

// ReplaceLevelNames is a slog.HandlerOptions.ReplaceAttr function that
// renders LevelSuccess as "SUCCESS" instead of "INFO+2".
func ReplaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	a.Value = slog.StringValue(LevelName(level))
	return a
}

// Success logs msg at LevelSuccess.
func Success(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(ctx, LevelSuccess, msg, args...)
}
