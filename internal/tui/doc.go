// Package tui implements the interactive view started by "localizer run --tui".
//
// The localization runs on its own goroutine. It talks to the view only
// through program.Send: LogHandler turns slog records into LogMsg values
// and ProgressFunc turns walker progress into ProgressMsg values. The
// view shows colour-coded log lines, the source and output paths and a
// processed-files counter.
//
// Keys:
//
//	c, esc   request cancellation
//	q        quit after the run has finished
//	ctrl+c   request cancellation and quit
package tui
