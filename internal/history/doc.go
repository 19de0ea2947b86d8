// Package history keeps a SQLite record of localization runs.
//
// Each run is stored as a row in the runs table together with its full
// JSON report, and every asset the content store wrote or reused is
// stored in the assets table. The database lives in the XDG data
// directory by default, so runs over different source trees share one
// history that the "history" command can list and show.
package history
