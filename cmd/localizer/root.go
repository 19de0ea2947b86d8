package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for localizer.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "localizer",
		Short: "Make an HTML site render without network access",
		Long: `localizer walks an HTML site tree and downloads every remote stylesheet
and script it references, together with the fonts and images those
stylesheets use. The references are rewritten to the local copies and the
result is written to a sibling directory named
<source>_localized_<YYYYMMDD_HHMMSS>. The source tree is never modified.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.AddCommand(
		NewRunCmd(),
		NewHistoryCmd(),
		NewInitCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command and exits non-zero on error. A failed
// localization has already logged its terminal line, so only the exit
// status reports it.
func Execute() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, errRunFailed) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
