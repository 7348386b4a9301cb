// Nimbus Ingest - stage local files and ingest them into Nimbus datasets.
//
//   - No args + display available → GUI mode
//   - No args + no display → CLI help
//   - --gui → GUI mode
//   - --cli → CLI mode (force)
//   - CLI subcommands/flags → CLI mode
package main

import (
	"os"
	"runtime"
	"slices"

	"github.com/nimbus-data/nimbus-ingest/internal/cli"
)

func main() {
	os.Args = resolveArgs(os.Args, hasDisplay())
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveArgs maps the mode flags onto subcommands. GUI mode becomes the
// 'gui' subcommand so both modes share config loading and logging.
func resolveArgs(args []string, display bool) []string {
	out := slices.DeleteFunc(slices.Clone(args), func(a string) bool {
		return a == "--cli" || a == "--gui"
	})

	switch {
	case slices.Contains(args, "--cli"):
		return out
	case slices.Contains(args, "--gui"):
		return append(out, "gui")
	case len(args) == 1 && display:
		return append(out, "gui")
	default:
		return out
	}
}

// hasDisplay reports whether a window can be opened.
func hasDisplay() bool {
	if runtime.GOOS == "linux" {
		return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
	}
	return true
}
