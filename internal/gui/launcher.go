package gui

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nimbus-data/nimbus-ingest/internal/config"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
)

// Run launches the GUI after checking a display is available.
func Run(cfg *config.Config, logger *logging.Logger) error {
	if runtime.GOOS == "linux" {
		if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			return fmt.Errorf("GUI mode requires a display. No display detected.\n" +
				"DISPLAY and WAYLAND_DISPLAY are not set.\n" +
				"Use 'nimbus-ingest ingest <files>' for CLI mode")
		}
	}
	return LaunchGUI(cfg, logger)
}
