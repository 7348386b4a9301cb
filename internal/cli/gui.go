package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nimbus-data/nimbus-ingest/internal/config"
	"github.com/nimbus-data/nimbus-ingest/internal/gui"
)

func newGUICmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "gui",
		Short: "Open the drop/browse window",
		Long: `Open the desktop window. Drop files onto it or press Browse.

Keyboard:
  Up/Down     move between staged files
  Delete      remove the focused file
  Enter       open the file picker when no file is focused
  Escape      return focus to the drop area`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(GetContext(), provider)
			if err != nil {
				return err
			}
			log := GetLogger()
			if logFile == "" {
				// the window has no console, keep a log next to the config
				if err := config.EnsureLogDirectory(); err != nil {
					log.Warnf("Cannot create log directory: %v", err)
				} else {
					path := filepath.Join(config.LogDirectory(), "gui.log")
					log.EnableFile(path)
					log.Infof("Logging to %s", path)
				}
			}
			return gui.Run(cfg, log)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Storage provider: remote, s3 or azure")
	return cmd
}
