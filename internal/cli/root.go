// Package cli provides the command-line interface for nimbus-ingest.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nimbus-data/nimbus-ingest/internal/config"
	inthttp "github.com/nimbus-data/nimbus-ingest/internal/http"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/version"
)

var (
	// Global flags
	cfgFile    string
	authToken  string
	tokenFile  string // Path to file containing the auth token
	apiBaseURL string
	logFile    string
	verbose    bool
	debug      bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command for CLI mode.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nimbus-ingest",
		Short: "Nimbus Ingest - upload tabular files into Nimbus datasets",
		Long: `Nimbus Ingest ` + version.Version + ` - Built: ` + version.BuildTime + `
Stages local files, checks them against the selection policy and runs
each accepted file through slot, transfer, extraction and registration.

CLI Mode:
  nimbus-ingest ingest data/*.csv

GUI Mode:
  nimbus-ingest gui   (or no arguments when a display is available)`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				logging.SetGlobalLevel(zerolog.InfoLevel)
			}
			if logFile != "" {
				if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: cannot create log directory: %v\n", err)
					return
				}
				logger.EnableFile(logFile)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Nimbus auth token (overrides all other sources)")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "Path to file containing the auth token")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "Nimbus API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this rotating file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\n\nReceived signal %v, cancelling uploads...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newGUICmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadConfig loads the config file, environment and global flags.
// provider overrides the storage provider when set.
func loadConfig(ctx context.Context, provider string) (*config.Config, error) {
	cfg, err := config.Load(ctx, cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.MergeWithFlags(apiBaseURL, authToken, tokenFile, provider); err != nil {
		return nil, fmt.Errorf("failed to apply flags: %w", err)
	}
	if inthttp.NeedsProxyPassword(cfg) {
		password, err := promptProxyPassword(cfg)
		if err != nil {
			return nil, err
		}
		cfg.ProxyPassword = password
	}
	return cfg, nil
}

// promptProxyPassword reads the proxy password without echo. Proxy
// passwords are never stored in the config file.
func promptProxyPassword(cfg *config.Config) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("proxy user %q needs a password: set NIMBUS_PROXY_PASSWORD", cfg.ProxyUser)
	}
	fmt.Fprintf(os.Stderr, "Proxy password for %s@%s: ", cfg.ProxyUser, cfg.ProxyHost)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read proxy password: %w", err)
	}
	return string(password), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "nimbus-ingest %s (built %s)\n", version.Version, version.BuildTime)
}
