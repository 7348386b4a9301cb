package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nimbus-data/nimbus-ingest/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage nimbus-ingest configuration",
		Long: `Configuration management commands for nimbus-ingest.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for nimbus-ingest.

The configuration is saved as INI to ` + config.DefaultConfigPath() + `
and the auth token to a separate file readable only by you.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := cfgFile
			if configPath == "" {
				configPath = config.DefaultConfigPath()
			}

			if !force {
				if _, err := os.Stat(configPath); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at: %s\n", configPath)
					fmt.Fprintln(cmd.OutOrStdout(), "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			return runConfigInit(cmd.InOrStdin(), cmd.OutOrStdout(), configPath, config.DefaultTokenPath())
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// runConfigInit prompts on in and writes the config and token files.
func runConfigInit(in io.Reader, out io.Writer, configPath, tokenPath string) error {
	logger := GetLogger()
	reader := bufio.NewReader(in)
	cfg := config.NewConfig()

	prompt := func(label, def string) string {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			return def
		}
		return input
	}

	fmt.Fprintln(out, "Nimbus Ingest Configuration Setup")
	fmt.Fprintln(out, "=================================")
	fmt.Fprintln(out)

	cfg.APIBaseURL = prompt("API Base URL", cfg.APIBaseURL)
	token := prompt("Auth token (leave empty to set later)", "")
	cfg.UserID = prompt("User ID", "")
	cfg.Username = prompt("Username", "")

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Selection Policy (press Enter for defaults)")
	fmt.Fprintln(out, "-------------------------------------------")

	if v, err := strconv.Atoi(prompt("Max files", strconv.Itoa(cfg.MaxFiles))); err == nil && v > 0 {
		cfg.MaxFiles = v
		cfg.AllowMultiple = v > 1
	}
	if size, err := config.ParseSize(prompt("Max file size", config.FormatSize(cfg.MaxSizeBytes))); err == nil && size > 0 {
		cfg.MaxSizeBytes = size
	} else if err != nil {
		fmt.Fprintf(out, "  %v, keeping %s\n", err, config.FormatSize(cfg.MaxSizeBytes))
	}
	accept := prompt("Accepted types", strings.Join(cfg.Accept, ","))
	cfg.Accept = strings.Split(accept, ",")
	for i := range cfg.Accept {
		cfg.Accept[i] = strings.TrimSpace(cfg.Accept[i])
	}

	fmt.Fprintln(out)
	cfg.Storage.Provider = prompt("Storage provider (remote, s3, azure)", cfg.Storage.Provider)
	switch cfg.Storage.Provider {
	case config.ProviderS3:
		cfg.Storage.Endpoint = prompt("S3 endpoint (empty for AWS)", cfg.Storage.Endpoint)
		cfg.Storage.Region = prompt("Region", cfg.Storage.Region)
		cfg.Storage.Bucket = prompt("Bucket", cfg.Storage.Bucket)
		fmt.Fprintln(out, "  Set MINIO_ACCESS_KEY and MINIO_SECRET_KEY in the environment or .env")
	case config.ProviderAzure:
		cfg.Storage.AzureAccountURL = prompt("Account URL", cfg.Storage.AzureAccountURL)
		cfg.Storage.Bucket = prompt("Container", cfg.Storage.Bucket)
		fmt.Fprintln(out, "  Set AZURE_SAS_TOKEN in the environment or .env")
	}

	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	logger.Info().Str("path", configPath).Msg("Configuration saved")

	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Configuration saved to: %s\n", configPath)

	if token != "" && tokenPath != "" {
		if err := config.WriteTokenFile(tokenPath, token); err != nil {
			return fmt.Errorf("failed to save auth token: %w", err)
		}
		logger.Info().Str("path", tokenPath).Msg("Auth token saved")
		fmt.Fprintf(out, "✓ Auth token saved to: %s\n", tokenPath)
	} else {
		fmt.Fprintln(out, "No auth token saved. Set NIMBUS_AUTH_TOKEN or pass --token.")
	}
	return nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (` + config.DefaultConfigPath() + `)
  2. .env in the working directory
  3. Environment variables (NIMBUS_API_URL, NIMBUS_AUTH_TOKEN, ...)
  4. Command-line flags (--api-url, --token, --token-file)

Priority: flags > environment > .env > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(GetContext(), provider)
			if err != nil {
				return err
			}
			configPath := cfgFile
			if configPath == "" {
				configPath = config.DefaultConfigPath()
			}
			showConfig(cmd.OutOrStdout(), cfg, configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Storage provider override")
	return cmd
}

func showConfig(out io.Writer, cfg *config.Config, configPath string) {
	fmt.Fprintln(out, "Current Configuration")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "API Settings:")
	fmt.Fprintf(out, "  API Base URL: %s\n", cfg.APIBaseURL)
	fmt.Fprintf(out, "  Auth Token:   %s\n", secretState(cfg.AuthToken))
	fmt.Fprintf(out, "  User:         %s (%s)\n", orNone(cfg.Username), orNone(cfg.UserID))
	fmt.Fprintf(out, "  Max Retries:  %d\n", cfg.MaxRetries)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Selection Policy:")
	fmt.Fprintf(out, "  Accept:    %s\n", strings.Join(cfg.Accept, ", "))
	fmt.Fprintf(out, "  Max Files: %d\n", cfg.MaxFiles)
	fmt.Fprintf(out, "  Max Size:  %s\n", config.FormatSize(cfg.MaxSizeBytes))
	fmt.Fprintf(out, "  Multiple:  %t\n", cfg.AllowMultiple)
	fmt.Fprintf(out, "  Reselect:  %t\n", cfg.ReselectOnFull)
	fmt.Fprintf(out, "  Keys:      %s, %s\n", cfg.Orientation, cfg.Direction)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Storage:")
	fmt.Fprintf(out, "  Provider: %s\n", cfg.Storage.Provider)
	switch cfg.Storage.Provider {
	case config.ProviderS3:
		fmt.Fprintf(out, "  Endpoint: %s\n", orNone(cfg.Storage.Endpoint))
		fmt.Fprintf(out, "  Region:   %s\n", cfg.Storage.Region)
		fmt.Fprintf(out, "  Bucket:   %s\n", cfg.Storage.Bucket)
		fmt.Fprintf(out, "  Keys:     %s\n", secretState(cfg.Storage.SecretKey))
	case config.ProviderAzure:
		fmt.Fprintf(out, "  Account:   %s\n", cfg.Storage.AzureAccountURL)
		fmt.Fprintf(out, "  Container: %s\n", cfg.Storage.Bucket)
		fmt.Fprintf(out, "  SAS Token: %s\n", secretState(cfg.Storage.AzureSASToken))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Proxy Settings:")
	fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
		fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Configuration file: %s\n", configPath)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "  (file does not exist - using defaults)")
	}
}

// secretState never prints any part of a secret.
func secretState(s string) string {
	if s == "" {
		return "<not set>"
	}
	return fmt.Sprintf("<set (%d chars)>", len(s))
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			configPath := cfgFile
			if configPath == "" {
				configPath = config.DefaultConfigPath()
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n\n", configPath)

			if info, err := os.Stat(configPath); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: nimbus-ingest config init")
			}
			return nil
		},
	}
}
