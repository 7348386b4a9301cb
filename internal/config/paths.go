package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// configDirName is the directory under the user config root.
const configDirName = "nimbus-ingest"

// configDir returns the platform-appropriate config directory.
//   - Windows: %APPDATA%\Nimbus\Ingest
//   - Unix: ~/.config/nimbus-ingest
func configDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Nimbus", "Ingest")
		}
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			return filepath.Join(userProfile, "AppData", "Roaming", "Nimbus", "Ingest")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", configDirName)
	}
	return ""
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	dir := configDir()
	if dir == "" {
		return "config.ini"
	}
	return filepath.Join(dir, "config.ini")
}

// DefaultTokenPath returns where 'config init' stores the auth token.
func DefaultTokenPath() string {
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "token")
}

// LogDirectory returns the directory for rotated log files.
//   - Windows: %LOCALAPPDATA%\Nimbus\Ingest\logs
//   - Unix: ~/.config/nimbus-ingest/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "nimbus-ingest-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "Nimbus", "Ingest", "logs")
	}

	userConfig, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "nimbus-ingest-logs")
		}
		return filepath.Join(homeDir, ".config", configDirName, "logs")
	}
	return filepath.Join(userConfig, configDirName, "logs")
}

// EnsureLogDirectory creates the log directory with owner-only permissions.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

// ReadTokenFile reads an auth token from a file. Whitespace is trimmed.
// Warns on stderr if the file is readable by group or others.
func ReadTokenFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat token file: %w", err)
	}

	if mode := info.Mode().Perm(); runtime.GOOS != "windows" && mode&0077 != 0 {
		fmt.Fprintf(os.Stderr, "Warning: Token file %s has insecure permissions %04o. Consider using 'chmod 600 %s'\n", path, mode, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file is empty")
	}
	return token, nil
}

// WriteTokenFile writes an auth token with 0600 permissions.
func WriteTokenFile(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("cannot write empty token")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
