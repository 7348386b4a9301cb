package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/ini.v1"
)

// INI sections
const (
	sectionNimbus  = "nimbus"
	sectionIngest  = "ingest"
	sectionStorage = "storage"
	sectionProxy   = "proxy"
)

// loadINI overlays values from an INI file onto c. Missing keys keep the
// current value.
func (c *Config) loadINI(path string) error {
	iniFile, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	nimbus := iniFile.Section(sectionNimbus)
	c.APIBaseURL = nimbus.Key("api_url").MustString(c.APIBaseURL)
	c.AuthToken = nimbus.Key("auth_token").MustString(c.AuthToken)
	c.UserID = nimbus.Key("user_id").MustString(c.UserID)
	c.Username = nimbus.Key("username").MustString(c.Username)
	c.MaxRetries = nimbus.Key("max_retries").MustInt(c.MaxRetries)

	ingest := iniFile.Section(sectionIngest)
	if ingest.HasKey("accept") {
		c.Accept = splitList(ingest.Key("accept").String())
	}
	c.MaxFiles = ingest.Key("max_files").MustInt(c.MaxFiles)
	if ingest.HasKey("max_size") {
		size, err := ParseSize(ingest.Key("max_size").String())
		if err != nil {
			return fmt.Errorf("[%s] max_size: %w", sectionIngest, err)
		}
		c.MaxSizeBytes = size
	}
	c.AllowMultiple = ingest.Key("multiple").MustBool(c.AllowMultiple)
	c.ReselectOnFull = ingest.Key("reselect").MustBool(c.ReselectOnFull)
	c.Orientation = ingest.Key("orientation").MustString(c.Orientation)
	c.Direction = ingest.Key("direction").MustString(c.Direction)

	storage := iniFile.Section(sectionStorage)
	c.Storage.Provider = storage.Key("provider").MustString(c.Storage.Provider)
	c.Storage.Endpoint = storage.Key("endpoint").MustString(c.Storage.Endpoint)
	c.Storage.AccessKey = storage.Key("access_key").MustString(c.Storage.AccessKey)
	c.Storage.SecretKey = storage.Key("secret_key").MustString(c.Storage.SecretKey)
	c.Storage.Region = storage.Key("region").MustString(c.Storage.Region)
	c.Storage.Bucket = storage.Key("bucket").MustString(c.Storage.Bucket)
	c.Storage.UsePathStyle = storage.Key("use_path_style").MustBool(c.Storage.UsePathStyle)
	c.Storage.PresignExpiry = storage.Key("presign_expiry").MustDuration(c.Storage.PresignExpiry)
	c.Storage.AzureAccountURL = storage.Key("azure_account_url").MustString(c.Storage.AzureAccountURL)
	c.Storage.AzureSASToken = storage.Key("azure_sas_token").MustString(c.Storage.AzureSASToken)

	proxy := iniFile.Section(sectionProxy)
	c.ProxyMode = proxy.Key("mode").MustString(c.ProxyMode)
	c.ProxyHost = proxy.Key("host").MustString(c.ProxyHost)
	c.ProxyPort = proxy.Key("port").MustInt(c.ProxyPort)
	c.ProxyUser = proxy.Key("user").MustString(c.ProxyUser)
	c.NoProxy = proxy.Key("no_proxy").MustString(c.NoProxy)
	c.ProxyWarmup = proxy.Key("warmup").MustBool(c.ProxyWarmup)

	return nil
}

// Save writes the configuration to an INI file. Creates parent directories
// if they don't exist. Secrets (auth token, storage keys, proxy password)
// are never written; keep them in the environment or a token file.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	nimbus, err := iniFile.NewSection(sectionNimbus)
	if err != nil {
		return fmt.Errorf("failed to create %s section: %w", sectionNimbus, err)
	}
	nimbus.Key("api_url").SetValue(cfg.APIBaseURL)
	nimbus.Key("user_id").SetValue(cfg.UserID)
	nimbus.Key("username").SetValue(cfg.Username)
	nimbus.Key("max_retries").SetValue(fmt.Sprintf("%d", cfg.MaxRetries))

	ingest, err := iniFile.NewSection(sectionIngest)
	if err != nil {
		return fmt.Errorf("failed to create %s section: %w", sectionIngest, err)
	}
	ingest.Key("accept").SetValue(strings.Join(cfg.Accept, ", "))
	ingest.Key("max_files").SetValue(fmt.Sprintf("%d", cfg.MaxFiles))
	ingest.Key("max_size").SetValue(FormatSize(cfg.MaxSizeBytes))
	ingest.Key("multiple").SetValue(fmt.Sprintf("%t", cfg.AllowMultiple))
	ingest.Key("reselect").SetValue(fmt.Sprintf("%t", cfg.ReselectOnFull))
	ingest.Key("orientation").SetValue(cfg.Orientation)
	ingest.Key("direction").SetValue(cfg.Direction)

	storage, err := iniFile.NewSection(sectionStorage)
	if err != nil {
		return fmt.Errorf("failed to create %s section: %w", sectionStorage, err)
	}
	storage.Key("provider").SetValue(cfg.Storage.Provider)
	storage.Key("endpoint").SetValue(cfg.Storage.Endpoint)
	storage.Key("region").SetValue(cfg.Storage.Region)
	storage.Key("bucket").SetValue(cfg.Storage.Bucket)
	storage.Key("use_path_style").SetValue(fmt.Sprintf("%t", cfg.Storage.UsePathStyle))
	storage.Key("presign_expiry").SetValue(cfg.Storage.PresignExpiry.String())
	storage.Key("azure_account_url").SetValue(cfg.Storage.AzureAccountURL)

	proxy, err := iniFile.NewSection(sectionProxy)
	if err != nil {
		return fmt.Errorf("failed to create %s section: %w", sectionProxy, err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(fmt.Sprintf("%d", cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)
	proxy.Key("warmup").SetValue(fmt.Sprintf("%t", cfg.ProxyWarmup))

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
