// Package config provides configuration management for nimbus-ingest.
//
// Values are layered, lowest to highest priority:
//  1. built-in defaults
//  2. the INI config file
//  3. a .env file in the working directory (never overrides the real environment)
//  4. environment variables
//  5. command-line flags (MergeWithFlags)
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/nimbus-data/nimbus-ingest/internal/constants"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
	"github.com/nimbus-data/nimbus-ingest/internal/navigation"
	"github.com/nimbus-data/nimbus-ingest/internal/policy"
)

// Storage providers
const (
	ProviderRemote = "remote" // slot URLs issued by the Nimbus API
	ProviderS3     = "s3"     // presigned locally against S3 or MinIO
	ProviderAzure  = "azure"  // SAS URLs against Azure Blob Storage
)

// Config represents the nimbus-ingest configuration
type Config struct {
	// Nimbus API
	APIBaseURL string
	AuthToken  string
	UserID     string
	Username   string

	// Selection policy
	Accept         []string
	MaxFiles       int
	MaxSizeBytes   int64
	AllowMultiple  bool
	ReselectOnFull bool

	// Keyboard navigation
	Orientation string // "horizontal" or "vertical"
	Direction   string // "ltr" or "rtl"

	// MaxRetries is passed to retryablehttp. Zero disables retries.
	MaxRetries int

	Storage StorageConfig

	// Proxy settings
	ProxyMode     string // "no-proxy", "ntlm", "basic", "system"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool
}

// StorageConfig selects and configures the upload slot issuer.
type StorageConfig struct {
	Provider      string
	Endpoint      string // S3/MinIO endpoint, e.g. http://localhost:9000
	AccessKey     string
	SecretKey     string
	Region        string
	Bucket        string // bucket (S3) or container (Azure)
	UsePathStyle  bool
	PresignExpiry time.Duration

	AzureAccountURL string // https://<account>.blob.core.windows.net
	AzureSASToken   string
}

// envOverrides holds environment values. Nil fields were not set.
type envOverrides struct {
	APIBaseURL *string `env:"NIMBUS_API_URL, noinit"`
	AuthToken  *string `env:"NIMBUS_AUTH_TOKEN, noinit"`
	UserID     *string `env:"NIMBUS_USER_ID, noinit"`
	Username   *string `env:"NIMBUS_USERNAME, noinit"`
	Accept     *string `env:"NIMBUS_ACCEPT, noinit"`
	MaxFiles   *int    `env:"NIMBUS_MAX_FILES, noinit"`
	MaxSize    *string `env:"NIMBUS_MAX_SIZE, noinit"`
	MaxRetries *int    `env:"NIMBUS_MAX_RETRIES, noinit"`

	Provider        *string `env:"NIMBUS_STORAGE_PROVIDER, noinit"`
	Endpoint        *string `env:"MINIO_ENDPOINT, noinit"`
	AccessKey       *string `env:"MINIO_ACCESS_KEY, noinit"`
	SecretKey       *string `env:"MINIO_SECRET_KEY, noinit"`
	Bucket          *string `env:"MINIO_BUCKET_NAME, noinit"`
	AzureAccountURL *string `env:"AZURE_ACCOUNT_URL, noinit"`
	AzureSASToken   *string `env:"AZURE_SAS_TOKEN, noinit"`

	ProxyMode     *string `env:"NIMBUS_PROXY_MODE, noinit"`
	ProxyHost     *string `env:"NIMBUS_PROXY_HOST, noinit"`
	ProxyPort     *int    `env:"NIMBUS_PROXY_PORT, noinit"`
	ProxyUser     *string `env:"NIMBUS_PROXY_USER, noinit"`
	ProxyPassword *string `env:"NIMBUS_PROXY_PASSWORD, noinit"`
	NoProxy       *string `env:"NIMBUS_NO_PROXY, noinit"`
}

// Validation errors
var (
	ErrMissingAPIURL     = errors.New("api_url is required")
	ErrInvalidMaxFiles   = errors.New("max_files must be at least 1")
	ErrInvalidMaxSize    = errors.New("max_size must be at least 1 byte")
	ErrInvalidMaxRetries = fmt.Errorf("max_retries must be between 0 and %d", constants.MaxMaxRetries)
)

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		APIBaseURL:   constants.DefaultAPIBaseURL,
		Accept:       []string{constants.DefaultAcceptedMIME, constants.DefaultAcceptedExt},
		MaxFiles:     constants.DefaultMaxFiles,
		MaxSizeBytes: constants.DefaultMaxSizeBytes,
		Orientation:  string(navigation.Vertical),
		Direction:    string(navigation.LTR),
		MaxRetries:   constants.DefaultMaxRetries,
		Storage: StorageConfig{
			Provider:      constants.DefaultStorageProvider,
			Region:        constants.DefaultRegion,
			Bucket:        constants.DefaultBucket,
			UsePathStyle:  true,
			PresignExpiry: constants.DefaultPresignExpiry,
		},
		ProxyMode: "no-proxy",
	}
}

// Load builds the configuration from defaults, the INI file at path, a
// .env file in the working directory and the environment. An empty path
// uses DefaultConfigPath. A missing file is not an error.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadINI(path); err != nil {
				return nil, err
			}
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(ctx, envconfig.OsLookuper()); err != nil {
		return nil, err
	}

	if cfg.AuthToken == "" {
		if tokenPath := DefaultTokenPath(); tokenPath != "" {
			if _, err := os.Stat(tokenPath); err == nil {
				token, err := ReadTokenFile(tokenPath)
				if err != nil {
					return nil, err
				}
				cfg.AuthToken = token
			}
		}
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are kept. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(ctx context.Context, lookuper envconfig.Lookuper) error {
	var env envOverrides
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	setString(&c.APIBaseURL, env.APIBaseURL)
	setString(&c.AuthToken, env.AuthToken)
	setString(&c.UserID, env.UserID)
	setString(&c.Username, env.Username)
	if env.Accept != nil {
		c.Accept = splitList(*env.Accept)
	}
	if env.MaxFiles != nil {
		c.MaxFiles = *env.MaxFiles
	}
	if env.MaxSize != nil {
		size, err := ParseSize(*env.MaxSize)
		if err != nil {
			return fmt.Errorf("NIMBUS_MAX_SIZE: %w", err)
		}
		c.MaxSizeBytes = size
	}
	if env.MaxRetries != nil {
		c.MaxRetries = *env.MaxRetries
	}

	setString(&c.Storage.Provider, env.Provider)
	setString(&c.Storage.Endpoint, env.Endpoint)
	setString(&c.Storage.AccessKey, env.AccessKey)
	setString(&c.Storage.SecretKey, env.SecretKey)
	setString(&c.Storage.Bucket, env.Bucket)
	setString(&c.Storage.AzureAccountURL, env.AzureAccountURL)
	setString(&c.Storage.AzureSASToken, env.AzureSASToken)

	setString(&c.ProxyMode, env.ProxyMode)
	setString(&c.ProxyHost, env.ProxyHost)
	if env.ProxyPort != nil {
		c.ProxyPort = *env.ProxyPort
	}
	setString(&c.ProxyUser, env.ProxyUser)
	setString(&c.ProxyPassword, env.ProxyPassword)
	setString(&c.NoProxy, env.NoProxy)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// MergeWithFlags applies command-line values. Empty or zero values are ignored.
// Priority: flags > environment > config file > defaults
func (c *Config) MergeWithFlags(apiURL, token, tokenFile, provider string) error {
	if tokenFile != "" {
		fileToken, err := ReadTokenFile(tokenFile)
		if err != nil {
			return err
		}
		c.AuthToken = fileToken
	}
	if token != "" {
		c.AuthToken = token
	}
	if apiURL != "" {
		c.APIBaseURL = apiURL
	}
	if provider != "" {
		c.Storage.Provider = provider
	}

	if c.APIBaseURL != "" && !strings.HasPrefix(c.APIBaseURL, "http") {
		c.APIBaseURL = "https://" + c.APIBaseURL
	}
	c.APIBaseURL = strings.TrimSuffix(c.APIBaseURL, "/")
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIBaseURL == "" && c.Storage.Provider == ProviderRemote {
		return ErrMissingAPIURL
	}
	if c.MaxFiles < 1 {
		return ErrInvalidMaxFiles
	}
	if c.MaxSizeBytes < 1 {
		return ErrInvalidMaxSize
	}
	if c.MaxRetries < 0 || c.MaxRetries > constants.MaxMaxRetries {
		return ErrInvalidMaxRetries
	}
	if _, err := navigation.ParseOrientation(c.Orientation); err != nil {
		return err
	}
	if _, err := navigation.ParseDirection(c.Direction); err != nil {
		return err
	}

	switch c.Storage.Provider {
	case ProviderRemote:
	case ProviderS3:
		if c.Storage.Endpoint == "" && c.Storage.Region == "" {
			return errors.New("s3 storage requires endpoint or region")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return errors.New("s3 storage requires access_key and secret_key")
		}
		if c.Storage.Bucket == "" {
			return errors.New("s3 storage requires bucket")
		}
	case ProviderAzure:
		if c.Storage.AzureAccountURL == "" || c.Storage.AzureSASToken == "" {
			return errors.New("azure storage requires azure_account_url and azure_sas_token")
		}
		if c.Storage.Bucket == "" {
			return errors.New("azure storage requires bucket (container name)")
		}
	default:
		return fmt.Errorf("unsupported storage provider: %s", c.Storage.Provider)
	}

	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if c.ProxyHost == "" {
			return fmt.Errorf("proxy mode %s requires a proxy host", c.ProxyMode)
		}
	default:
		return fmt.Errorf("unsupported proxy mode: %s", c.ProxyMode)
	}

	return nil
}

// Policy derives the selection policy.
func (c *Config) Policy() policy.Policy {
	return policy.New(
		policy.WithAccepted(c.Accept...),
		policy.WithMaxFiles(c.MaxFiles),
		policy.WithMaxSize(c.MaxSizeBytes),
		policy.WithMultiple(c.AllowMultiple),
		policy.WithReselect(c.ReselectOnFull),
	)
}

// NavOptions derives the keyboard navigation options. Invalid values fall
// back to the defaults; Validate reports them.
func (c *Config) NavOptions() navigation.Options {
	opts := navigation.DefaultOptions()
	if o, err := navigation.ParseOrientation(c.Orientation); err == nil {
		opts.Orientation = o
	}
	if d, err := navigation.ParseDirection(c.Direction); err == nil {
		opts.Direction = d
	}
	return opts
}

// User returns the identity sent to the extraction service.
func (c *Config) User() models.User {
	return models.User{ID: c.UserID, Username: c.Username}
}

// ParseSize parses a human-readable size such as "4MiB", "500 kB" or "1048576".
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}

// FormatSize formats a byte count the way ParseSize reads it.
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
