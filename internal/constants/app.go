package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used for the config directory, GUI app ID and log file names
	AppName = "nimbus-ingest"

	// AppID is the fyne application identifier
	AppID = "io.nimbus.ingest"

	// DefaultAPIBaseURL - Nimbus API used when no api_url is configured
	DefaultAPIBaseURL = "http://localhost:8000"
)

// Selection policy defaults
const (
	// DefaultMaxFiles - single-file mode, new selections replace the staged file
	DefaultMaxFiles = 1

	// DefaultMaxSizeBytes - largest accepted file (4 MiB)
	DefaultMaxSizeBytes = 4 * 1024 * 1024

	// DefaultAcceptedMIME and DefaultAcceptedExt form the default accept list
	DefaultAcceptedMIME = "text/csv"
	DefaultAcceptedExt  = ".csv"
)

// Upload status messages shown to the user
const (
	// UploadFailedMessage is the per-file message for any pipeline failure.
	// The underlying error is logged and kept as status detail.
	UploadFailedMessage = "Upload failed"

	// BatchFailedNotice is published when at least one file in a batch failed
	BatchFailedNotice = "Some files failed to upload"

	// MissingAuthWarning is published when the orchestrator starts without a token
	MissingAuthWarning = "file uploader initialization error: unable to set auth credentials"
)

// Storage defaults
const (
	// DefaultStorageProvider - slots are issued by the Nimbus API
	DefaultStorageProvider = "remote"

	// DefaultBucket - bucket (S3/MinIO) or container (Azure) for uploaded datasets
	DefaultBucket = "datasets"

	// DefaultRegion - region used when presigning against MinIO
	DefaultRegion = "us-east-1"

	// DefaultPresignExpiry - lifetime of an upload slot URL
	DefaultPresignExpiry = 3600 * time.Second
)

// API client retry settings
const (
	// DefaultMaxRetries - remote steps are not retried unless configured
	DefaultMaxRetries = 0

	// MaxMaxRetries caps the configurable retry count
	MaxMaxRetries = 10

	// RetryWaitMin / RetryWaitMax bound the retryablehttp backoff
	RetryWaitMin = 1 * time.Second
	RetryWaitMax = 30 * time.Second
)

// HTTP Client Timeouts
const (
	// HTTPDialTimeout - timeout for establishing TCP connections
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive interval for TCP connections
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPIdleConnTimeout - how long idle connections remain in the pool
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake
	// Extended for slow networks and proxies
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for HTTP 100-continue responses
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPClientTimeout - overall timeout for API requests
	HTTPClientTimeout = 300 * time.Second

	// ProxyWarmupTimeout - timeout for the proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second
)

// Event Bus Configuration
const (
	// EventBusDefaultBuffer - default buffer size for event bus channels
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for event bus channels
	EventBusMaxBuffer = 10000
)

// Progress UI
const (
	// ProgressRefreshRate - mpb redraw interval
	ProgressRefreshRate = 150 * time.Millisecond

	// ProgressBarWidth - width of each mpb bar
	ProgressBarWidth = 40

	// ProgressNameWidth - file names are truncated to this many characters
	ProgressNameWidth = 32
)

// Log file rotation
const (
	// LogMaxSizeMB - rotate the log file after this many megabytes
	LogMaxSizeMB = 10

	// LogMaxBackups - rotated files to keep
	LogMaxBackups = 5

	// LogMaxAgeDays - days to keep rotated files
	LogMaxAgeDays = 30
)

// Sniffing
const (
	// SniffLength - bytes read for content-type detection
	SniffLength = 512
)
