package http

import (
	"errors"
	"net"
	nethttp "net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/nimbus-data/nimbus-ingest/internal/constants"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
)

// retryLogger implements retryablehttp.LeveledLogger on top of zerolog.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Str("component", "retry").Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Str("component", "retry").Msg(msg)
}

// NewRetryableClient wraps base with retryablehttp and returns a standard
// client. maxRetries of 0 sends each request exactly once.
func NewRetryableClient(base *nethttp.Client, maxRetries int, logger *logging.Logger) *nethttp.Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if maxRetries > constants.MaxMaxRetries {
		maxRetries = constants.MaxMaxRetries
	}

	retryClient := retryablehttp.NewClient()
	if base != nil {
		retryClient.HTTPClient = base
	}
	retryClient.RetryMax = maxRetries
	retryClient.RetryWaitMin = constants.RetryWaitMin
	retryClient.RetryWaitMax = constants.RetryWaitMax
	retryClient.Logger = &retryLogger{logger: logging.OrDefault(logger)}
	// Hand the last response back instead of a "giving up" error so callers
	// can read the status code and body.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return retryClient.StandardClient()
}

// ErrorType classifies a failed request for logging.
type ErrorType int

const (
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential is an authentication or authorization failure (401, 403, expired SAS)
	ErrorTypeCredential
	// ErrorTypeNetwork is a connection-level failure (timeouts, refused, reset)
	ErrorTypeNetwork
	// ErrorTypeServer is a 5xx or throttling response
	ErrorTypeServer
	// ErrorTypeClient is any other 4xx or unknown failure
	ErrorTypeClient
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeServer:
		return "server"
	case ErrorTypeClient:
		return "client"
	default:
		return "unknown"
	}
}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatus() int
}

// ClassifyError determines the error class. Errors carrying a status code
// are classified by code; anything else by its message.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return ClassifyStatus(sc.HTTPStatus())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorTypeNetwork
	}

	errStr := strings.ToLower(err.Error())

	for _, s := range []string{"expired", "unauthorized", "forbidden", "authentication failed", "authenticationfailed", "invalid sas", "signature not valid", "signaturedoesnotmatch", "accessdenied"} {
		if strings.Contains(errStr, s) {
			return ErrorTypeCredential
		}
	}
	for _, s := range []string{"tls handshake timeout", "connection reset", "i/o timeout", "eof", "connection refused", "broken pipe", "no such host", "timeout"} {
		if strings.Contains(errStr, s) {
			return ErrorTypeNetwork
		}
	}
	for _, s := range []string{"internalerror", "serviceunavailable", "slowdown", "throttl", "serverbusy", "service unavailable"} {
		if strings.Contains(errStr, s) {
			return ErrorTypeServer
		}
	}
	return ErrorTypeClient
}

// ClassifyStatus classifies an HTTP status code.
func ClassifyStatus(code int) ErrorType {
	switch {
	case code >= 200 && code < 300:
		return ErrorTypeSuccess
	case code == nethttp.StatusUnauthorized || code == nethttp.StatusForbidden:
		return ErrorTypeCredential
	case code == nethttp.StatusTooManyRequests || code >= 500:
		return ErrorTypeServer
	default:
		return ErrorTypeClient
	}
}
