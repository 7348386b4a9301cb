package cloud

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	inthttp "github.com/nimbus-data/nimbus-ingest/internal/http"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// TransferError is a non-2xx response from the blob endpoint.
type TransferError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *TransferError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("transfer rejected: %s", e.Status)
	}
	return fmt.Sprintf("transfer rejected: %s: %s", e.Status, body)
}

// HTTPStatus returns the response status code.
func (e *TransferError) HTTPStatus() int {
	return e.StatusCode
}

// HTTPTransferer sends the body in a single request to the slot URL. It
// works for any presigned PUT URL (S3, MinIO, Azure SAS).
type HTTPTransferer struct {
	client *nethttp.Client
	logger *logging.Logger
}

// NewHTTPTransferer creates a transferer. A nil client uses http.DefaultClient.
func NewHTTPTransferer(client *nethttp.Client, logger *logging.Logger) *HTTPTransferer {
	if client == nil {
		client = nethttp.DefaultClient
	}
	return &HTTPTransferer{client: client, logger: logging.OrDefault(logger)}
}

// Transfer implements Transferer.
func (t *HTTPTransferer) Transfer(ctx context.Context, target models.SlotTarget, body io.Reader, size int64, contentType string) error {
	method := target.Method
	if method == "" {
		method = nethttp.MethodPut
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, target.URL, body)
	if err != nil {
		return fmt.Errorf("failed to create transfer request: %w", err)
	}
	req.ContentLength = size
	for k, v := range target.Headers {
		if strings.EqualFold(k, "host") {
			continue
		}
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return t.failed(target, fmt.Errorf("transfer failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return t.failed(target, &TransferError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(data)})
	}
	io.Copy(io.Discard, resp.Body)

	elapsed := time.Since(start)
	t.logger.Debug().
		Str("provider", target.Provider).
		Str("size", humanize.IBytes(uint64(size))).
		Dur("elapsed", elapsed).
		Str("rate", rate(size, elapsed)).
		Msg("Transfer complete")
	return nil
}

func (t *HTTPTransferer) failed(target models.SlotTarget, err error) error {
	t.logger.Debug().Err(err).
		Str("provider", target.Provider).
		Str("error_class", inthttp.ClassifyError(err).String()).
		Msg("Transfer failed")
	return err
}

func rate(size int64, elapsed time.Duration) string {
	if elapsed <= 0 || size <= 0 {
		return "n/a"
	}
	return humanize.IBytes(uint64(float64(size)/elapsed.Seconds())) + "/s"
}
