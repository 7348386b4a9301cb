// Package cloud defines the upload slot and byte transfer abstractions used
// by the ingestion pipeline. Implementations live under providers/.
package cloud

import (
	"context"
	"io"

	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// SlotIssuer returns a write destination for a named object.
type SlotIssuer interface {
	RequestSlot(ctx context.Context, filename string) (models.SlotTarget, error)
}

// Transferer writes bytes to a slot. size is the exact body length.
type Transferer interface {
	Transfer(ctx context.Context, target models.SlotTarget, body io.Reader, size int64, contentType string) error
}
