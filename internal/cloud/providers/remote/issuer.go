// Package remote issues upload slots through the Nimbus API, which presigns
// URLs against its own object store.
package remote

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/nimbus-data/nimbus-ingest/internal/cloud"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// Provider name reported in SlotTarget.Provider.
const Provider = "remote"

// URLRequester is the part of the API client the issuer needs.
type URLRequester interface {
	RequestUploadURL(ctx context.Context, filename string) (string, error)
}

// Issuer implements cloud.SlotIssuer.
type Issuer struct {
	api URLRequester
}

// NewIssuer creates an issuer backed by the API.
func NewIssuer(api URLRequester) (*Issuer, error) {
	if api == nil {
		return nil, errors.New("api client is required")
	}
	return &Issuer{api: api}, nil
}

// RequestSlot implements cloud.SlotIssuer.
func (i *Issuer) RequestSlot(ctx context.Context, filename string) (models.SlotTarget, error) {
	uploadURL, err := i.api.RequestUploadURL(ctx, filename)
	if err != nil {
		return models.SlotTarget{}, fmt.Errorf("failed to get upload URL: %w", err)
	}
	return models.SlotTarget{
		URL:      uploadURL,
		Method:   nethttp.MethodPut,
		Provider: Provider,
	}, nil
}

var _ cloud.SlotIssuer = (*Issuer)(nil)
