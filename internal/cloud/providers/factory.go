// Package providers selects the slot issuer and transferer for the
// configured storage provider.
package providers

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/nimbus-data/nimbus-ingest/internal/cloud"
	"github.com/nimbus-data/nimbus-ingest/internal/cloud/providers/azure"
	"github.com/nimbus-data/nimbus-ingest/internal/cloud/providers/remote"
	"github.com/nimbus-data/nimbus-ingest/internal/cloud/providers/s3"
	"github.com/nimbus-data/nimbus-ingest/internal/config"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
)

// Factory creates providers based on the configured storage provider.
type Factory struct {
	cfg        *config.Config
	api        remote.URLRequester
	httpClient *nethttp.Client
	logger     *logging.Logger
}

// NewFactory creates a new provider factory. api is only needed for the
// remote provider; httpClient is the transfer client and may be nil.
func NewFactory(cfg *config.Config, api remote.URLRequester, httpClient *nethttp.Client, logger *logging.Logger) *Factory {
	return &Factory{cfg: cfg, api: api, httpClient: httpClient, logger: logging.OrDefault(logger)}
}

// Build returns the slot issuer and transferer for cfg.Storage.Provider.
func (f *Factory) Build(ctx context.Context) (cloud.SlotIssuer, cloud.Transferer, error) {
	if f.cfg == nil {
		return nil, nil, errors.New("config is required")
	}

	provider := f.cfg.Storage.Provider
	f.logger.Debug().Str("provider", provider).Msg("Creating storage provider")

	switch provider {
	case config.ProviderRemote, "":
		issuer, err := remote.NewIssuer(f.api)
		if err != nil {
			return nil, nil, err
		}
		return issuer, cloud.NewHTTPTransferer(f.httpClient, f.logger), nil

	case config.ProviderS3:
		issuer, err := s3.NewIssuer(ctx, f.cfg.Storage, f.httpClient)
		if err != nil {
			return nil, nil, err
		}
		return issuer, cloud.NewHTTPTransferer(f.httpClient, f.logger), nil

	case config.ProviderAzure:
		issuer, err := azure.NewIssuer(f.cfg.Storage, f.httpClient)
		if err != nil {
			return nil, nil, err
		}
		return issuer, azure.NewTransferer(f.httpClient), nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage provider: %s", provider)
	}
}
