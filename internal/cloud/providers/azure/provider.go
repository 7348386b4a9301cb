// Package azure issues upload slots as SAS blob URLs and transfers bytes to
// Azure Blob Storage as block blobs.
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"

	"github.com/nimbus-data/nimbus-ingest/internal/cloud"
	"github.com/nimbus-data/nimbus-ingest/internal/config"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// Provider name reported in SlotTarget.Provider.
const Provider = "azure"

// Issuer builds SAS blob URLs under one container.
type Issuer struct {
	client    *azblob.Client
	container string
}

// NewIssuer creates an issuer from an account URL and a SAS token.
func NewIssuer(storage config.StorageConfig, httpClient *nethttp.Client) (*Issuer, error) {
	if storage.AzureAccountURL == "" || storage.AzureSASToken == "" {
		return nil, errors.New("azure account URL and SAS token are required")
	}
	if storage.Bucket == "" {
		return nil, errors.New("azure container is required")
	}

	client, err := azblob.NewClientWithNoCredential(buildSASURL(storage.AzureAccountURL, storage.AzureSASToken), &azblob.ClientOptions{
		ClientOptions: clientOptions(httpClient),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &Issuer{client: client, container: storage.Bucket}, nil
}

// buildSASURL joins the account URL and SAS token.
// Format: https://{account}.blob.core.windows.net/?{sas_token}
func buildSASURL(accountURL, sasToken string) string {
	return strings.TrimSuffix(accountURL, "/") + "/?" + strings.TrimPrefix(sasToken, "?")
}

func clientOptions(httpClient *nethttp.Client) azcore.ClientOptions {
	var opts azcore.ClientOptions
	if httpClient != nil {
		opts.Transport = httpClient
	}
	return opts
}

// RequestSlot implements cloud.SlotIssuer. The URL carries the SAS query,
// so a plain PUT with x-ms-blob-type also works against it.
func (i *Issuer) RequestSlot(ctx context.Context, filename string) (models.SlotTarget, error) {
	if err := ctx.Err(); err != nil {
		return models.SlotTarget{}, err
	}
	blobURL := i.client.ServiceClient().
		NewContainerClient(i.container).
		NewBlockBlobClient(filename).
		URL()

	return models.SlotTarget{
		URL:      blobURL,
		Method:   nethttp.MethodPut,
		Headers:  map[string]string{"x-ms-blob-type": "BlockBlob"},
		Provider: Provider,
	}, nil
}

// Transferer uploads to a SAS blob URL with the block blob client.
type Transferer struct {
	httpClient *nethttp.Client
}

// NewTransferer creates a transferer. httpClient may be nil.
func NewTransferer(httpClient *nethttp.Client) *Transferer {
	return &Transferer{httpClient: httpClient}
}

// Transfer implements cloud.Transferer.
func (t *Transferer) Transfer(ctx context.Context, target models.SlotTarget, body io.Reader, size int64, contentType string) error {
	client, err := blockblob.NewClientWithNoCredential(target.URL, &blockblob.ClientOptions{
		ClientOptions: clientOptions(t.httpClient),
	})
	if err != nil {
		return fmt.Errorf("failed to create block blob client: %w", err)
	}

	opts := &blockblob.UploadStreamOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}

	if _, err := client.UploadStream(ctx, body, opts); err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			return &cloud.TransferError{
				StatusCode: respErr.StatusCode,
				Status:     fmt.Sprintf("%d %s", respErr.StatusCode, respErr.ErrorCode),
			}
		}
		return fmt.Errorf("transfer failed: %w", err)
	}
	return nil
}

var (
	_ cloud.SlotIssuer = (*Issuer)(nil)
	_ cloud.Transferer = (*Transferer)(nil)
)
