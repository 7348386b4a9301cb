// Package s3 issues upload slots by presigning PUT URLs locally against an
// S3-compatible store (AWS S3 or MinIO).
package s3

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nimbus-data/nimbus-ingest/internal/cloud"
	"github.com/nimbus-data/nimbus-ingest/internal/config"
	"github.com/nimbus-data/nimbus-ingest/internal/constants"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// Provider name reported in SlotTarget.Provider.
const Provider = "s3"

// Issuer presigns PUT object URLs. Thread-safe.
type Issuer struct {
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

// NewIssuer builds an S3 client with static credentials. A non-empty
// Endpoint points the client at MinIO or another S3-compatible store.
func NewIssuer(ctx context.Context, storage config.StorageConfig, httpClient *nethttp.Client) (*Issuer, error) {
	if storage.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if storage.AccessKey == "" || storage.SecretKey == "" {
		return nil, errors.New("access key and secret key are required")
	}

	region := storage.Region
	if region == "" {
		region = constants.DefaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(storage.AccessKey, storage.SecretKey, "")),
	}
	if httpClient != nil {
		opts = append(opts, awsconfig.WithHTTPClient(httpClient))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(storage.Endpoint)
		}
		o.UsePathStyle = storage.UsePathStyle
	})

	expiry := storage.PresignExpiry
	if expiry <= 0 {
		expiry = constants.DefaultPresignExpiry
	}

	return &Issuer{
		presign: s3.NewPresignClient(client, s3.WithPresignExpires(expiry)),
		bucket:  storage.Bucket,
		expiry:  expiry,
	}, nil
}

// Bucket returns the target bucket.
func (i *Issuer) Bucket() string {
	return i.bucket
}

// RequestSlot implements cloud.SlotIssuer.
func (i *Issuer) RequestSlot(ctx context.Context, filename string) (models.SlotTarget, error) {
	req, err := i.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(i.bucket),
		Key:    aws.String(filename),
	})
	if err != nil {
		return models.SlotTarget{}, fmt.Errorf("failed to presign %s/%s: %w", i.bucket, filename, err)
	}

	headers := make(map[string]string, len(req.SignedHeader))
	for k, v := range req.SignedHeader {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return models.SlotTarget{
		URL:      req.URL,
		Method:   req.Method,
		Headers:  headers,
		Provider: Provider,
	}, nil
}

var _ cloud.SlotIssuer = (*Issuer)(nil)
