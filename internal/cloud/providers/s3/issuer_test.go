package s3

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/nimbus-data/nimbus-ingest/internal/config"
)

func minioStorage() config.StorageConfig {
	return config.StorageConfig{
		Provider:      Provider,
		Endpoint:      "http://localhost:9000",
		AccessKey:     "minio",
		SecretKey:     "minio123",
		Region:        "us-east-1",
		Bucket:        "datasets",
		UsePathStyle:  true,
		PresignExpiry: time.Hour,
	}
}

func TestIssuer_RequestSlot(t *testing.T) {
	issuer, err := NewIssuer(context.Background(), minioStorage(), nil)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	target, err := issuer.RequestSlot(context.Background(), "sales_1700000000000.csv")
	if err != nil {
		t.Fatalf("RequestSlot() error = %v", err)
	}

	if target.Method != "PUT" {
		t.Errorf("Method = %q, want PUT", target.Method)
	}
	if target.Provider != Provider {
		t.Errorf("Provider = %q", target.Provider)
	}

	u, err := url.Parse(target.URL)
	if err != nil {
		t.Fatalf("invalid URL %q: %v", target.URL, err)
	}
	if u.Host != "localhost:9000" {
		t.Errorf("Host = %q, want localhost:9000", u.Host)
	}
	if u.Path != "/datasets/sales_1700000000000.csv" {
		t.Errorf("Path = %q, want path-style bucket/key", u.Path)
	}
	q := u.Query()
	if q.Get("X-Amz-Expires") != "3600" {
		t.Errorf("X-Amz-Expires = %q, want 3600", q.Get("X-Amz-Expires"))
	}
	if q.Get("X-Amz-Signature") == "" {
		t.Error("URL is not signed")
	}
	if !strings.Contains(q.Get("X-Amz-Credential"), "minio/") {
		t.Errorf("X-Amz-Credential = %q", q.Get("X-Amz-Credential"))
	}
}

func TestNewIssuer_Validation(t *testing.T) {
	s := minioStorage()
	s.Bucket = ""
	if _, err := NewIssuer(context.Background(), s, nil); err == nil {
		t.Error("missing bucket should fail")
	}

	s = minioStorage()
	s.SecretKey = ""
	if _, err := NewIssuer(context.Background(), s, nil); err == nil {
		t.Error("missing secret key should fail")
	}
}

func TestNewIssuer_DefaultExpiry(t *testing.T) {
	s := minioStorage()
	s.PresignExpiry = 0

	issuer, err := NewIssuer(context.Background(), s, nil)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	if issuer.expiry != time.Hour {
		t.Errorf("expiry = %v, want 1h", issuer.expiry)
	}
	if issuer.Bucket() != "datasets" {
		t.Errorf("Bucket() = %q", issuer.Bucket())
	}
}
