package azure

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/nimbus-data/nimbus-ingest/internal/cloud"
	"github.com/nimbus-data/nimbus-ingest/internal/config"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

func TestBuildSASURL(t *testing.T) {
	tests := []struct {
		account, sas, want string
	}{
		{"https://acct.blob.core.windows.net", "sv=2022&sig=x", "https://acct.blob.core.windows.net/?sv=2022&sig=x"},
		{"https://acct.blob.core.windows.net/", "?sv=2022&sig=x", "https://acct.blob.core.windows.net/?sv=2022&sig=x"},
	}
	for _, tt := range tests {
		if got := buildSASURL(tt.account, tt.sas); got != tt.want {
			t.Errorf("buildSASURL(%q, %q) = %q, want %q", tt.account, tt.sas, got, tt.want)
		}
	}
}

func TestIssuer_RequestSlot(t *testing.T) {
	issuer, err := NewIssuer(config.StorageConfig{
		AzureAccountURL: "https://acct.blob.core.windows.net",
		AzureSASToken:   "sv=2022-11-02&sig=abc",
		Bucket:          "datasets",
	}, nil)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	target, err := issuer.RequestSlot(context.Background(), "sales report_1.csv")
	if err != nil {
		t.Fatalf("RequestSlot() error = %v", err)
	}

	u, err := url.Parse(target.URL)
	if err != nil {
		t.Fatalf("invalid URL: %v", err)
	}
	if u.Host != "acct.blob.core.windows.net" {
		t.Errorf("Host = %q", u.Host)
	}
	if u.Path != "/datasets/sales report_1.csv" {
		t.Errorf("Path = %q", u.Path)
	}
	if u.Query().Get("sig") != "abc" {
		t.Errorf("SAS missing from %q", target.URL)
	}
	if target.Headers["x-ms-blob-type"] != "BlockBlob" || target.Provider != Provider {
		t.Errorf("target = %+v", target)
	}
}

func TestNewIssuer_Validation(t *testing.T) {
	if _, err := NewIssuer(config.StorageConfig{Bucket: "c"}, nil); err == nil {
		t.Error("missing account URL should fail")
	}
	if _, err := NewIssuer(config.StorageConfig{AzureAccountURL: "https://a", AzureSASToken: "s"}, nil); err == nil {
		t.Error("missing container should fail")
	}
}

// fakeBlobServer accepts every PUT and records what it saw.
type fakeBlobServer struct {
	mu          sync.Mutex
	body        strings.Builder
	contentType string
	status      int
}

func (f *fakeBlobServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.Header().Set("x-ms-error-code", "AuthenticationFailed")
		w.WriteHeader(f.status)
		return
	}
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if ct := r.Header.Get("x-ms-blob-content-type"); ct != "" {
		f.contentType = ct
	}
	comp := r.URL.Query().Get("comp")
	if comp == "" || comp == "block" {
		data, _ := io.ReadAll(r.Body)
		f.body.Write(data)
	}
	w.WriteHeader(http.StatusCreated)
}

func TestTransferer_Upload(t *testing.T) {
	fake := &fakeBlobServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tr := NewTransferer(srv.Client())
	target := models.SlotTarget{URL: srv.URL + "/devstoreaccount1/datasets/a_1.csv?sv=2022&sig=abc", Provider: Provider}

	body := "id,amount\n1,10\n"
	if err := tr.Transfer(context.Background(), target, strings.NewReader(body), int64(len(body)), "text/csv"); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.body.String() != body {
		t.Errorf("uploaded body = %q", fake.body.String())
	}
	if fake.contentType != "text/csv" {
		t.Errorf("blob content type = %q, want text/csv", fake.contentType)
	}
}

func TestTransferer_Rejected(t *testing.T) {
	fake := &fakeBlobServer{status: http.StatusForbidden}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tr := NewTransferer(srv.Client())
	target := models.SlotTarget{URL: srv.URL + "/devstoreaccount1/datasets/a_1.csv?sig=expired"}

	err := tr.Transfer(context.Background(), target, strings.NewReader("x"), 1, "text/csv")
	var te *cloud.TransferError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *cloud.TransferError", err)
	}
	if te.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", te.StatusCode)
	}
}
