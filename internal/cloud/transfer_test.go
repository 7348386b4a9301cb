package cloud

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

func TestHTTPTransferer_Put(t *testing.T) {
	var gotBody, gotType, gotBlobType, gotMethod string
	var gotLength int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotBlobType = r.Header.Get("x-ms-blob-type")
		gotLength = r.ContentLength
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewHTTPTransferer(srv.Client(), logging.NewNopLogger())
	target := models.SlotTarget{
		URL:     srv.URL + "/datasets/a_1.csv?X-Amz-Signature=abc",
		Headers: map[string]string{"x-ms-blob-type": "BlockBlob", "Host": "ignored"},
	}

	body := "id,amount\n1,10\n"
	if err := tr.Transfer(context.Background(), target, strings.NewReader(body), int64(len(body)), "text/csv"); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if gotBody != body {
		t.Errorf("body = %q", gotBody)
	}
	if gotType != "text/csv" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotBlobType != "BlockBlob" {
		t.Errorf("x-ms-blob-type = %q", gotBlobType)
	}
	if gotLength != int64(len(body)) {
		t.Errorf("ContentLength = %d", gotLength)
	}
}

func TestHTTPTransferer_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, "<Error><Code>SignatureDoesNotMatch</Code></Error>")
	}))
	defer srv.Close()

	tr := NewHTTPTransferer(srv.Client(), nil)
	err := tr.Transfer(context.Background(), models.SlotTarget{URL: srv.URL}, strings.NewReader("x"), 1, "text/csv")

	var te *TransferError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransferError", err)
	}
	if te.HTTPStatus() != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", te.StatusCode)
	}
	if !strings.Contains(te.Error(), "SignatureDoesNotMatch") {
		t.Errorf("Error() = %q", te.Error())
	}
}

func TestHTTPTransferer_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewHTTPTransferer(srv.Client(), nil)
	err := tr.Transfer(ctx, models.SlotTarget{URL: srv.URL}, strings.NewReader("x"), 1, "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
