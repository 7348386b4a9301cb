package remote

import (
	"context"
	"errors"
	"testing"
)

type fakeRequester struct {
	url string
	err error
	got string
}

func (f *fakeRequester) RequestUploadURL(ctx context.Context, filename string) (string, error) {
	f.got = filename
	return f.url, f.err
}

func TestIssuer_RequestSlot(t *testing.T) {
	api := &fakeRequester{url: "http://minio:9000/datasets/a_1.csv?X-Amz-Expires=3600"}
	issuer, err := NewIssuer(api)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	target, err := issuer.RequestSlot(context.Background(), "a_1.csv")
	if err != nil {
		t.Fatalf("RequestSlot() error = %v", err)
	}
	if api.got != "a_1.csv" {
		t.Errorf("requested filename = %q", api.got)
	}
	if target.URL != api.url || target.Method != "PUT" || target.Provider != Provider {
		t.Errorf("target = %+v", target)
	}
}

func TestIssuer_Error(t *testing.T) {
	sentinel := errors.New("boom")
	issuer, _ := NewIssuer(&fakeRequester{err: sentinel})

	if _, err := issuer.RequestSlot(context.Background(), "a.csv"); !errors.Is(err, sentinel) {
		t.Errorf("error = %v, want wrapped sentinel", err)
	}
}

func TestNewIssuer_RequiresAPI(t *testing.T) {
	if _, err := NewIssuer(nil); err == nil {
		t.Error("NewIssuer(nil) should fail")
	}
}
