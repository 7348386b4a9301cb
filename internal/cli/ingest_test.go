package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nimbus-data/nimbus-ingest/internal/config"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
	"github.com/nimbus-data/nimbus-ingest/internal/state"
)

// newFakeAPI serves the four remote steps and counts registered files.
func newFakeAPI(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	var mu sync.Mutex
	registered := 0

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/presignedURL", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("filename")
		json.NewEncoder(w).Encode(map[string]string{"upload_url": srv.URL + "/blob/" + name})
	})
	mux.HandleFunc("/blob/", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/datasets/extract", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.Extraction{DatasetID: "ds-1", Columns: []string{"a", "b"}})
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		registered++
		id := registered
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"fileId": fmt.Sprintf("%d", id)})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &registered
}

func ingestConfig(apiURL string) *config.Config {
	cfg := config.NewConfig()
	cfg.APIBaseURL = apiURL
	cfg.AuthToken = "test-token"
	cfg.UserID = "u-1"
	cfg.Username = "ana"
	return cfg
}

func writeCSV(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestOptions_Apply(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantMax      int
		wantMultiple bool
		wantSize     int64
		wantErr      bool
	}{
		{name: "defaults", args: nil, wantMax: 1, wantMultiple: false, wantSize: 4 * 1024 * 1024},
		{name: "max-files implies multiple", args: []string{"--max-files", "5"}, wantMax: 5, wantMultiple: true, wantSize: 4 * 1024 * 1024},
		{name: "explicit multiple wins", args: []string{"--max-files", "5", "--multiple=false"}, wantMax: 5, wantMultiple: false, wantSize: 4 * 1024 * 1024},
		{name: "max-size", args: []string{"--max-size", "1MiB"}, wantMax: 1, wantSize: 1024 * 1024},
		{name: "bad max-size", args: []string{"--max-size", "lots"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newIngestCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags() error = %v", err)
			}
			opts := &ingestOptions{}
			opts.maxFiles, _ = cmd.Flags().GetInt("max-files")
			opts.maxSize, _ = cmd.Flags().GetString("max-size")
			opts.multiple, _ = cmd.Flags().GetBool("multiple")

			cfg := config.NewConfig()
			err := opts.apply(cmd, cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg.MaxFiles != tt.wantMax {
				t.Errorf("MaxFiles = %d, want %d", cfg.MaxFiles, tt.wantMax)
			}
			if cfg.AllowMultiple != tt.wantMultiple {
				t.Errorf("AllowMultiple = %v, want %v", cfg.AllowMultiple, tt.wantMultiple)
			}
			if cfg.MaxSizeBytes != tt.wantSize {
				t.Errorf("MaxSizeBytes = %d, want %d", cfg.MaxSizeBytes, tt.wantSize)
			}
		})
	}
}

func TestRunIngest(t *testing.T) {
	srv, registered := newFakeAPI(t)
	dir := t.TempDir()
	writeCSV(t, dir, "north.csv")
	writeCSV(t, dir, "south.csv")
	reportPath := filepath.Join(dir, "out", "report.csv")

	cfg := ingestConfig(srv.URL)
	cfg.MaxFiles = 5
	cfg.AllowMultiple = true

	opts := &ingestOptions{noProgress: true, report: reportPath}
	var out bytes.Buffer
	err := runIngest(context.Background(), cfg, opts, []string{filepath.Join(dir, "*.csv")}, &out, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("runIngest() error = %v", err)
	}

	if *registered != 2 {
		t.Errorf("registered = %d, want 2", *registered)
	}
	if !strings.Contains(out.String(), "Ingested 2 of 2 file(s)") {
		t.Errorf("summary = %q", out.String())
	}

	rm, err := state.NewReportManager(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := rm.Load()
	if err != nil {
		t.Fatalf("report Load() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("report entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Status != models.StageSuccess || e.DatasetID != "ds-1" {
			t.Errorf("report entry = %+v", e)
		}
	}
}

func TestRunIngest_RejectedFile(t *testing.T) {
	srv, registered := newFakeAPI(t)
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(notes, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := runIngest(context.Background(), ingestConfig(srv.URL), &ingestOptions{noProgress: true}, []string{notes}, &out, logging.NewNopLogger())
	if err == nil {
		t.Fatal("runIngest() error = nil, want rejection")
	}
	if *registered != 0 {
		t.Errorf("registered = %d, want 0", *registered)
	}
}

func TestRunIngest_NoFiles(t *testing.T) {
	err := runIngest(context.Background(), ingestConfig("http://127.0.0.1:1"), &ingestOptions{noProgress: true},
		[]string{filepath.Join(t.TempDir(), "missing.csv")}, io.Discard, logging.NewNopLogger())
	if err == nil {
		t.Fatal("runIngest() error = nil, want error for missing path")
	}
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, []models.IngestionResult{
		{SourceName: "sales.csv", FileID: "7", DatasetID: "ds-9", Columns: []string{"region", "amount"}},
	}, 2, 1500*time.Millisecond)

	got := out.String()
	if !strings.Contains(got, "Ingested 1 of 2 file(s) in 1.5s") {
		t.Errorf("summary header = %q", got)
	}
	if !strings.Contains(got, "sales.csv -> file 7, dataset ds-9 (2 columns: region, amount)") {
		t.Errorf("summary line = %q", got)
	}
}

func TestRootCmd_Flags(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	for _, name := range []string{"config", "token", "token-file", "api-url", "log-file", "verbose", "debug"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag --%s missing", name)
		}
	}

	want := map[string]bool{"ingest": false, "gui": false, "config": false, "version": false}
	for _, sub := range root.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestPrintVersion(t *testing.T) {
	var out bytes.Buffer
	printVersion(&out)
	if !strings.HasPrefix(out.String(), "nimbus-ingest ") {
		t.Errorf("printVersion() = %q", out.String())
	}
}
