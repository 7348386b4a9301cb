package surface

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/nimbus-data/nimbus-ingest/internal/ingest"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
	"github.com/nimbus-data/nimbus-ingest/internal/policy"
	"github.com/nimbus-data/nimbus-ingest/internal/state"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectContentType(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"data.csv", "a,b\n1,2\n", "text/csv"},
		{"DATA.CSV", "a,b\n", "text/csv"},
		{"page.html", "<html></html>", "text/html"},
		{"noext", "plain words here", "text/plain"},
		{"blob", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR", "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name, tt.content)
			got, err := DetectContentType(path)
			if err != nil {
				t.Fatalf("DetectContentType() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectContentType(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sales.csv", "region,amount\n")

	c, err := FromPath(path)
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}
	if c.Name != "sales.csv" || c.Size != 14 || c.ContentType != "text/csv" || c.Path != path {
		t.Errorf("candidate = %+v", c)
	}

	rc, err := c.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "region,amount\n" {
		t.Errorf("content = %q", data)
	}
}

func TestFromPaths(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "x\n")
	writeFile(t, dir, "nested/b.csv", "y\n")
	writeFile(t, dir, "nested/.hidden.csv", "z\n")
	writeFile(t, dir, ".git/c.csv", "w\n")
	missing := filepath.Join(dir, "missing.csv")

	t.Run("flat", func(t *testing.T) {
		got, errs := FromPaths([]string{a, missing, filepath.Join(dir, "nested")}, Options{})
		if len(got) != 1 || got[0].Name != "a.csv" {
			t.Errorf("candidates = %v", got)
		}
		if len(errs) != 2 {
			t.Fatalf("errs = %v, want 2", errs)
		}
		if !errors.Is(errs[1], ErrIsDirectory) {
			t.Errorf("errs[1] = %v, want ErrIsDirectory", errs[1])
		}
		var pe *PathError
		if !errors.As(errs[0], &pe) || pe.Path != missing {
			t.Errorf("errs[0] = %v, want PathError for missing file", errs[0])
		}
	})

	t.Run("recursive", func(t *testing.T) {
		got, errs := FromPaths([]string{dir}, Options{Recursive: true})
		if len(errs) != 0 {
			t.Errorf("errs = %v", errs)
		}
		var names []string
		for _, c := range got {
			names = append(names, c.Name)
		}
		sort.Strings(names)
		if len(names) != 2 || names[0] != "a.csv" || names[1] != "b.csv" {
			t.Errorf("names = %v, want [a.csv b.csv]", names)
		}
	})

	t.Run("recursive with hidden", func(t *testing.T) {
		got, _ := FromPaths([]string{dir}, Options{Recursive: true, IncludeHidden: true})
		if len(got) != 4 {
			t.Errorf("candidates = %d, want 4", len(got))
		}
	})
}

func TestExpandGlobs(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "x")
	b := writeFile(t, dir, "b.csv", "y")
	writeFile(t, dir, "c.txt", "z")

	got, err := ExpandGlobs([]string{filepath.Join(dir, "*.csv"), a})
	if err != nil {
		t.Fatalf("ExpandGlobs() error = %v", err)
	}

	wantA, _ := ResolvePath(a)
	wantB, _ := ResolvePath(b)
	if len(got) != 2 || got[0] != wantA || got[1] != wantB {
		t.Errorf("ExpandGlobs() = %v, want [%s %s]", got, wantA, wantB)
	}

	if _, err := ExpandGlobs([]string{filepath.Join(dir, "*.parquet")}); err == nil {
		t.Error("pattern with no match should fail")
	}
	if _, err := ExpandGlobs([]string{filepath.Join(dir, "[")}); err == nil {
		t.Error("malformed pattern should fail")
	}
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{".hidden", true},
		{"/path/to/.env", true},
		{"visible.csv", false},
		{"/path/to/visible.csv", false},
		{"..", false},
		{".", false},
	}
	for _, tt := range tests {
		if got := IsHidden(tt.path); got != tt.want {
			t.Errorf("IsHidden(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestResolvePath_Home(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := ResolvePath("~/nimbus-nonexistent.csv")
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	want, _ := filepath.Abs(filepath.Join(home, "nimbus-nonexistent.csv"))
	if got != want {
		t.Errorf("ResolvePath() = %q, want %q", got, want)
	}
}

type recordingSubmitter struct {
	batches [][]models.Candidate
	orch    *ingest.Orchestrator
}

func (r *recordingSubmitter) Submit(ctx context.Context, c []models.Candidate) *ingest.Batch {
	r.batches = append(r.batches, c)
	return r.orch.Submit(ctx, c)
}

type fakePicker struct {
	paths []string
	err   error
}

func (p fakePicker) Pick(ctx context.Context, multiple bool, accept []string) ([]string, error) {
	return p.paths, p.err
}

func newTestSurface(t *testing.T, picker Picker, p policy.Policy) (*Surface, *recordingSubmitter, *state.Session) {
	t.Helper()
	session := state.NewSession(p, nil, logging.NewNopLogger())
	orch, err := ingest.NewOrchestrator(ingest.OrchestratorConfig{Session: session, AuthToken: "t", Logger: logging.NewNopLogger()})
	if err != nil {
		t.Fatal(err)
	}
	sub := &recordingSubmitter{orch: orch}
	s := New(Config{
		Submitter: sub,
		Lock:      session,
		Picker:    picker,
		Multiple:  p.AllowMultiple,
		Accept:    p.AcceptList(),
		Logger:    logging.NewNopLogger(),
	})
	return s, sub, session
}

func TestSurface_Drop(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.csv", "a\n")
	bad := writeFile(t, dir, "bad.txt", "a\n")

	s, sub, session := newTestSurface(t, nil, policy.Default())

	batch, errs := s.Drop(context.Background(), []string{bad})
	if len(errs) != 0 || batch == nil {
		t.Fatalf("Drop() errs = %v, batch = %v", errs, batch)
	}
	if !s.Rejected() {
		t.Error("Rejected() = false after a refused type")
	}

	s.Drop(context.Background(), []string{good})
	if s.Rejected() {
		t.Error("Rejected() = true after an accepted drop")
	}
	if session.Len() != 1 || len(sub.batches) != 2 {
		t.Errorf("session has %d files after %d batches", session.Len(), len(sub.batches))
	}
}

func TestSurface_LockedIgnoresDrops(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "a\n")
	b := writeFile(t, dir, "b.csv", "b\n")

	p := policy.New(policy.WithMaxFiles(1), policy.WithMultiple(true))
	// single-file mode always replaces, so it never locks
	s, _, _ := newTestSurface(t, nil, p)
	s.Drop(context.Background(), []string{a})
	if s.Disabled() {
		t.Error("single-file surface should not lock")
	}

	p = policy.New(policy.WithMaxFiles(2), policy.WithMultiple(true))
	s, sub, _ := newTestSurface(t, nil, p)
	s.Drop(context.Background(), []string{a, b})
	if !s.Disabled() {
		t.Fatal("surface should lock at the file limit")
	}
	_, errs := s.Drop(context.Background(), []string{a})
	if len(errs) != 1 || !errors.Is(errs[0], ErrLocked) {
		t.Errorf("errs = %v, want ErrLocked", errs)
	}
	if len(sub.batches) != 1 {
		t.Errorf("batches = %d, want 1", len(sub.batches))
	}
}

func TestSurface_Browse(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "a\n")

	s, _, session := newTestSurface(t, fakePicker{paths: []string{a}}, policy.Default())
	if _, errs := s.Browse(context.Background()); len(errs) != 0 {
		t.Fatalf("Browse() errs = %v", errs)
	}
	if session.Len() != 1 {
		t.Errorf("Len() = %d, want 1", session.Len())
	}

	s, _, session = newTestSurface(t, fakePicker{}, policy.Default())
	batch, errs := s.Browse(context.Background())
	if batch != nil || errs != nil || session.Len() != 0 {
		t.Error("cancelled picker should submit nothing")
	}

	s, _, _ = newTestSurface(t, nil, policy.Default())
	if batch, errs := s.Browse(context.Background()); batch != nil || errs != nil {
		t.Error("Browse() without a picker should be a no-op")
	}
}
