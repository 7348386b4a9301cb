package policy

import (
	"testing"

	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

func csvFile(name string, size int64) models.Candidate {
	return models.Candidate{Name: name, Size: size, ContentType: "text/csv"}
}

func TestMatcher(t *testing.T) {
	tests := []struct {
		matcher Matcher
		file    models.Candidate
		want    bool
	}{
		{".csv", models.Candidate{Name: "data.CSV"}, true},
		{".csv", models.Candidate{Name: "data.tsv"}, false},
		{"text/csv", models.Candidate{Name: "x", ContentType: "text/csv; charset=utf-8"}, true},
		{"text/csv", models.Candidate{Name: "x", ContentType: "application/json"}, false},
		{"text/*", models.Candidate{Name: "x", ContentType: "text/plain"}, true},
		{"text/*", models.Candidate{Name: "x", ContentType: "image/png"}, false},
		{"text/csv", models.Candidate{Name: "x"}, false},
		{"", models.Candidate{Name: "a.csv"}, false},
	}

	for _, tt := range tests {
		if got := tt.matcher.Match(tt.file); got != tt.want {
			t.Errorf("Matcher(%q).Match(%q, %q) = %v, want %v",
				tt.matcher, tt.file.Name, tt.file.ContentType, got, tt.want)
		}
	}
}

func TestDefault(t *testing.T) {
	p := Default()

	if p.MaxFiles != 1 {
		t.Errorf("MaxFiles = %d, want 1", p.MaxFiles)
	}
	if p.MaxSizeBytes != 4*1024*1024 {
		t.Errorf("MaxSizeBytes = %d, want %d", p.MaxSizeBytes, 4*1024*1024)
	}
	if p.AllowMultiple {
		t.Error("AllowMultiple should be false by default")
	}
	if !p.ReplaceOnSelect() {
		t.Error("ReplaceOnSelect should be true for a single-file policy")
	}
}

func TestNormalize_SingleFileForcesReplace(t *testing.T) {
	p := New(WithMaxFiles(1), WithMultiple(true), WithReselect(false))

	if p.AllowMultiple {
		t.Error("MaxFiles=1 should force AllowMultiple=false")
	}
	if !p.ReplaceOnSelect() {
		t.Error("MaxFiles=1 should force replace semantics")
	}
}

func TestReplaceOnSelect(t *testing.T) {
	tests := []struct {
		name string
		p    Policy
		want bool
	}{
		{"multiple append", New(WithMaxFiles(3), WithMultiple(true)), false},
		{"multiple reselect", New(WithMaxFiles(3), WithMultiple(true), WithReselect(true)), true},
		{"single", New(WithMaxFiles(3), WithMultiple(false)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.ReplaceOnSelect(); got != tt.want {
				t.Errorf("ReplaceOnSelect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize_ClampsInvalidLimits(t *testing.T) {
	p := New(WithMaxFiles(0), WithMaxSize(-5))

	if p.MaxFiles != 1 {
		t.Errorf("MaxFiles = %d, want 1", p.MaxFiles)
	}
	if p.MaxSizeBytes != 4*1024*1024 {
		t.Errorf("MaxSizeBytes = %d, want default", p.MaxSizeBytes)
	}
}

func TestAccepts(t *testing.T) {
	p := Default()

	tests := []struct {
		name  string
		file  models.Candidate
		codes []string
	}{
		{"valid csv", csvFile("a.csv", 100), nil},
		{"csv by extension only", models.Candidate{Name: "a.csv", Size: 10}, nil},
		{"wrong type", models.Candidate{Name: "a.png", Size: 10, ContentType: "image/png"}, []string{models.CodeInvalidType}},
		{"too large", csvFile("big.csv", 5*1024*1024), []string{models.CodeTooLarge}},
		{"empty accepted by default", csvFile("empty.csv", 0), nil},
		{"wrong type and too large", models.Candidate{Name: "a.png", Size: 5 * 1024 * 1024, ContentType: "image/png"},
			[]string{models.CodeInvalidType, models.CodeTooLarge}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasons := p.Accepts(tt.file)
			if len(reasons) != len(tt.codes) {
				t.Fatalf("Accepts() returned %d reasons, want %d: %+v", len(reasons), len(tt.codes), reasons)
			}
			for i, code := range tt.codes {
				if reasons[i].Code != code {
					t.Errorf("reason[%d].Code = %q, want %q", i, reasons[i].Code, code)
				}
			}
		})
	}
}

func TestAccepts_MinSize(t *testing.T) {
	p := New(WithMinSize(10))

	if reasons := p.Accepts(csvFile("small.csv", 9)); len(reasons) != 1 || reasons[0].Code != models.CodeTooSmall {
		t.Errorf("Accepts(9 B) = %+v, want %s", reasons, models.CodeTooSmall)
	} else if reasons[0].Message != "File is too small. Min size is 10 B" {
		t.Errorf("Message = %q", reasons[0].Message)
	}
	if reasons := p.Accepts(csvFile("ok.csv", 10)); len(reasons) != 0 {
		t.Errorf("Accepts(10 B) = %+v, want none", reasons)
	}
	if got := New(WithMinSize(-5)).MinSizeBytes; got != 0 {
		t.Errorf("MinSizeBytes = %d, want 0", got)
	}
}

func TestCheck_EmptyFileAccepted(t *testing.T) {
	accepted, rejected := Default().Check([]models.Candidate{csvFile("empty.csv", 0)})
	if len(accepted) != 1 || len(rejected) != 0 {
		t.Errorf("Check(empty.csv) accepted=%d rejected=%+v, want 1 and none", len(accepted), rejected)
	}
}

func TestNotice_FirstReasonOnly(t *testing.T) {
	p := New(WithMaxSize(10))

	_, rejected := p.Check([]models.Candidate{{Name: "big.txt", Size: 100, ContentType: "text/plain"}})
	got, ok := p.Notice(rejected)
	if want := "File type must be one of text/csv, .csv"; !ok || got != want {
		t.Errorf("Notice() = (%q, %v), want (%q, true)", got, ok, want)
	}
}

func TestCheck_SingleModeRejectsMultiFileBatch(t *testing.T) {
	p := Default()

	accepted, rejected := p.Check([]models.Candidate{csvFile("a.csv", 1), csvFile("b.csv", 1)})

	if len(accepted) != 0 {
		t.Errorf("accepted = %d, want 0", len(accepted))
	}
	if len(rejected) != 2 {
		t.Fatalf("rejected = %d, want 2", len(rejected))
	}
	if rejected[0].Reasons[0].Code != models.CodeTooManyFiles {
		t.Errorf("code = %q, want %q", rejected[0].Reasons[0].Code, models.CodeTooManyFiles)
	}
}

func TestCheck_SplitsBatch(t *testing.T) {
	p := New(WithMaxFiles(5), WithMultiple(true))

	accepted, rejected := p.Check([]models.Candidate{
		csvFile("a.csv", 10),
		csvFile("big.csv", 10*1024*1024),
		csvFile("b.csv", 20),
	})

	if len(accepted) != 2 {
		t.Errorf("accepted = %d, want 2", len(accepted))
	}
	if len(rejected) != 1 || rejected[0].File.Name != "big.csv" {
		t.Errorf("rejected = %+v, want big.csv only", rejected)
	}
}

func TestNotice(t *testing.T) {
	p := Default()
	wrongType := models.FileRejection{
		File:    models.Candidate{Name: "a.png"},
		Reasons: []models.Rejection{{Code: models.CodeInvalidType, Message: "File type must be one of text/csv, .csv"}},
	}
	tooLarge := models.FileRejection{
		File:    models.Candidate{Name: "big.csv"},
		Reasons: []models.Rejection{{Code: models.CodeTooLarge, Message: "ignored"}},
	}

	typeThenSize := models.FileRejection{
		File: models.Candidate{Name: "big.txt"},
		Reasons: []models.Rejection{
			{Code: models.CodeInvalidType, Message: "File type must be one of text/csv, .csv"},
			{Code: models.CodeTooLarge, Message: "ignored"},
		},
	}

	tests := []struct {
		name     string
		rejected []models.FileRejection
		want     string
		ok       bool
	}{
		{"none", nil, "", false},
		{"generic only", []models.FileRejection{wrongType}, "File type must be one of text/csv, .csv", true},
		{"size wins over earlier generic", []models.FileRejection{wrongType, tooLarge}, "File is too large. Max size is 4.0 MiB", true},
		{"size alone", []models.FileRejection{tooLarge}, "File is too large. Max size is 4.0 MiB", true},
		{"size as a later reason does not win", []models.FileRejection{typeThenSize}, "File type must be one of text/csv, .csv", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Notice(tt.rejected)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Notice() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestInvalidTypeMessage(t *testing.T) {
	p := New(WithAccepted(".tsv"))

	reasons := p.Accepts(csvFile("a.csv", 1))
	if len(reasons) != 1 {
		t.Fatalf("reasons = %d, want 1", len(reasons))
	}
	if reasons[0].Message != "File type must be .tsv" {
		t.Errorf("Message = %q, want %q", reasons[0].Message, "File type must be .tsv")
	}
}
