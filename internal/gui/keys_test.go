package gui

import (
	"reflect"
	"testing"

	"fyne.io/fyne/v2"

	"github.com/nimbus-data/nimbus-ingest/internal/models"
	"github.com/nimbus-data/nimbus-ingest/internal/navigation"
)

func TestNavigationKey(t *testing.T) {
	tests := []struct {
		name fyne.KeyName
		want navigation.Key
	}{
		{fyne.KeyUp, navigation.KeyUp},
		{fyne.KeyDown, navigation.KeyDown},
		{fyne.KeyLeft, navigation.KeyLeft},
		{fyne.KeyRight, navigation.KeyRight},
		{fyne.KeyReturn, navigation.KeyEnter},
		{fyne.KeyEnter, navigation.KeyEnter},
		{fyne.KeySpace, navigation.KeySpace},
		{fyne.KeyDelete, navigation.KeyDelete},
		{fyne.KeyBackspace, navigation.KeyBackspace},
		{fyne.KeyEscape, navigation.KeyEscape},
		{fyne.KeyA, navigation.KeyOther},
		{fyne.KeyTab, navigation.KeyOther},
	}
	for _, tt := range tests {
		if got := navigationKey(tt.name); got != tt.want {
			t.Errorf("navigationKey(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNavigationKey_DrivesController(t *testing.T) {
	target := &listTarget{n: 3, active: -1}
	c := navigation.NewController(target, nil, navigation.DefaultOptions())

	c.HandleKey(navigationKey(fyne.KeyDown))
	c.HandleKey(navigationKey(fyne.KeyDown))
	if target.active != 1 {
		t.Fatalf("active = %d, want 1", target.active)
	}
	c.HandleKey(navigationKey(fyne.KeyDelete))
	if target.n != 2 || target.active != 0 {
		t.Errorf("after delete n = %d, active = %d, want 2, 0", target.n, target.active)
	}
	c.HandleKey(navigationKey(fyne.KeyEscape))
	if target.active != -1 {
		t.Errorf("after escape active = %d, want -1", target.active)
	}
}

type listTarget struct {
	n, active int
}

func (l *listTarget) Len() int            { return l.n }
func (l *listTarget) Active() int         { return l.active }
func (l *listTarget) SetActive(index int) { l.active = index }
func (l *listTarget) Remove(index int) bool {
	if index < 0 || index >= l.n {
		return false
	}
	l.n--
	return true
}

func TestPickerExtensions(t *testing.T) {
	tests := []struct {
		name   string
		accept []string
		want   []string
	}{
		{"extensions", []string{".CSV", ".tsv"}, []string{".csv", ".tsv"}},
		{"mime and extension", []string{"text/csv", ".csv"}, []string{".csv"}},
		{"wildcard", []string{"text/*", ".csv"}, nil},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickerExtensions(tt.accept); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("pickerExtensions(%v) = %v, want %v", tt.accept, got, tt.want)
			}
		})
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		st   models.UploadStatus
		want string
	}{
		{models.UploadStatus{Stage: models.StageUploading}, "Uploading…"},
		{models.UploadStatus{Stage: models.StageSuccess}, "Uploaded"},
		{models.UploadStatus{Stage: models.StageError, ErrorMessage: "Upload failed"}, "Upload failed"},
		{models.UploadStatus{Stage: models.StageError}, "Failed"},
	}
	for _, tt := range tests {
		if got := statusText(tt.st); got != tt.want {
			t.Errorf("statusText(%+v) = %q, want %q", tt.st, got, tt.want)
		}
	}
}

func TestLimitSummary(t *testing.T) {
	if got := limitSummary(1); got != "one file" {
		t.Errorf("limitSummary(1) = %q", got)
	}
	if got := limitSummary(5); got != "at most 5 files" {
		t.Errorf("limitSummary(5) = %q", got)
	}
}
