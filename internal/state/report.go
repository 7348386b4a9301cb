package state

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// ReportManager keeps a CSV record of ingested files, one row per file.
// Re-running with the same report path updates rows by source name.
type ReportManager struct {
	reportDir  string
	reportFile string
}

// ReportEntry is one row of the report.
type ReportEntry struct {
	SourceName string
	FileName   string
	Status     models.Stage
	Timestamp  time.Time
	FileID     string
	DatasetID  string
	Columns    []string
	Error      string
}

var reportHeader = []string{
	"SourceName", "FileName", "Status", "Timestamp", "FileID", "DatasetID", "Columns", "ErrorMessage",
}

// NewReportManager creates a report manager writing to path. The directory
// is created if needed.
func NewReportManager(path string) (*ReportManager, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	reportDir := filepath.Dir(absPath)
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	return &ReportManager{
		reportDir:  reportDir,
		reportFile: filepath.Base(absPath),
	}, nil
}

// Path returns the full path to the report file.
func (rm *ReportManager) Path() string {
	return filepath.Join(rm.reportDir, rm.reportFile)
}

// Load reads all entries. A missing file yields an empty list.
func (rm *ReportManager) Load() ([]ReportEntry, error) {
	file, err := os.Open(rm.Path())
	if os.IsNotExist(err) {
		return []ReportEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	startIdx := 0
	if len(records) > 0 && records[0][0] == reportHeader[0] {
		startIdx = 1
	}

	entries := make([]ReportEntry, 0, len(records)-startIdx)
	for _, record := range records[startIdx:] {
		if len(record) < len(reportHeader) {
			continue
		}
		timestamp, _ := time.Parse(time.RFC3339, record[3])
		var columns []string
		if record[6] != "" {
			columns = strings.Split(record[6], ";")
		}
		entries = append(entries, ReportEntry{
			SourceName: record[0],
			FileName:   record[1],
			Status:     models.Stage(record[2]),
			Timestamp:  timestamp,
			FileID:     record[4],
			DatasetID:  record[5],
			Columns:    columns,
			Error:      record[7],
		})
	}
	return entries, nil
}

// Save overwrites the report with entries.
func (rm *ReportManager) Save(entries []ReportEntry) error {
	file, err := os.Create(rm.Path())
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(reportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			e.SourceName,
			e.FileName,
			string(e.Status),
			e.Timestamp.Format(time.RFC3339),
			e.FileID,
			e.DatasetID,
			strings.Join(e.Columns, ";"),
			e.Error,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Update replaces entries with the same source name and appends the rest.
func (rm *ReportManager) Update(entries ...ReportEntry) error {
	existing, err := rm.Load()
	if err != nil {
		return err
	}

	index := make(map[string]int, len(existing))
	for i, e := range existing {
		index[e.SourceName] = i
	}
	for _, e := range entries {
		if i, ok := index[e.SourceName]; ok {
			existing[i] = e
			continue
		}
		index[e.SourceName] = len(existing)
		existing = append(existing, e)
	}

	return rm.Save(existing)
}

// EntriesFromSnapshot builds report rows for every staged file, taking
// ids and columns from results.
func EntriesFromSnapshot(snap Snapshot, results []models.IngestionResult, now time.Time) []ReportEntry {
	byToken := make(map[string]models.IngestionResult, len(results))
	for _, r := range results {
		byToken[r.Token] = r
	}

	entries := make([]ReportEntry, 0, len(snap.Files))
	for i, f := range snap.Files {
		st := snap.Statuses[i]
		e := ReportEntry{
			SourceName: f.Name,
			Status:     st.Stage,
			Timestamp:  now,
		}
		if st.Stage == models.StageError {
			e.Error = st.Detail
			if e.Error == "" {
				e.Error = st.ErrorMessage
			}
		}
		if r, ok := byToken[f.Token]; ok {
			e.FileName = r.FileName
			e.FileID = r.FileID
			e.DatasetID = r.DatasetID
			e.Columns = r.Columns
		}
		entries = append(entries, e)
	}
	return entries
}
