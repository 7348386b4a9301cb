package progress

import (
	"io"

	"github.com/nimbus-data/nimbus-ingest/internal/ingest"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// BatchUI renders the progress of one ingest batch. Both the multi-bar
// and the single-file UI implement it.
type BatchUI interface {
	// Track registers staged files; already tracked tokens are ignored
	Track(files []models.StagedFile)

	// OnStep matches ingest.ProgressFunc
	OnStep(token string, step ingest.Step)

	// WrapReader matches ingest.ReaderWrapper
	WrapReader(file models.StagedFile, r io.Reader) io.Reader

	// Complete marks one file as finished
	Complete(token string, result models.IngestionResult, err error)

	// Wait blocks until every tracked file completed
	Wait()

	// Writer returns an io.Writer that prints above the bars
	Writer() io.Writer

	IsTerminal() bool
}
