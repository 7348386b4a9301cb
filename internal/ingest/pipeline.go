// Package ingest drives staged files through the upload protocol and
// coordinates batches between the selection session and the pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/nimbus-data/nimbus-ingest/internal/cloud"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
	"github.com/nimbus-data/nimbus-ingest/internal/validation"
)

// Step names one stage of the upload protocol.
type Step string

const (
	StepAcquireSlot Step = "acquire-slot"
	StepTransfer    Step = "transfer"
	StepExtract     Step = "extract"
	StepRegister    Step = "register"
)

// Label returns a short progress label for the step.
func (s Step) Label() string {
	switch s {
	case StepAcquireSlot:
		return "requesting slot"
	case StepTransfer:
		return "uploading"
	case StepExtract:
		return "extracting"
	case StepRegister:
		return "registering"
	default:
		return string(s)
	}
}

// Steps lists the protocol stages in execution order.
var Steps = []Step{StepAcquireSlot, StepTransfer, StepExtract, StepRegister}

var (
	// ErrEmptyFileID is returned when the registrar answers without an id.
	ErrEmptyFileID = errors.New("registrar returned an empty file id")

	// ErrNoContent is returned for a staged file that cannot be opened.
	ErrNoContent = errors.New("file has no content")
)

// StepError reports which step failed. Earlier steps are not rolled back.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Extractor triggers server-side parsing of a transferred file.
type Extractor interface {
	Extract(ctx context.Context, filename string, user models.User) (models.Extraction, error)
}

// Registrar persists file metadata and returns a durable file id.
type Registrar interface {
	Register(ctx context.Context, record models.FileRecord) (string, error)
}

// ProgressFunc is called as each step begins.
type ProgressFunc func(token string, step Step)

// ReaderWrapper wraps the transfer body, typically for byte progress.
type ReaderWrapper func(file models.StagedFile, r io.Reader) io.Reader

// PipelineConfig holds the collaborators of a Pipeline.
type PipelineConfig struct {
	Issuer     cloud.SlotIssuer
	Transferer cloud.Transferer
	Extractor  Extractor
	Registrar  Registrar
	User       models.User
	Logger     *logging.Logger

	OnStep     ProgressFunc     // optional
	WrapReader ReaderWrapper    // optional
	Now        func() time.Time // optional, for naming
}

// Pipeline runs the four upload steps for one file. Safe for concurrent
// use; each Run is independent.
type Pipeline struct {
	issuer     cloud.SlotIssuer
	transferer cloud.Transferer
	extractor  Extractor
	registrar  Registrar
	user       models.User
	logger     *logging.Logger
	onStep     ProgressFunc
	wrapReader ReaderWrapper
	now        func() time.Time
}

// NewPipeline validates cfg and creates a pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	switch {
	case cfg.Issuer == nil:
		return nil, errors.New("slot issuer is required")
	case cfg.Transferer == nil:
		return nil, errors.New("transferer is required")
	case cfg.Extractor == nil:
		return nil, errors.New("extractor is required")
	case cfg.Registrar == nil:
		return nil, errors.New("registrar is required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		issuer:     cfg.Issuer,
		transferer: cfg.Transferer,
		extractor:  cfg.Extractor,
		registrar:  cfg.Registrar,
		user:       cfg.User,
		logger:     logging.OrDefault(cfg.Logger),
		onStep:     cfg.OnStep,
		wrapReader: cfg.WrapReader,
		now:        now,
	}, nil
}

// Run executes acquire-slot, transfer, extract and register in order. The
// first failure stops the run and is returned as a *StepError.
func (p *Pipeline) Run(ctx context.Context, file models.StagedFile) (models.IngestionResult, error) {
	name := UniqueName(validation.SanitizeFilename(file.Name), p.now)
	log := p.logger.With().Str("token", file.Token).Str("file", file.Name).Str("object", name).Logger()
	start := time.Now()

	// 1. Acquire slot
	p.begin(file.Token, StepAcquireSlot)
	target, err := p.issuer.RequestSlot(ctx, name)
	if err != nil {
		return models.IngestionResult{}, &StepError{Step: StepAcquireSlot, Err: err}
	}
	log.Debug().Str("provider", target.Provider).Msg("Upload slot acquired")

	// 2. Transfer bytes
	p.begin(file.Token, StepTransfer)
	if err := p.transfer(ctx, file, target); err != nil {
		return models.IngestionResult{}, &StepError{Step: StepTransfer, Err: err}
	}

	// 3. Extract
	p.begin(file.Token, StepExtract)
	extraction, err := p.extractor.Extract(ctx, name, p.user)
	if err != nil {
		return models.IngestionResult{}, &StepError{Step: StepExtract, Err: err}
	}

	// 4. Register
	p.begin(file.Token, StepRegister)
	fileID, err := p.registrar.Register(ctx, models.FileRecord{
		Ext:         Ext(file.Name),
		Name:        name,
		Size:        file.Size,
		ContentType: file.ContentType,
		URI:         BaseURL(target.URL),
	})
	if err != nil {
		return models.IngestionResult{}, &StepError{Step: StepRegister, Err: err}
	}
	if fileID == "" {
		return models.IngestionResult{}, &StepError{Step: StepRegister, Err: ErrEmptyFileID}
	}

	columns := extraction.Columns
	if columns == nil {
		columns = []string{}
	}

	log.Debug().Str("file_id", fileID).Str("dataset_id", extraction.DatasetID).
		Int("columns", len(columns)).Dur("elapsed", time.Since(start)).Msg("File ingested")

	return models.IngestionResult{
		Token:      file.Token,
		SourceName: file.Name,
		FileName:   name,
		FileID:     fileID,
		DatasetID:  extraction.DatasetID,
		Columns:    columns,
	}, nil
}

func (p *Pipeline) transfer(ctx context.Context, file models.StagedFile, target models.SlotTarget) error {
	if file.Open == nil {
		return ErrNoContent
	}
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer rc.Close()

	var body io.Reader = rc
	if p.wrapReader != nil {
		body = p.wrapReader(file, body)
	}
	return p.transferer.Transfer(ctx, target, body, file.Size, file.ContentType)
}

func (p *Pipeline) begin(token string, step Step) {
	if p.onStep != nil {
		p.onStep(token, step)
	}
}

// BaseURL strips the query and fragment from a transfer URL, removing any
// presigned authorization parameters. Unparseable input is cut at '?'.
func BaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		for i := 0; i < len(raw); i++ {
			if raw[i] == '?' || raw[i] == '#' {
				return raw[:i]
			}
		}
		return raw
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
