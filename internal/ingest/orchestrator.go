package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/nimbus-data/nimbus-ingest/internal/events"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
	"github.com/nimbus-data/nimbus-ingest/internal/state"
)

// ErrRemoved is reported for a file removed while its pipeline ran.
var ErrRemoved = errors.New("file removed during upload")

// ErrClosed is reported for files staged after Close.
var ErrClosed = errors.New("orchestrator closed")

// Runner executes the upload protocol for one staged file.
type Runner interface {
	Run(ctx context.Context, file models.StagedFile) (models.IngestionResult, error)
}

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Session   *state.Session
	Pipeline  Runner
	Bus       *events.EventBus
	Logger    *logging.Logger
	AuthToken string

	// OnSelectionChange receives the staged list after every change.
	OnSelectionChange func(files []models.StagedFile)

	// OnUploadComplete receives the successes of a batch once every
	// pipeline of that batch settled. Uploads only run when it is set.
	OnUploadComplete func(results []models.IngestionResult)

	// OnFileSettled is called as each staged file's pipeline settles.
	OnFileSettled func(file models.StagedFile, result models.IngestionResult, err error)
}

// Orchestrator accepts batches into the session and fans them out to the
// pipeline. Thread-safe.
type Orchestrator struct {
	session           *state.Session
	runner            Runner
	bus               *events.EventBus
	logger            *logging.Logger
	onSelectionChange func([]models.StagedFile)
	onUploadComplete  func([]models.IngestionResult)
	onFileSettled     func(models.StagedFile, models.IngestionResult, error)

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	closed   bool
}

// NewOrchestrator creates an orchestrator. A missing auth token is reported
// as a warning; the orchestrator stays usable and uploads fail downstream.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Session == nil {
		return nil, errors.New("session is required")
	}
	if cfg.OnUploadComplete != nil && cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required when uploads are enabled")
	}

	o := &Orchestrator{
		session:           cfg.Session,
		runner:            cfg.Pipeline,
		bus:               cfg.Bus,
		logger:            logging.OrDefault(cfg.Logger),
		onSelectionChange: cfg.OnSelectionChange,
		onUploadComplete:  cfg.OnUploadComplete,
		onFileSettled:     cfg.OnFileSettled,
		inflight:          make(map[string]context.CancelFunc),
	}

	if cfg.AuthToken == "" {
		o.logger.Warn().Msg(MissingAuthWarning)
		o.bus.Publish(events.NewWarningEvent(MissingAuthWarning))
	}

	return o, nil
}

// Batch tracks the pipelines started by one Submit call.
type Batch struct {
	Staged   []models.StagedFile
	Rejected []models.FileRejection
	Notice   string

	done    chan struct{}
	mu      sync.Mutex
	results []models.IngestionResult
	failed  int
}

func newBatch() *Batch {
	return &Batch{done: make(chan struct{})}
}

// Done is closed once every pipeline of the batch settled.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch settles and returns its successes.
func (b *Batch) Wait() []models.IngestionResult {
	<-b.done
	return b.Results()
}

// Results returns the successes recorded so far, in staging order.
func (b *Batch) Results() []models.IngestionResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.IngestionResult, 0, len(b.results))
	for _, r := range b.results {
		if r.Token != "" {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the number of pipelines that ended in error.
func (b *Batch) Failed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed
}

// Submit checks candidates against the policy, stages the accepted ones
// and, when an upload callback is registered, starts one pipeline per newly
// staged file. The returned batch settles when all of them have.
func (o *Orchestrator) Submit(ctx context.Context, candidates []models.Candidate) *Batch {
	batch := newBatch()

	accepted, rejected := o.session.Policy().Check(candidates)
	result := o.session.Accept(accepted, rejected)
	batch.Staged = result.Staged
	batch.Rejected = rejected
	batch.Notice = result.Notice

	if result.Notice != "" {
		o.logger.Info().Int("rejected", len(rejected)).Msg(result.Notice)
	}

	for _, token := range result.Removed {
		o.release(token)
	}
	if len(result.Removed) > 0 {
		o.logger.Debug().Int("files", len(result.Removed)).Msg("Selection replaced, pipelines cancelled")
	}

	if result.Changed() {
		o.notifySelection()
	}

	if o.onUploadComplete == nil || len(result.Staged) == 0 {
		close(batch.done)
		return batch
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		for _, f := range result.Staged {
			o.session.MarkToken(f.Token, models.StageError, UploadFailedMessage, ErrClosed.Error())
			o.settled(f, models.IngestionResult{}, ErrClosed)
		}
		close(batch.done)
		return batch
	}
	contexts := make([]context.Context, len(result.Staged))
	for i, f := range result.Staged {
		fileCtx, cancel := context.WithCancel(ctx)
		o.inflight[f.Token] = cancel
		contexts[i] = fileCtx
	}
	o.mu.Unlock()

	batch.results = make([]models.IngestionResult, len(result.Staged))

	o.logger.Info().Int("files", len(result.Staged)).Msg("Starting uploads")

	var wg sync.WaitGroup
	for i, f := range result.Staged {
		wg.Add(1)
		go func(i int, f models.StagedFile, fileCtx context.Context) {
			defer wg.Done()
			o.runOne(fileCtx, batch, i, f)
		}(i, f, contexts[i])
	}

	go func() {
		wg.Wait()
		o.complete(batch)
	}()

	return batch
}

func (o *Orchestrator) runOne(ctx context.Context, batch *Batch, i int, f models.StagedFile) {
	res, err := o.runner.Run(ctx, f)
	o.release(f.Token)

	if err != nil {
		if !o.session.MarkToken(f.Token, models.StageError, UploadFailedMessage, err.Error()) {
			// removed while in flight
			o.settled(f, models.IngestionResult{}, ErrRemoved)
			return
		}

		batch.mu.Lock()
		batch.failed++
		batch.mu.Unlock()

		var stepErr *StepError
		step := ""
		if errors.As(err, &stepErr) {
			step = string(stepErr.Step)
		}
		o.logger.Error().Err(err).Str("file", f.Name).Str("step", step).Msg("Upload failed")
		o.bus.PublishLog(events.ErrorLevel, UploadFailedMessage, step, f.Token, err)
		o.settled(f, models.IngestionResult{}, err)
		return
	}

	if !o.session.MarkToken(f.Token, models.StageSuccess, "", "") {
		// removed while in flight
		o.settled(f, models.IngestionResult{}, ErrRemoved)
		return
	}

	batch.mu.Lock()
	batch.results[i] = res
	batch.mu.Unlock()

	o.logger.Info().Str("file", f.Name).Str("file_id", res.FileID).Msg("Upload complete")
	o.settled(f, res, nil)
}

func (o *Orchestrator) settled(f models.StagedFile, res models.IngestionResult, err error) {
	if o.onFileSettled != nil {
		o.onFileSettled(f, res, err)
	}
}

func (o *Orchestrator) complete(batch *Batch) {
	batch.mu.Lock()
	for i, r := range batch.results {
		if r.Token != "" && o.session.IndexOf(r.Token) < 0 {
			batch.results[i] = models.IngestionResult{}
		}
	}
	batch.mu.Unlock()

	results := batch.Results()
	failed := batch.Failed()

	if failed > 0 {
		o.bus.Publish(events.NewNoticeEvent(BatchFailedNotice))
	}
	o.bus.Publish(NewUploadCompleteEvent(results, failed))

	o.logger.Info().Int("succeeded", len(results)).Int("failed", failed).Msg("Batch settled")

	o.onUploadComplete(results)
	close(batch.done)
}

func (o *Orchestrator) release(token string) {
	o.mu.Lock()
	if cancel, ok := o.inflight[token]; ok {
		cancel()
		delete(o.inflight, token)
	}
	o.mu.Unlock()
}

// Remove cancels any in-flight pipeline of the file at index and removes
// the file with its status. A late result for it is discarded.
func (o *Orchestrator) Remove(index int) bool {
	files := o.session.Files()
	if index < 0 || index >= len(files) {
		return false
	}
	token := files[index].Token

	if _, ok := o.session.RemoveToken(token); !ok {
		return false
	}
	o.release(token)

	o.logger.Debug().Str("file", files[index].Name).Msg("File removed")
	o.notifySelection()
	return true
}

// Clear cancels every pipeline and empties the selection.
func (o *Orchestrator) Clear() {
	o.cancelAll()
	o.session.Clear()
	o.notifySelection()
}

// Len returns the number of staged files.
func (o *Orchestrator) Len() int {
	return o.session.Len()
}

// Active returns the focused index, or -1.
func (o *Orchestrator) Active() int {
	return o.session.Active()
}

// SetActive moves the keyboard cursor.
func (o *Orchestrator) SetActive(index int) {
	o.session.SetActive(index)
}

// Session returns the underlying selection session.
func (o *Orchestrator) Session() *state.Session {
	return o.session
}

// Uploading reports whether any pipeline is still running.
func (o *Orchestrator) Uploading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight) > 0
}

// Close cancels all in-flight pipelines. Later batches are staged but
// immediately marked failed.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cancelAll()
}

func (o *Orchestrator) cancelAll() {
	o.mu.Lock()
	for token, cancel := range o.inflight {
		cancel()
		delete(o.inflight, token)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) notifySelection() {
	if o.onSelectionChange != nil {
		o.onSelectionChange(o.session.Files())
	}
}
