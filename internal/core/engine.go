// Package core wires configuration, transport, storage providers, the
// upload pipeline and the orchestrator into one engine shared by the CLI
// and the GUI.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nimbus-data/nimbus-ingest/internal/api"
	"github.com/nimbus-data/nimbus-ingest/internal/cloud/providers"
	"github.com/nimbus-data/nimbus-ingest/internal/config"
	"github.com/nimbus-data/nimbus-ingest/internal/events"
	inthttp "github.com/nimbus-data/nimbus-ingest/internal/http"
	"github.com/nimbus-data/nimbus-ingest/internal/ingest"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
	"github.com/nimbus-data/nimbus-ingest/internal/state"
)

// Hooks are the frontend callbacks. Every field is optional; without
// OnUploadComplete files are staged but never uploaded.
type Hooks struct {
	OnSelectionChange func(files []models.StagedFile)
	OnUploadComplete  func(results []models.IngestionResult)
	OnFileSettled     func(file models.StagedFile, result models.IngestionResult, err error)
	OnStep            ingest.ProgressFunc
	WrapReader        ingest.ReaderWrapper
}

// Engine owns one ingest session and everything needed to upload into it.
type Engine struct {
	config       *config.Config
	eventBus     *events.EventBus
	logger       *logging.Logger
	apiClient    *api.Client
	session      *state.Session
	pipeline     *ingest.Pipeline
	orchestrator *ingest.Orchestrator

	stopOnce sync.Once
}

// NewEngine creates a new engine instance. A nil cfg uses defaults.
func NewEngine(ctx context.Context, cfg *config.Config, logger *logging.Logger, hooks Hooks) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	logger = logging.OrDefault(logger)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	eventBus := events.NewEventBus(0)

	apiClient, err := api.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	transferClient, err := inthttp.CreateOptimizedClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer client: %w", err)
	}

	issuer, transferer, err := providers.NewFactory(cfg, apiClient, transferClient, logger).Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage provider: %w", err)
	}

	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{
		Issuer:     issuer,
		Transferer: transferer,
		Extractor:  apiClient,
		Registrar:  apiClient,
		User:       cfg.User(),
		Logger:     logger,
		OnStep:     ingest.PublishSteps(eventBus, hooks.OnStep),
		WrapReader: hooks.WrapReader,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	session := state.NewSession(cfg.Policy(), eventBus, logger)

	orchestrator, err := ingest.NewOrchestrator(ingest.OrchestratorConfig{
		Session:           session,
		Pipeline:          pipeline,
		Bus:               eventBus,
		Logger:            logger,
		AuthToken:         cfg.AuthToken,
		OnSelectionChange: hooks.OnSelectionChange,
		OnUploadComplete:  hooks.OnUploadComplete,
		OnFileSettled:     hooks.OnFileSettled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	logger.Debug().
		Str("api_url", apiClient.BaseURL()).
		Str("provider", cfg.Storage.Provider).
		Int("max_files", session.Policy().MaxFiles).
		Int64("max_size", session.Policy().MaxSizeBytes).
		Msg("Engine ready")

	return &Engine{
		config:       cfg,
		eventBus:     eventBus,
		logger:       logger,
		apiClient:    apiClient,
		session:      session,
		pipeline:     pipeline,
		orchestrator: orchestrator,
	}, nil
}

// GetConfig returns the engine configuration.
func (e *Engine) GetConfig() *config.Config {
	return e.config
}

// Events returns the event bus
func (e *Engine) Events() *events.EventBus {
	return e.eventBus
}

// Session returns the selection session.
func (e *Engine) Session() *state.Session {
	return e.session
}

// Orchestrator returns the batch orchestrator.
func (e *Engine) Orchestrator() *ingest.Orchestrator {
	return e.orchestrator
}

// API returns the API client.
func (e *Engine) API() *api.Client {
	return e.apiClient
}

// Submit stages candidates and starts their uploads.
func (e *Engine) Submit(ctx context.Context, candidates []models.Candidate) *ingest.Batch {
	return e.orchestrator.Submit(ctx, candidates)
}

// Ingest submits candidates and waits for the batch to settle. It returns
// the successes and an error when any file was rejected or failed.
func (e *Engine) Ingest(ctx context.Context, candidates []models.Candidate) ([]models.IngestionResult, error) {
	batch := e.Submit(ctx, candidates)

	select {
	case <-batch.Done():
	case <-ctx.Done():
		e.orchestrator.Clear()
		<-batch.Done()
		return batch.Results(), ctx.Err()
	}

	results := batch.Results()
	var errs []error
	if len(batch.Rejected) > 0 {
		errs = append(errs, fmt.Errorf("%d file(s) rejected: %s", len(batch.Rejected), batch.Notice))
	}
	if n := batch.Failed(); n > 0 {
		errs = append(errs, fmt.Errorf("%d file(s) failed to upload", n))
	}
	return results, errors.Join(errs...)
}

// Stop cancels in-flight uploads and closes the event bus.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.orchestrator.Close()
		e.eventBus.Close()
	})
}
