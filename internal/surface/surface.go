package surface

import (
	"context"
	"errors"
	"sync"

	"github.com/nimbus-data/nimbus-ingest/internal/ingest"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// ErrLocked is returned when the selection is full and cannot take more files.
var ErrLocked = errors.New("file limit reached")

// Submitter receives candidate batches.
type Submitter interface {
	Submit(ctx context.Context, candidates []models.Candidate) *ingest.Batch
}

// LockState reports whether new files would all be dropped.
type LockState interface {
	Locked() bool
}

// Picker opens a native file picker and returns the chosen paths. An empty
// result means the user cancelled.
type Picker interface {
	Pick(ctx context.Context, multiple bool, accept []string) ([]string, error)
}

// Surface is the drop and browse input source.
type Surface struct {
	submitter Submitter
	lock      LockState
	picker    Picker
	opts      Options
	multiple  bool
	accept    []string
	logger    *logging.Logger

	mu       sync.Mutex
	rejected bool
}

// Config wires a Surface. Lock and Picker may be nil.
type Config struct {
	Submitter Submitter
	Lock      LockState
	Picker    Picker
	Options   Options
	Multiple  bool
	Accept    []string
	Logger    *logging.Logger
}

// New creates a surface.
func New(cfg Config) *Surface {
	return &Surface{
		submitter: cfg.Submitter,
		lock:      cfg.Lock,
		picker:    cfg.Picker,
		opts:      cfg.Options,
		multiple:  cfg.Multiple,
		accept:    cfg.Accept,
		logger:    logging.OrDefault(cfg.Logger),
	}
}

// Disabled reports whether the surface currently ignores input.
func (s *Surface) Disabled() bool {
	return s.lock != nil && s.lock.Locked()
}

// Rejected reports whether the last batch had rejected files. Frontends use
// it to paint the drop area as refused.
func (s *Surface) Rejected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

// Drop submits dropped paths as one batch. Path errors are returned
// alongside the batch; the usable paths are still submitted.
func (s *Surface) Drop(ctx context.Context, paths []string) (*ingest.Batch, []error) {
	if s.Disabled() {
		s.logger.Debug().Int("paths", len(paths)).Msg("Drop ignored, file limit reached")
		return nil, []error{ErrLocked}
	}

	candidates, errs := FromPaths(paths, s.opts)
	for _, err := range errs {
		s.logger.Warn().Err(err).Msg("Skipping path")
	}
	if len(candidates) == 0 {
		return nil, errs
	}

	batch := s.submitter.Submit(ctx, candidates)

	s.mu.Lock()
	s.rejected = len(batch.Rejected) > 0
	s.mu.Unlock()

	return batch, errs
}

// Browse opens the picker and submits the chosen files. A cancelled
// picker returns a nil batch and no error.
func (s *Surface) Browse(ctx context.Context) (*ingest.Batch, []error) {
	if s.picker == nil {
		s.logger.Info().Msg("No interactive picker available")
		return nil, nil
	}
	if s.Disabled() {
		return nil, []error{ErrLocked}
	}

	paths, err := s.picker.Pick(ctx, s.multiple, s.accept)
	if err != nil {
		return nil, []error{err}
	}
	if len(paths) == 0 {
		return nil, nil
	}
	return s.Drop(ctx, paths)
}
