package state

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nimbus-data/nimbus-ingest/internal/events"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
	"github.com/nimbus-data/nimbus-ingest/internal/policy"
)

// Publisher is the subset of the event bus the session needs.
type Publisher interface {
	Publish(event events.Event)
}

// Session owns the staged files, their upload statuses and the cursor.
// The three are always mutated under one lock, so a reader never sees
// files and statuses of different lengths. Thread-safe.
type Session struct {
	policy    policy.Policy
	publisher Publisher
	logger    *logging.Logger

	files    []models.StagedFile
	statuses []models.UploadStatus
	active   int // -1 means no item is focused

	newToken func() string

	mu sync.RWMutex
}

// NewSession creates an empty session for the given policy.
func NewSession(p policy.Policy, publisher Publisher, logger *logging.Logger) *Session {
	return &Session{
		policy:    p.Normalize(),
		publisher: publisher,
		logger:    logging.OrDefault(logger),
		files:     make([]models.StagedFile, 0),
		statuses:  make([]models.UploadStatus, 0),
		active:    -1,
		newToken:  uuid.NewString,
	}
}

// AcceptResult describes what one Accept call changed.
type AcceptResult struct {
	Staged   []models.StagedFile // files added by this batch, in order
	Dropped  int                 // accepted files discarded because the list was full
	Replaced bool                // the previous list was discarded
	Removed  []string            // tokens of the discarded files
	Notice   string              // rejection notice, empty when nothing was rejected
}

// Changed reports whether the staged list differs after the call.
func (r AcceptResult) Changed() bool {
	return len(r.Staged) > 0 || r.Replaced
}

// Accept stages a batch of accepted files and surfaces one rejection notice.
//
// In replace mode the batch replaces the list, truncated to MaxFiles.
// Otherwise files are appended until the list is full and the rest are
// dropped without a notice. Tokens of replaced files are returned in
// Removed. Every newly staged file starts as uploading; statuses of files
// kept from before are left alone.
func (s *Session) Accept(newFiles []models.Candidate, rejected []models.FileRejection) AcceptResult {
	var result AcceptResult

	notice, hasNotice := s.policy.Notice(rejected)
	if hasNotice {
		result.Notice = notice
	}

	s.mu.Lock()
	if s.policy.ReplaceOnSelect() && len(newFiles) > 0 {
		for _, f := range s.files {
			result.Removed = append(result.Removed, f.Token)
		}
		s.files = s.files[:0]
		s.statuses = s.statuses[:0]
		s.active = -1
		result.Replaced = true
	}

	for _, c := range newFiles {
		if len(s.files) >= s.policy.MaxFiles {
			result.Dropped++
			continue
		}
		f := models.StagedFile{Token: s.newToken(), Candidate: c}
		s.files = append(s.files, f)
		s.statuses = append(s.statuses, models.UploadStatus{Token: f.Token, Stage: models.StageUploading})
		result.Staged = append(result.Staged, f)
	}
	s.clampLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if result.Dropped > 0 {
		s.logger.Debug().
			Int("dropped", result.Dropped).
			Int("max_files", s.policy.MaxFiles).
			Msg("Selection full, extra files dropped")
	}

	if result.Changed() {
		s.publish(NewSelectionChangedEvent(snap))
	}
	if hasNotice {
		s.publish(NewRejectionEvent(notice, rejected))
	}

	return result
}

// InitFor replaces every status with a fresh uploading entry, one per
// staged file.
func (s *Session) InitFor(files []models.StagedFile) {
	s.mu.Lock()
	s.files = append(s.files[:0], files...)
	s.statuses = s.statuses[:0]
	for _, f := range s.files {
		s.statuses = append(s.statuses, models.UploadStatus{Token: f.Token, Stage: models.StageUploading})
	}
	s.clampLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(NewSelectionChangedEvent(snap))
}

// Remove drops the file at index together with its status. Out-of-range
// indices are a no-op. Returns the removed token.
func (s *Session) Remove(index int) (string, bool) {
	s.mu.Lock()
	if index < 0 || index >= len(s.files) {
		s.mu.Unlock()
		return "", false
	}
	token := s.removeLocked(index)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(NewSelectionChangedEvent(snap))
	return token, true
}

// RemoveAt is Remove under the status tracker's name. Files and statuses
// are always removed together.
func (s *Session) RemoveAt(index int) (string, bool) {
	return s.Remove(index)
}

// RemoveToken removes the file with the given token, if still staged.
func (s *Session) RemoveToken(token string) (int, bool) {
	s.mu.Lock()
	index := s.indexLocked(token)
	if index < 0 {
		s.mu.Unlock()
		return -1, false
	}
	s.removeLocked(index)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(NewSelectionChangedEvent(snap))
	return index, true
}

// Clear removes every staged file.
func (s *Session) Clear() {
	s.mu.Lock()
	s.files = s.files[:0]
	s.statuses = s.statuses[:0]
	s.active = -1
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(NewSelectionChangedEvent(snap))
}

// MarkStage sets the status at index. An index outside the current list is
// logged and ignored, since a removal may have raced the update.
func (s *Session) MarkStage(index int, stage models.Stage, errorMessage string) bool {
	s.mu.Lock()
	if index < 0 || index >= len(s.statuses) {
		n := len(s.statuses)
		s.mu.Unlock()
		s.logger.Warn().Int("index", index).Int("len", n).Msg("Status update out of range, ignored")
		return false
	}
	status := s.setLocked(index, stage, errorMessage, "")
	s.mu.Unlock()

	s.publish(NewStatusChangedEvent(index, status))
	return true
}

// MarkToken sets the status of the file with the given token. Returns false
// when the file is no longer staged, so a late result cannot bring back a
// removed entry.
func (s *Session) MarkToken(token string, stage models.Stage, errorMessage, detail string) bool {
	s.mu.Lock()
	index := s.indexLocked(token)
	if index < 0 {
		s.mu.Unlock()
		s.logger.Debug().Str("token", token).Str("stage", string(stage)).Msg("Status for removed file discarded")
		return false
	}
	status := s.setLocked(index, stage, errorMessage, detail)
	s.mu.Unlock()

	s.publish(NewStatusChangedEvent(index, status))
	return true
}

// IsFull reports whether the list holds MaxFiles files.
func (s *Session) IsFull() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files) == s.policy.MaxFiles
}

// Locked reports whether new files would all be dropped: the list is full
// and batches append rather than replace.
func (s *Session) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lockedLocked()
}

// Policy returns the session's selection policy.
func (s *Session) Policy() policy.Policy {
	return s.policy
}

// Len returns the number of staged files.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Files returns a copy of the staged files.
func (s *Session) Files() []models.StagedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.StagedFile, len(s.files))
	copy(result, s.files)
	return result
}

// Statuses returns a copy of the upload statuses.
func (s *Session) Statuses() []models.UploadStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.UploadStatus, len(s.statuses))
	copy(result, s.statuses)
	return result
}

// Snapshot returns files, statuses and cursor read under one lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// IndexOf returns the current index of a token, or -1.
func (s *Session) IndexOf(token string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(token)
}

// Active returns the focused index, or -1.
func (s *Session) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActive moves the cursor, clamped to [-1, len-1].
func (s *Session) SetActive(index int) {
	s.mu.Lock()
	old := s.active
	s.active = index
	s.clampLocked()
	active := s.active
	s.mu.Unlock()

	if active != old {
		s.publish(NewCursorMovedEvent(active))
	}
}

func (s *Session) removeLocked(index int) string {
	token := s.files[index].Token
	s.files = append(s.files[:index], s.files[index+1:]...)
	s.statuses = append(s.statuses[:index], s.statuses[index+1:]...)
	s.clampLocked()
	return token
}

func (s *Session) setLocked(index int, stage models.Stage, errorMessage, detail string) models.UploadStatus {
	if stage != models.StageError {
		errorMessage = ""
		detail = ""
	}
	s.statuses[index].Stage = stage
	s.statuses[index].ErrorMessage = errorMessage
	s.statuses[index].Detail = detail
	return s.statuses[index]
}

func (s *Session) indexLocked(token string) int {
	for i, f := range s.files {
		if f.Token == token {
			return i
		}
	}
	return -1
}

func (s *Session) clampLocked() {
	if s.active >= len(s.files) {
		s.active = len(s.files) - 1
	}
	if s.active < -1 {
		s.active = -1
	}
}

func (s *Session) lockedLocked() bool {
	return len(s.files) >= s.policy.MaxFiles && !s.policy.ReplaceOnSelect()
}

func (s *Session) snapshotLocked() Snapshot {
	files := make([]models.StagedFile, len(s.files))
	copy(files, s.files)
	statuses := make([]models.UploadStatus, len(s.statuses))
	copy(statuses, s.statuses)
	return Snapshot{
		Files:    files,
		Statuses: statuses,
		Active:   s.active,
		Locked:   s.lockedLocked(),
	}
}

func (s *Session) publish(ev events.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
}
