// Package progress renders ingest progress on the terminal: mpb bars for
// batches and a schollz progress bar for a single file.
package progress

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/nimbus-data/nimbus-ingest/internal/ingest"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// Reporter receives byte progress for one transfer.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIProgress implements Reporter with a progress bar.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a reporter that draws on w.
func NewCLIProgress(w io.Writer) *CLIProgress {
	return &CLIProgress{out: w}
}

// Start initializes the progress bar with total size and description.
func (p *CLIProgress) Start(total int64, description string) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update moves the bar to current.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error prints err below the bar.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// ProgressReader wraps an io.Reader to report progress.
type ProgressReader struct {
	reader   io.Reader
	reporter Reporter
	current  atomic.Int64
}

// NewProgressReader creates a new progress-reporting reader.
func NewProgressReader(reader io.Reader, reporter Reporter) *ProgressReader {
	return &ProgressReader{reader: reader, reporter: reporter}
}

// Read implements io.Reader with progress reporting.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.reporter.Update(pr.current.Add(int64(n)))
	return n, err
}

// SingleUI renders one file with a progress bar. Used when a batch holds a
// single file and stderr is a terminal.
type SingleUI struct {
	out      io.Writer
	reporter *CLIProgress

	mu    sync.Mutex
	files map[string]models.StagedFile
	done  chan struct{}
	once  sync.Once
}

// NewSingleUI creates a single-file UI on stderr.
func NewSingleUI() *SingleUI {
	return NewSingleUIWithOutput(os.Stderr)
}

// NewSingleUIWithOutput creates a single-file UI writing to w.
func NewSingleUIWithOutput(w io.Writer) *SingleUI {
	return &SingleUI{
		out:      w,
		reporter: NewCLIProgress(w),
		files:    make(map[string]models.StagedFile),
		done:     make(chan struct{}),
	}
}

// Track records the files; only the first one gets a bar.
func (s *SingleUI) Track(files []models.StagedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range files {
		if _, ok := s.files[f.Token]; !ok {
			s.files[f.Token] = f
		}
	}
}

// OnStep updates the bar description.
func (s *SingleUI) OnStep(token string, step ingest.Step) {
	if f, ok := s.file(token); ok && step != ingest.StepTransfer {
		s.reporter.SetDescription(fmt.Sprintf("%s: %s", f.Name, step.Label()))
	}
}

// WrapReader starts the bar and feeds it the transferred bytes.
func (s *SingleUI) WrapReader(file models.StagedFile, r io.Reader) io.Reader {
	s.reporter.Start(file.Size, fmt.Sprintf("%s: %s", file.Name, ingest.StepTransfer.Label()))
	return NewProgressReader(r, s.reporter)
}

// Complete finishes the bar and prints a summary line.
func (s *SingleUI) Complete(token string, result models.IngestionResult, err error) {
	f, ok := s.file(token)
	if !ok {
		return
	}

	if err != nil {
		var stepErr *ingest.StepError
		if errors.As(err, &stepErr) {
			s.reporter.Error(fmt.Errorf("%s: %s failed: %w", f.Name, stepErr.Step.Label(), stepErr.Err))
		} else {
			s.reporter.Error(fmt.Errorf("%s: %w", f.Name, err))
		}
	} else {
		s.reporter.Finish()
		fmt.Fprintf(s.out, "✓ %s (FileID: %s, DatasetID: %s, %d columns)\n",
			f.Name, result.FileID, result.DatasetID, len(result.Columns))
	}

	s.once.Do(func() { close(s.done) })
}

// Wait blocks until the file completed, or returns at once when nothing
// was tracked.
func (s *SingleUI) Wait() {
	s.mu.Lock()
	n := len(s.files)
	s.mu.Unlock()
	if n == 0 {
		return
	}
	<-s.done
}

// Writer returns the output writer.
func (s *SingleUI) Writer() io.Writer {
	return s.out
}

// IsTerminal returns true; SingleUI is only used on terminals.
func (s *SingleUI) IsTerminal() bool {
	return true
}

func (s *SingleUI) file(token string) (models.StagedFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[token]
	return f, ok
}

// NewBatchUI picks the UI for a batch of n files. noProgress forces plain
// line output.
func NewBatchUI(n int, noProgress bool) BatchUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	switch {
	case noProgress || !isTerminal:
		return NewUploadUIWithOutput(n, os.Stderr, false)
	case n == 1:
		return NewSingleUI()
	default:
		return NewUploadUI(n)
	}
}
