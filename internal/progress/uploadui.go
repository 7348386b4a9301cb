package progress

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/nimbus-data/nimbus-ingest/internal/ingest"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// UploadUI manages one mpb bar per staged file.
type UploadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	totalFiles int
	started    atomic.Int32
	completed  atomic.Int32
	bars       sync.Map // token -> *FileBar
}

// FileBar is the progress bar of one file.
type FileBar struct {
	bar       *mpb.Bar
	ui        *UploadUI
	index     int
	name      string
	size      int64
	step      atomic.Value // ingest.Step
	startTime time.Time
	done      atomic.Bool
}

// NewUploadUI creates a UI on stderr. Bars are drawn only when stderr is a
// terminal; otherwise one line per event is printed.
func NewUploadUI(totalFiles int) *UploadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		enableANSI(os.Stderr)
	}
	return NewUploadUIWithOutput(totalFiles, os.Stderr, isTerminal)
}

// NewUploadUIWithOutput creates a UI writing to w. With isTerminal false no
// bars are drawn.
func NewUploadUIWithOutput(totalFiles int, w io.Writer, isTerminal bool) *UploadUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(w),
			mpb.WithRefreshRate(150*time.Millisecond),
			mpb.WithWidth(60),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &UploadUI{
		progress:   p,
		out:        w,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
	}
}

// Track adds a bar for every file not seen before.
func (u *UploadUI) Track(files []models.StagedFile) {
	for _, f := range files {
		if _, ok := u.bars.Load(f.Token); ok {
			continue
		}
		u.addFileBar(f)
	}
}

func (u *UploadUI) addFileBar(f models.StagedFile) *FileBar {
	fb := &FileBar{
		ui:        u,
		name:      f.Name,
		size:      f.Size,
		startTime: time.Now(),
	}
	fb.step.Store(ingest.StepAcquireSlot)

	if actual, loaded := u.bars.LoadOrStore(f.Token, fb); loaded {
		return actual.(*FileBar)
	}
	fb.index = int(u.started.Add(1))

	label := fmt.Sprintf("[%d/%d] %s (%s)", fb.index, u.totalFiles, truncateName(f.Name, 32), humanize.IBytes(uint64(f.Size)))

	if u.isTerminal {
		// total is set after creation so the bar does not complete when
		// the transfer ends but extraction and registration are pending
		fb.bar = u.progress.New(0,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(label, decor.WCSyncSpaceR),
				decor.Any(func(s decor.Statistics) string {
					return fb.Step().Label()
				}, decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
		fb.bar.SetTotal(f.Size, false)
	} else {
		fmt.Fprintf(u.out, "Uploading %s\n", label)
	}

	return fb
}

// OnStep records the step a file's pipeline entered.
func (u *UploadUI) OnStep(token string, step ingest.Step) {
	fb := u.bar(token)
	if fb == nil {
		return
	}
	fb.step.Store(step)
	if !u.isTerminal && step != ingest.StepAcquireSlot {
		fmt.Fprintf(u.out, "  [%d/%d] %s: %s\n", fb.index, u.totalFiles, fb.name, step.Label())
	}
}

// WrapReader counts transferred bytes on the file's bar.
func (u *UploadUI) WrapReader(file models.StagedFile, r io.Reader) io.Reader {
	fb := u.bar(file.Token)
	if fb == nil || fb.bar == nil {
		return r
	}
	return fb.bar.ProxyReader(r)
}

// Complete finishes the file's bar and prints a summary line.
func (u *UploadUI) Complete(token string, result models.IngestionResult, err error) {
	fb := u.bar(token)
	if fb == nil || !fb.done.CompareAndSwap(false, true) {
		return
	}

	elapsed := time.Since(fb.startTime).Round(time.Millisecond)
	var msg string

	if err == nil {
		if fb.bar != nil {
			fb.bar.SetCurrent(fb.size)
			fb.bar.SetTotal(fb.size, true)
		}
		msg = fmt.Sprintf("✓ %s (FileID: %s, DatasetID: %s, %d columns, %s)\n",
			fb.name, result.FileID, result.DatasetID, len(result.Columns), elapsed)
	} else {
		if fb.bar != nil {
			fb.bar.Abort(false)
		}
		var stepErr *ingest.StepError
		if errors.As(err, &stepErr) {
			msg = fmt.Sprintf("✗ %s: %s failed: %v\n", fb.name, stepErr.Step.Label(), stepErr.Err)
		} else {
			msg = fmt.Sprintf("✗ %s: %v\n", fb.name, err)
		}
	}

	_, _ = u.Writer().Write([]byte(msg))
	u.completed.Add(1)
}

// Wait blocks until all bars complete.
func (u *UploadUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer returns an io.Writer that prints above the bars.
func (u *UploadUI) Writer() io.Writer {
	if u.isTerminal && u.progress != nil {
		return u.progress
	}
	return u.out
}

// IsTerminal returns true if bars are drawn.
func (u *UploadUI) IsTerminal() bool {
	return u.isTerminal
}

// Completed returns the number of files that finished.
func (u *UploadUI) Completed() int {
	return int(u.completed.Load())
}

func (u *UploadUI) bar(token string) *FileBar {
	v, ok := u.bars.Load(token)
	if !ok {
		return nil
	}
	return v.(*FileBar)
}

// Step returns the step the file is in.
func (f *FileBar) Step() ingest.Step {
	return f.step.Load().(ingest.Step)
}

// truncateName shortens long names in the middle, keeping the extension.
func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max || max < 5 {
		return name
	}
	keep := max - 1
	head := keep / 2
	tail := keep - head
	return string(runes[:head]) + "…" + strings.TrimSpace(string(runes[len(runes)-tail:]))
}
