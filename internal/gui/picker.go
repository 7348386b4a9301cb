package gui

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"

	"github.com/nimbus-data/nimbus-ingest/internal/surface"
)

// dialogPicker implements surface.Picker with the fyne file dialog. The
// dialog opens one file at a time, so multiple is ignored.
type dialogPicker struct {
	window fyne.Window
}

var _ surface.Picker = (*dialogPicker)(nil)

type pickResult struct {
	paths []string
	err   error
}

// Pick shows the dialog on the UI goroutine and blocks until it closes.
func (p *dialogPicker) Pick(ctx context.Context, multiple bool, accept []string) ([]string, error) {
	done := make(chan pickResult, 1)

	fyne.Do(func() {
		fileDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
			if err != nil {
				done <- pickResult{err: err}
				return
			}
			if reader == nil {
				// cancelled
				done <- pickResult{}
				return
			}
			defer reader.Close()
			done <- pickResult{paths: []string{reader.URI().Path()}}
		}, p.window)

		if exts := pickerExtensions(accept); len(exts) > 0 {
			fileDialog.SetFilter(storage.NewExtensionFileFilter(exts))
		}
		fileDialog.Show()
	})

	select {
	case r := <-done:
		return r.paths, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
