// Package gui provides the desktop drop/browse surface for nimbus-ingest.
package gui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/nimbus-data/nimbus-ingest/internal/config"
	"github.com/nimbus-data/nimbus-ingest/internal/constants"
	"github.com/nimbus-data/nimbus-ingest/internal/core"
	"github.com/nimbus-data/nimbus-ingest/internal/events"
	"github.com/nimbus-data/nimbus-ingest/internal/ingest"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
	"github.com/nimbus-data/nimbus-ingest/internal/navigation"
	"github.com/nimbus-data/nimbus-ingest/internal/state"
	"github.com/nimbus-data/nimbus-ingest/internal/surface"
)

// guiLogger is the package-level logger for GUI mode
var guiLogger *logging.Logger

// LaunchGUI opens the main window and blocks until it is closed.
func LaunchGUI(cfg *config.Config, logger *logging.Logger) error {
	guiLogger = logging.OrDefault(logger)

	// NIMBUS_DEBUG=1 shows debug output on the console
	if os.Getenv("NIMBUS_DEBUG") != "" {
		logging.SetGlobalLevel(zerolog.DebugLevel)
		guiLogger.Info().Msg("Debug logging enabled via NIMBUS_DEBUG")
	} else {
		logging.SetGlobalLevel(zerolog.WarnLevel)
	}

	myApp := app.NewWithID(constants.AppID)
	myApp.Settings().SetTheme(&nimbusTheme{})

	mainWindow := myApp.NewWindow("Nimbus Ingest")
	mainWindow.SetMaster()

	ui := NewUI(mainWindow, myApp)

	engine, err := core.NewEngine(context.Background(), cfg, guiLogger, core.Hooks{
		OnUploadComplete: ui.onUploadComplete,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	ui.attach(engine)
	if os.Getenv("NIMBUS_DEBUG") != "" {
		go monitorGoroutines(engine.Events())
	}

	mainWindow.SetContent(ui.Build())
	ui.Start()
	mainWindow.SetOnDropped(ui.onDropped)
	mainWindow.Canvas().SetOnTypedKey(ui.onTypedKey)
	mainWindow.Resize(fyne.NewSize(720, 520))
	mainWindow.CenterOnScreen()

	mainWindow.SetOnClosed(func() {
		ui.Stop()
	})

	mainWindow.ShowAndRun()
	return nil
}

// UI is the main window: a drop zone, the staged file list and a status bar.
type UI struct {
	engine  *core.Engine
	window  fyne.Window
	app     fyne.App
	surface *surface.Surface
	nav     *navigation.Controller

	mu   sync.Mutex
	snap state.Snapshot

	dropZone  *canvas.Rectangle
	dropLabel *widget.Label
	dropHint  *widget.Label
	browseBtn *widget.Button
	clearBtn  *widget.Button
	list      *widget.List
	statusBar *StatusBar

	ctx    context.Context
	cancel context.CancelFunc
}

// NewUI creates a UI. The engine is attached before Build.
func NewUI(window fyne.Window, app fyne.App) *UI {
	ctx, cancel := context.WithCancel(context.Background())
	return &UI{
		window: window,
		app:    app,
		snap:   state.Snapshot{Active: -1},
		ctx:    ctx,
		cancel: cancel,
	}
}

func (ui *UI) attach(engine *core.Engine) {
	cfg := engine.GetConfig()
	pol := engine.Session().Policy()

	ui.engine = engine
	ui.surface = surface.New(surface.Config{
		Submitter: engine,
		Lock:      engine.Session(),
		Picker:    &dialogPicker{window: ui.window},
		Multiple:  pol.AllowMultiple,
		Accept:    pol.AcceptList(),
		Logger:    guiLogger,
	})
	ui.nav = navigation.NewController(engine.Orchestrator(),
		navigation.BrowserFunc(func() { go ui.browse() }),
		cfg.NavOptions())
	ui.statusBar = NewStatusBar(pol.MaxFiles)
}

// Build creates the window content.
func (ui *UI) Build() fyne.CanvasObject {
	pol := ui.engine.Session().Policy()

	ui.dropZone = canvas.NewRectangle(theme.Color(theme.ColorNameInputBackground))
	ui.dropZone.StrokeColor = theme.Color(theme.ColorNamePrimary)
	ui.dropZone.StrokeWidth = dropZoneStroke
	ui.dropZone.CornerRadius = dropZoneRadius
	ui.dropZone.SetMinSize(fyne.NewSize(0, dropZoneHeight))

	ui.dropLabel = widget.NewLabelWithStyle("Drop files here", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	ui.dropHint = widget.NewLabelWithStyle(
		fmt.Sprintf("%s, up to %s each, %s", acceptSummary(pol.AcceptList()),
			humanize.IBytes(uint64(pol.MaxSizeBytes)), limitSummary(pol.MaxFiles)),
		fyne.TextAlignCenter, fyne.TextStyle{Italic: true})

	ui.browseBtn = widget.NewButtonWithIcon("Browse…", theme.FolderOpenIcon(), func() {
		go ui.browse()
	})
	ui.clearBtn = widget.NewButtonWithIcon("Clear", theme.ContentClearIcon(), func() {
		ui.engine.Orchestrator().Clear()
		ui.statusBar.SetInfo("Ready")
	})
	ui.clearBtn.Disable()

	dropArea := container.NewStack(
		ui.dropZone,
		container.NewCenter(container.NewVBox(ui.dropLabel, ui.dropHint, container.NewCenter(ui.browseBtn))),
	)

	ui.list = widget.NewList(
		func() int {
			ui.mu.Lock()
			defer ui.mu.Unlock()
			return len(ui.snap.Files)
		},
		func() fyne.CanvasObject {
			icon := widget.NewIcon(theme.UploadIcon())
			name := widget.NewLabel("")
			name.Truncation = fyne.TextTruncateEllipsis
			status := widget.NewLabel("")
			status.Alignment = fyne.TextAlignTrailing
			statusBox := container.NewGridWrap(fyne.NewSize(rowStatusMinWidth, status.MinSize().Height), status)
			remove := widget.NewButtonWithIcon("", theme.DeleteIcon(), nil)
			remove.Importance = widget.LowImportance
			return container.NewBorder(nil, nil, icon, container.NewHBox(statusBox, remove), name)
		},
		ui.updateRow,
	)
	ui.list.OnSelected = func(id widget.ListItemID) {
		ui.engine.Orchestrator().SetActive(id)
	}

	header := widget.NewLabelWithStyle("Staged files", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	return container.NewBorder(
		container.NewVBox(dropArea, container.NewBorder(nil, nil, header, ui.clearBtn)),
		container.NewVBox(widget.NewSeparator(), ui.statusBar),
		nil, nil,
		ui.list,
	)
}

func (ui *UI) updateRow(id widget.ListItemID, obj fyne.CanvasObject) {
	ui.mu.Lock()
	if id < 0 || id >= len(ui.snap.Files) {
		ui.mu.Unlock()
		return
	}
	file := ui.snap.Files[id]
	st := ui.snap.Statuses[id]
	ui.mu.Unlock()

	// Border layout orders objects: center, then left, then right
	row := obj.(*fyne.Container)
	name := row.Objects[0].(*widget.Label)
	icon := row.Objects[1].(*widget.Icon)
	right := row.Objects[2].(*fyne.Container)
	status := right.Objects[0].(*fyne.Container).Objects[0].(*widget.Label)
	remove := right.Objects[1].(*widget.Button)

	name.SetText(fmt.Sprintf("%s (%s)", file.Name, humanize.IBytes(uint64(file.Size))))
	icon.SetResource(statusIcon(st))
	status.SetText(statusText(st))

	token := file.Token
	remove.OnTapped = func() {
		if i := ui.engine.Session().IndexOf(token); i >= 0 {
			ui.engine.Orchestrator().Remove(i)
		}
	}
}

// Start begins event monitoring
func (ui *UI) Start() {
	if !ui.engine.API().HasToken() {
		// published before any subscriber existed
		ui.statusBar.SetError(ingest.MissingAuthWarning)
	}
	go ui.monitorSession()
	go ui.monitorNotices()
}

// Stop stops event monitoring
func (ui *UI) Stop() {
	ui.cancel()
	ui.engine.Stop()
}

func (ui *UI) onDropped(_ fyne.Position, uris []fyne.URI) {
	paths := make([]string, 0, len(uris))
	for _, u := range uris {
		if u.Scheme() == "file" {
			paths = append(paths, u.Path())
		}
	}
	if len(paths) > 0 {
		go ui.drop(paths)
	}
}

func (ui *UI) onTypedKey(ev *fyne.KeyEvent) {
	action := ui.nav.HandleKey(navigationKey(ev.Name))
	if action != navigation.ActionNone {
		guiLogger.Debug().Str("key", string(ev.Name)).Str("action", action.String()).Msg("Key handled")
	}
}

func (ui *UI) drop(paths []string) {
	batch, errs := ui.surface.Drop(ui.ctx, paths)
	ui.afterSubmit(batch, errs)
}

func (ui *UI) browse() {
	batch, errs := ui.surface.Browse(ui.ctx)
	ui.afterSubmit(batch, errs)
}

func (ui *UI) afterSubmit(batch *ingest.Batch, errs []error) {
	for _, err := range errs {
		if errors.Is(err, surface.ErrLocked) {
			ui.statusBar.SetWarning("File limit reached. Remove a file to add another.")
			return
		}
	}
	if len(errs) > 0 {
		ui.statusBar.SetWarning(errs[0].Error())
	}
	if batch == nil {
		return
	}
	ui.refreshDropZone()
	if n := len(batch.Staged); n > 0 && ui.engine.Orchestrator().Uploading() {
		ui.statusBar.SetProgress(fmt.Sprintf("Uploading %d file(s)…", n))
	}
}

func (ui *UI) onUploadComplete(results []models.IngestionResult) {
	if len(results) == 0 {
		return
	}
	cols := 0
	for _, r := range results {
		cols += len(r.Columns)
	}
	ui.statusBar.SetSuccess(fmt.Sprintf("Uploaded %d file(s), %d columns extracted", len(results), cols))
}

// monitorSession re-renders the list on every session change.
func (ui *UI) monitorSession() {
	bus := ui.engine.Events()
	selection := bus.Subscribe(events.EventSelectionChanged)
	status := bus.Subscribe(events.EventStatusChanged)
	cursor := bus.Subscribe(events.EventCursorMoved)
	defer bus.Unsubscribe(events.EventSelectionChanged, selection)
	defer bus.Unsubscribe(events.EventStatusChanged, status)
	defer bus.Unsubscribe(events.EventCursorMoved, cursor)

	for {
		select {
		case _, ok := <-selection:
			if !ok {
				return
			}
			ui.reload()
		case _, ok := <-status:
			if !ok {
				return
			}
			ui.reload()
		case ev, ok := <-cursor:
			if !ok {
				return
			}
			active := ev.(*state.CursorMovedEvent).Active
			fyne.Do(func() {
				if active < 0 {
					ui.list.UnselectAll()
				} else {
					ui.list.Select(active)
				}
			})
		case <-ui.ctx.Done():
			return
		}
	}
}

// monitorNotices surfaces rejections, notices and warnings.
func (ui *UI) monitorNotices() {
	ch := ui.engine.Events().SubscribeAll()
	defer ui.engine.Events().UnsubscribeAll(ch)

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			switch ev := event.(type) {
			case *state.RejectionEvent:
				fyne.Do(func() {
					dialog.ShowInformation("Files not added", ev.Message, ui.window)
				})
				ui.refreshDropZone()
			case *events.NoticeEvent:
				ui.statusBar.SetWarning(ev.Message)
			case *events.WarningEvent:
				ui.statusBar.SetError(ev.Message)
			case *events.LogEvent:
				if ev.Level >= events.ErrorLevel && ev.Error != nil {
					guiLogger.Debug().Err(ev.Error).Str("stage", ev.Stage).Msg(ev.Message)
				}
			}
		case <-ui.ctx.Done():
			return
		}
	}
}

func (ui *UI) reload() {
	snap := ui.engine.Session().Snapshot()
	ui.mu.Lock()
	ui.snap = snap
	ui.mu.Unlock()

	ui.statusBar.SetCount(len(snap.Files))
	fyne.Do(func() {
		ui.list.Refresh()
		if len(snap.Files) == 0 {
			ui.clearBtn.Disable()
		} else {
			ui.clearBtn.Enable()
		}
	})
	ui.refreshDropZone()
}

// refreshDropZone paints the drop area as locked, refused or idle.
func (ui *UI) refreshDropZone() {
	locked := ui.surface.Disabled()
	rejected := ui.surface.Rejected()

	fyne.Do(func() {
		switch {
		case locked:
			ui.dropLabel.SetText("File limit reached")
			ui.dropZone.StrokeColor = theme.Color(theme.ColorNameDisabled)
			ui.browseBtn.Disable()
		case rejected:
			ui.dropLabel.SetText("Some files were not accepted. Drop again")
			ui.dropZone.StrokeColor = theme.Color(theme.ColorNameError)
			ui.browseBtn.Enable()
		default:
			ui.dropLabel.SetText("Drop files here")
			ui.dropZone.StrokeColor = theme.Color(theme.ColorNamePrimary)
			ui.browseBtn.Enable()
		}
		ui.dropZone.Refresh()
	})
}

func acceptSummary(accept []string) string {
	if len(accept) == 0 {
		return "Any file"
	}
	exts := pickerExtensions(accept)
	if len(exts) == 0 {
		return fmt.Sprintf("%v", accept)
	}
	return fmt.Sprintf("%v", exts)
}

func limitSummary(maxFiles int) string {
	if maxFiles == 1 {
		return "one file"
	}
	return fmt.Sprintf("at most %d files", maxFiles)
}

var goroutineCount int64

// monitorGoroutines logs the goroutine count and dropped events in debug mode.
func monitorGoroutines(bus *events.EventBus) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		count := runtime.NumGoroutine()
		prev := atomic.SwapInt64(&goroutineCount, int64(count))
		delta := int64(count) - prev

		guiLogger.Debug().
			Int("count", count).
			Int64("delta", delta).
			Msg("[MONITOR] Goroutines")

		if dropped := bus.ResetDroppedEvents(); dropped > 0 {
			guiLogger.Warnf("[MONITOR] %d event(s) dropped on full buffers", dropped)
		}

		if prev > 0 && delta > 20 {
			guiLogger.Warn().
				Int64("delta", delta).
				Msg("[MONITOR] Rapid goroutine growth")
		}
	}
}
