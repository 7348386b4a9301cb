package gui

import (
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// StatusLevel selects the status bar icon.
type StatusLevel int

const (
	StatusInfo StatusLevel = iota
	StatusSuccess
	StatusWarning
	StatusError
	StatusProgress // spinner instead of an icon
)

// StatusBar shows the last session message on the left and the staged
// file count on the right.
type StatusBar struct {
	widget.BaseWidget

	mu      sync.RWMutex
	level   StatusLevel
	message string
	staged  int
	limit   int

	icon    *widget.Icon
	label   *widget.Label
	count   *widget.Label
	spinner *widget.Activity
}

// NewStatusBar creates a status bar showing "Ready".
func NewStatusBar(limit int) *StatusBar {
	sb := &StatusBar{
		level:   StatusInfo,
		message: "Ready",
		limit:   limit,
	}
	sb.label = widget.NewLabel(sb.message)
	sb.label.TextStyle = fyne.TextStyle{Italic: true}
	sb.label.Truncation = fyne.TextTruncateEllipsis
	sb.count = widget.NewLabel(countText(0, limit))
	sb.icon = widget.NewIcon(theme.InfoIcon())
	sb.spinner = widget.NewActivity()
	sb.spinner.Hide()
	sb.ExtendBaseWidget(sb)
	return sb
}

// SetStatus updates the message and level.
func (sb *StatusBar) SetStatus(message string, level StatusLevel) {
	sb.mu.Lock()
	sb.level = level
	sb.message = message
	sb.mu.Unlock()

	fyne.Do(func() {
		sb.label.SetText(message)
		sb.spinner.Stop()
		sb.spinner.Hide()
		sb.icon.Show()

		switch level {
		case StatusSuccess:
			sb.icon.SetResource(theme.ConfirmIcon())
		case StatusWarning:
			sb.icon.SetResource(theme.WarningIcon())
		case StatusError:
			sb.icon.SetResource(theme.ErrorIcon())
		case StatusProgress:
			sb.icon.Hide()
			sb.spinner.Show()
			sb.spinner.Start()
		default:
			sb.icon.SetResource(theme.InfoIcon())
		}
	})
}

func (sb *StatusBar) SetInfo(message string)     { sb.SetStatus(message, StatusInfo) }
func (sb *StatusBar) SetSuccess(message string)  { sb.SetStatus(message, StatusSuccess) }
func (sb *StatusBar) SetWarning(message string)  { sb.SetStatus(message, StatusWarning) }
func (sb *StatusBar) SetError(message string)    { sb.SetStatus(message, StatusError) }
func (sb *StatusBar) SetProgress(message string) { sb.SetStatus(message, StatusProgress) }

// SetCount updates the staged file counter.
func (sb *StatusBar) SetCount(staged int) {
	sb.mu.Lock()
	sb.staged = staged
	limit := sb.limit
	sb.mu.Unlock()

	fyne.Do(func() {
		sb.count.SetText(countText(staged, limit))
	})
}

// Message returns the current status message.
func (sb *StatusBar) Message() string {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.message
}

// Level returns the current status level.
func (sb *StatusBar) Level() StatusLevel {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.level
}

// CreateRenderer implements fyne.Widget
func (sb *StatusBar) CreateRenderer() fyne.WidgetRenderer {
	content := container.NewHBox(sb.icon, sb.spinner, sb.label, layout.NewSpacer(), sb.count)
	return widget.NewSimpleRenderer(content)
}

func countText(staged, limit int) string {
	return fmt.Sprintf("%d / %d files", staged, limit)
}
