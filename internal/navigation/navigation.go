// Package navigation implements keyboard focus over the staged file list.
//
// The cursor is -1 when nothing is focused (the drop target has focus) and
// otherwise an index into the list. Arrow keys are mapped to next/previous
// according to the list orientation and the reading direction.
package navigation

import (
	"fmt"
	"strings"
)

// Key is a physical key, independent of any UI toolkit.
type Key int

const (
	KeyOther Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeySpace
	KeyDelete
	KeyBackspace
	KeyEscape
)

// Orientation of the staged file list.
type Orientation string

const (
	Vertical   Orientation = "vertical"
	Horizontal Orientation = "horizontal"
)

// Direction is the reading direction.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// ParseOrientation parses "horizontal" or "vertical".
func ParseOrientation(s string) (Orientation, error) {
	switch Orientation(strings.ToLower(strings.TrimSpace(s))) {
	case Vertical:
		return Vertical, nil
	case Horizontal:
		return Horizontal, nil
	default:
		return "", fmt.Errorf("invalid orientation %q (want horizontal or vertical)", s)
	}
}

// ParseDirection parses "ltr" or "rtl". Anything else is an error.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case LTR:
		return LTR, nil
	case RTL:
		return RTL, nil
	default:
		return "", fmt.Errorf("invalid direction %q (want ltr or rtl)", s)
	}
}

// Action is what a key press means for the cursor.
type Action int

const (
	ActionNone Action = iota
	ActionNext
	ActionPrevious
	ActionActivate
	ActionDelete
	ActionEscape
)

func (a Action) String() string {
	switch a {
	case ActionNext:
		return "next"
	case ActionPrevious:
		return "previous"
	case ActionActivate:
		return "activate"
	case ActionDelete:
		return "delete"
	case ActionEscape:
		return "escape"
	default:
		return "none"
	}
}

// Options configures the arrow key mapping.
type Options struct {
	Orientation Orientation
	Direction   Direction
}

// DefaultOptions is a vertical, left-to-right list.
func DefaultOptions() Options {
	return Options{Orientation: Vertical, Direction: LTR}
}

// keysFor returns the next and previous arrow keys.
func (o Options) keysFor() (next, prev Key) {
	if o.Orientation == Horizontal {
		if o.Direction == RTL {
			return KeyLeft, KeyRight
		}
		return KeyRight, KeyLeft
	}
	return KeyDown, KeyUp
}

// Resolve maps a key to an action.
func Resolve(key Key, opts Options) Action {
	next, prev := opts.keysFor()

	switch key {
	case next:
		return ActionNext
	case prev:
		return ActionPrevious
	case KeyEnter, KeySpace:
		return ActionActivate
	case KeyDelete, KeyBackspace:
		return ActionDelete
	case KeyEscape:
		return ActionEscape
	default:
		return ActionNone
	}
}

// Target is the list the cursor moves over.
type Target interface {
	Len() int
	Active() int
	SetActive(index int)
	Remove(index int) bool
}

// Browser opens the native file picker.
type Browser interface {
	Browse()
}

// BrowserFunc adapts a function to Browser.
type BrowserFunc func()

// Browse calls f.
func (f BrowserFunc) Browse() { f() }

// Controller applies key presses to a Target.
type Controller struct {
	target  Target
	browser Browser
	opts    Options
}

// NewController creates a controller. browser may be nil.
func NewController(target Target, browser Browser, opts Options) *Controller {
	if opts.Orientation == "" {
		opts.Orientation = Vertical
	}
	if opts.Direction == "" {
		opts.Direction = LTR
	}
	return &Controller{target: target, browser: browser, opts: opts}
}

// Options returns the controller's key mapping options.
func (c *Controller) Options() Options {
	return c.opts
}

// HandleKey applies one key press and returns the action taken.
func (c *Controller) HandleKey(key Key) Action {
	action := Resolve(key, c.opts)
	c.Apply(action)
	return action
}

// Apply performs an action on the target.
func (c *Controller) Apply(action Action) {
	n := c.target.Len()
	active := c.target.Active()

	switch action {
	case ActionNext:
		c.target.SetActive(Next(active, n))

	case ActionPrevious:
		c.target.SetActive(Previous(active, n))

	case ActionActivate:
		if active == -1 && c.browser != nil {
			c.browser.Browse()
		}

	case ActionDelete:
		if active < 0 || active >= n {
			return
		}
		if !c.target.Remove(active) {
			return
		}
		remaining := c.target.Len()
		if remaining == 0 {
			c.target.SetActive(-1)
			return
		}
		c.target.SetActive(Previous(active, remaining))

	case ActionEscape:
		c.target.SetActive(-1)
	}
}

// Next returns the index after active, wrapping to 0. An empty list stays unfocused.
func Next(active, n int) int {
	if n <= 0 {
		return -1
	}
	next := active + 1
	if next > n-1 {
		return 0
	}
	return next
}

// Previous returns the index before active, wrapping to n-1. An empty list
// stays unfocused.
func Previous(active, n int) int {
	if n <= 0 {
		return -1
	}
	prev := active - 1
	if prev < 0 || prev > n-1 {
		return n - 1
	}
	return prev
}
