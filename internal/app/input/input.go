// Package input normalizes remote-control and keyboard events into the
// closed command set the playback controller honors.
package input

import (
	"log/slog"

	"fyne.io/fyne/v2"
)

// Command is the normalized action requested by the user. The controller and
// its host view never inspect raw key events; everything crosses this
// boundary.
type Command int

const (
	Menu Command = iota
	Back
	Next
	Previous
	TogglePause
)

func (c Command) String() string {
	switch c {
	case Menu:
		return "menu"
	case Back:
		return "back"
	case Next:
		return "next"
	case Previous:
		return "previous"
	case TogglePause:
		return "toggle-pause"
	}
	return "unknown"
}

// keyCommands maps raw key names to commands. Several vendor-specific remote
// codes alias to the same command; anything unlisted is ignored.
var keyCommands = map[fyne.KeyName]Command{
	fyne.KeyRight:    Next,
	fyne.KeyN:        Next,
	fyne.KeyPageDown: Next,
	"MediaTrackNext": Next,

	fyne.KeyLeft:     Previous,
	fyne.KeyP:        Previous,
	fyne.KeyPageUp:   Previous,
	"MediaTrackPrev": Previous,
	"MediaRewind":    Previous,

	fyne.KeySpace:    TogglePause,
	fyne.KeyReturn:   TogglePause,
	fyne.KeyEnter:    TogglePause,
	"MediaPlayPause": TogglePause,
	"MediaPlay":      TogglePause,
	"MediaPause":     TogglePause,

	fyne.KeyM:   Menu,
	fyne.KeyF1:  Menu,
	"ToolsMenu": Menu,

	fyne.KeyEscape:    Back,
	fyne.KeyBackspace: Back,
	"BrowserBack":     Back,
	"TVBack":          Back,
}

// Dispatcher turns raw key events into Commands and delivers them to a
// single subscriber. It is driven from the UI event callback, so no locking
// is needed.
type Dispatcher struct {
	handler func(Command)
	// gate suppresses dispatch while it returns true, e.g. when focus is
	// inside the settings form, so typing a bucket name does not page
	// through photos.
	gate func() bool
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// SetGate installs the suppression predicate. A nil gate never suppresses.
func (d *Dispatcher) SetGate(gate func() bool) {
	d.gate = gate
}

// Subscribe installs the command handler, replacing any prior one.
func (d *Dispatcher) Subscribe(handler func(Command)) {
	d.handler = handler
}

// Unsubscribe removes the handler. It is idempotent; events arriving after
// teardown are dropped.
func (d *Dispatcher) Unsubscribe() {
	d.handler = nil
}

// HandleKey is the raw event entry point, wired to the window's typed-key
// callback. Unmapped keys are ignored, not errors.
func (d *Dispatcher) HandleKey(ev *fyne.KeyEvent) {
	if ev == nil {
		return
	}
	cmd, ok := keyCommands[ev.Name]
	if !ok {
		return
	}
	if d.gate != nil && d.gate() {
		// Back still closes whatever opened the gate, except via
		// Backspace, which belongs to text entry there.
		if cmd != Back || ev.Name == fyne.KeyBackspace {
			slog.Debug("input suppressed", "key", ev.Name, "command", cmd.String())
			return
		}
	}
	if d.handler == nil {
		return
	}
	slog.Debug("dispatching command", "key", ev.Name, "command", cmd.String())
	d.handler(cmd)
}
