package reactor

import (
	"errors"

	"hotspotter/internal/hotspot"
	"hotspotter/internal/selection"
)

type CommandType string

const (
	CommandCreateHotspot CommandType = "CREATE_HOTSPOT"
	CommandRenameHotspot CommandType = "RENAME_HOTSPOT"
)

// Command is an inbound request from the presentation layer.
type Command struct {
	Type CommandType `json:"type"`
	Name string      `json:"name"`
}

func CreateHotspot(name string) Command {
	return Command{Type: CommandCreateHotspot, Name: name}
}

func RenameHotspot(name string) Command {
	return Command{Type: CommandRenameHotspot, Name: name}
}

// Presenter receives everything the session pushes outward.
type Presenter interface {
	Post(msg selection.Result)
	Notify(text string)
}

// Recorder is a Presenter that keeps every message it receives.
type Recorder struct {
	Messages []selection.Result
	Notices  []string
}

func (r *Recorder) Post(msg selection.Result) {
	r.Messages = append(r.Messages, msg)
}

func (r *Recorder) Notify(text string) {
	r.Notices = append(r.Notices, text)
}

// Last returns the most recent message.
func (r *Recorder) Last() (selection.Result, bool) {
	if len(r.Messages) == 0 {
		return selection.Result{}, false
	}
	return r.Messages[len(r.Messages)-1], true
}

// UserMessage turns a user-facing error into notification text. ok is false
// for errors outside the hotspot taxonomy.
func UserMessage(err error) (text string, ok bool) {
	switch {
	case errors.Is(err, hotspot.ErrNoFrameSelected):
		return "Please select a frame to add a hotspot to", true
	case errors.Is(err, hotspot.ErrDuplicateName):
		return "Hotspot with the same name already exists", true
	case errors.Is(err, hotspot.ErrAmbiguousSelection):
		return "Select a single hotspot to rename it", true
	case errors.Is(err, hotspot.ErrEmptyName):
		return "Enter a name for the hotspot", true
	case errors.Is(err, hotspot.ErrMalformedAnnotation):
		return "Hotspot data could not be read", true
	default:
		return "", false
	}
}
