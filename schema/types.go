package schema

// RequestID correlates a proxied request with its requestResponse.
type RequestID int64

// InputID correlates an input prompt with its inputResult. The rendering
// context chooses it; the host echoes it back.
type InputID int64

// InputMode selects how an inputResult is validated.
type InputMode string

const (
	// InputReadString expects free text.
	InputReadString InputMode = "READ_STRING"
	// InputReadInt expects an integer.
	InputReadInt InputMode = "READ_INT"
	// InputConfirmAlert expects an acknowledgement only.
	InputConfirmAlert InputMode = "CONFIRM_ALERT"
)

// ModalKind identifies the flavour of a host modal message.
type ModalKind string

const (
	// ModalError is an error dialog.
	ModalError ModalKind = "ERROR"
	// ModalStatus is an informational dialog.
	ModalStatus ModalKind = "STATUS"
)

// Control names a simulation control mirrored between the contexts.
type Control string

const (
	ControlResume Control = "resume"
	ControlPause  Control = "pause"
	ControlUndo   Control = "undo"
	ControlRedo   Control = "redo"
)

// Controls lists every recognised control in display order.
var Controls = []Control{ControlResume, ControlPause, ControlUndo, ControlRedo}

// ParseControl returns the control for name, or false when the name is unknown.
func ParseControl(name string) (Control, bool) {
	for _, c := range Controls {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// ControlFlags is the availability of each control as last reported by the
// rendering context.
type ControlFlags struct {
	Resume bool `json:"resume"`
	Pause  bool `json:"pause"`
	Undo   bool `json:"undo"`
	Redo   bool `json:"redo"`
}

// Active reports the flag for control.
func (f ControlFlags) Active(control Control) bool {
	switch control {
	case ControlResume:
		return f.Resume
	case ControlPause:
		return f.Pause
	case ControlUndo:
		return f.Undo
	case ControlRedo:
		return f.Redo
	default:
		return false
	}
}

// With returns a copy of f with control set to active.
func (f ControlFlags) With(control Control, active bool) ControlFlags {
	switch control {
	case ControlResume:
		f.Resume = active
	case ControlPause:
		f.Pause = active
	case ControlUndo:
		f.Undo = active
	case ControlRedo:
		f.Redo = active
	}
	return f
}

// LogEntry is one simulation log line. OwnerID is the id of the entity that
// wrote it, when there is one.
type LogEntry struct {
	OwnerID *int64 `json:"owner_id,omitempty"`
	Text    string `json:"text"`
	Color   string `json:"color,omitempty"`
}

// InputAnswer is a settled input prompt. Present is false for the
// "no input" sentinel, which is distinct from an error.
type InputAnswer struct {
	Mode      InputMode `json:"mode"`
	Present   bool      `json:"present"`
	Text      string    `json:"text,omitempty"`
	Integer   int64     `json:"integer,omitempty"`
	Confirmed bool      `json:"confirmed,omitempty"`
}
