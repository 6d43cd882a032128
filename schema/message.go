package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Command discriminates a Message.
type Command string

const (
	CmdRequest         Command = "request"
	CmdRequestResponse Command = "requestResponse"
	CmdInputString     Command = "inputString"
	CmdInputInteger    Command = "inputInteger"
	CmdError           Command = "error"
	CmdInfo            Command = "info"
	CmdInputResult     Command = "inputResult"
	CmdCancelInput     Command = "cancelInput"
	CmdAddLog          Command = "addLog"
	CmdRemoveLog       Command = "removeLog"
	CmdReset           Command = "reset"
	CmdControlsActive  Command = "controlsActive"
	CmdControls        Command = "controls"
)

// Envelope keys.
const (
	KeyCommand   = "command"
	KeyMethod    = "method"
	KeyTarget    = "target"
	KeyURL       = "url"
	KeyBody      = "body"
	KeyID        = "id"
	KeyResponse  = "response"
	KeyError     = "error"
	KeyNetError  = "neterror"
	KeyMessage   = "message"
	KeyInputID   = "inputId"
	KeyHamsterID = "hamsterId"
	KeyColor     = "color"
	KeyControl   = "control"
	KeyActive    = "active"
)

// AckMessage is the message value sent back when an error dialog is dismissed.
const AckMessage = "VscodeOK"

// Message is the untyped envelope exchanged between the contexts. Both
// directions use the same shape: a free-form mapping with a "command" key.
type Message map[string]any

// NewMessage returns a message for cmd with the given key/value pairs.
// Pairs with a nil value are omitted.
func NewMessage(cmd Command, kv ...any) Message {
	msg := Message{KeyCommand: string(cmd)}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok || kv[i+1] == nil {
			continue
		}
		msg[key] = kv[i+1]
	}
	return msg
}

// DecodeMessage parses a JSON object. Numbers are kept as json.Number so ids
// and integer answers survive without float rounding.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidMessage)
	}
	return msg, nil
}

// Command returns the discriminant, or "" when missing or not a string.
func (m Message) Command() Command {
	s, _ := m.String(KeyCommand)
	return Command(s)
}

// Has reports whether key is present with a non-null value.
func (m Message) Has(key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

// Value returns the raw value for key.
func (m Message) Value(key string) any {
	return m[key]
}

// String returns the value for key when it is a string.
func (m Message) String(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// Int returns the value for key when it is an integral number.
func (m Message) Int(key string) (int64, bool) {
	return IntValue(m[key])
}

// Truthy reports whether the value for key is truthy in the loose sense the
// rendering context uses (true, non-zero numbers, non-empty strings).
func (m Message) Truthy(key string) bool {
	switch v := m[key].(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0 && !math.IsNaN(f)
	case float64:
		return v != 0 && !math.IsNaN(v)
	case int:
		return v != 0
	case int64:
		return v != 0
	default:
		return true
	}
}

// ErrorText renders the error payload as text. String payloads are returned
// verbatim; anything else is JSON encoded.
func (m Message) ErrorText() string {
	switch v := m[KeyError].(type) {
	case nil:
		return ""
	case string:
		return v
	case error:
		return v.Error()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// IntValue converts an integral number decoded from JSON (or built in Go) to int64.
func IntValue(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(n)
	case float32:
		return floatToInt(float64(n))
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case RequestID:
		return int64(n), true
	case InputID:
		return int64(n), true
	default:
		return 0, false
	}
}

// IsNumber reports whether v is any JSON number, integral or not.
func IsNumber(v any) bool {
	switch n := v.(type) {
	case json.Number:
		_, err := strconv.ParseFloat(string(n), 64)
		return err == nil
	case float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
