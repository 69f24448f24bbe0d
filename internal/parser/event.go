package parser

import "github.com/goccy/go-json"

// Event types understood on a decompiler's JSON event stream.
const (
	EventLog         = "log"
	EventResult      = "result"
	EventTranslation = "translation"
)

// Event is one line of a decompiler's JSON event stream. Fields not used by
// an event type are left empty.
type Event struct {
	Type string `json:"type"`

	// log
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	// result
	State  string `json:"state,omitempty"`
	Error  string `json:"error,omitempty"`
	Output string `json:"output,omitempty"`

	// translation
	Language string                     `json:"language,omitempty"`
	Dialogue map[string]json.RawMessage `json:"dialogue,omitempty"`
	Strings  map[string]string          `json:"strings,omitempty"`
}
