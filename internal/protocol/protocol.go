package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCmd     = "CMD"
	TypeTick    = "TICK"
	TypeResult  = "RESULT"
)

// Command ops carried by CMD.
const (
	OpPlace  = "PLACE"
	OpRemove = "REMOVE"
	OpToggle = "TOGGLE"
	OpLook   = "LOOK"
	OpSpeed  = "SPEED"
	OpSave   = "SAVE"
	OpClear  = "CLEAR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
