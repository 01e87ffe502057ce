package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client): full world state at subscription time.
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	SessionID       string       `json:"session_id"`
	WorldID         string       `json:"world_id"`
	Tick            uint64       `json:"tick"`
	IntervalMs      int64        `json:"interval_ms"`
	Preset          int          `json:"preset"`
	PresetsMs       []int64      `json:"presets_ms"`
	Voxels          []VoxelState `json:"voxels"`
}

type VoxelState struct {
	Pos    [3]int `json:"pos"`
	Kind   string `json:"kind"`
	Signal bool   `json:"signal"`
	ID     uint64 `json:"id,omitempty"`
}

type SignalChange struct {
	Pos    [3]int `json:"pos"`
	Signal bool   `json:"signal"`
}

// CMD (client -> server)
type CmdMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ID              string  `json:"id"`
	Op              string  `json:"op"`
	Pos             *[3]int `json:"pos,omitempty"`
	Kind            string  `json:"kind,omitempty"`
	Preset          int     `json:"preset,omitempty"`
}

// TICK (server -> client): committed changes since the previous TICK.
// When Full is set, Voxels carries the complete state and the delta fields are empty.
type TickMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            uint64         `json:"tick"`
	Changes         []SignalChange `json:"changes,omitempty"`
	Placed          []VoxelState   `json:"placed,omitempty"`
	Removed         [][3]int       `json:"removed,omitempty"`
	Full            bool           `json:"full,omitempty"`
	Voxels          []VoxelState   `json:"voxels,omitempty"`
}

// RESULT (server -> client): outcome of one CMD.
type ResultMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	ID              string    `json:"id"`
	OK              bool      `json:"ok"`
	Code            string    `json:"code,omitempty"`
	Message         string    `json:"message,omitempty"`
	Tick            uint64    `json:"tick"`
	Look            *LookInfo `json:"look,omitempty"`
	IntervalMs      int64     `json:"interval_ms,omitempty"`
	Preset          int       `json:"preset,omitempty"`
	Signal          *bool     `json:"signal,omitempty"`
}

type LookInfo struct {
	Pos     [3]int `json:"pos"`
	Present bool   `json:"present"`
	Kind    string `json:"kind,omitempty"`
	Signal  bool   `json:"signal"`
}

func NewResult(id string, tick uint64) ResultMsg {
	return ResultMsg{Type: TypeResult, ProtocolVersion: Version, ID: id, OK: true, Tick: tick}
}

func ErrorResult(id string, tick uint64, code, msg string) ResultMsg {
	return ResultMsg{Type: TypeResult, ProtocolVersion: Version, ID: id, Code: code, Message: msg, Tick: tick}
}
