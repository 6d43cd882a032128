package schema

// BridgeSnapshot is a read-only view of the host mirror state.
type BridgeSnapshot struct {
	Log       []LogEntry   `json:"log"`
	Cursor    int          `json:"cursor"`
	Controls  ControlFlags `json:"controls"`
	Connected bool         `json:"connected"`
	GameUp    bool         `json:"game_up"`
}
