package status

import (
	"encoding/json"
	"time"
)

// State is a dependency's health as shown on the dashboard.
type State string

const (
	StateChecking     State = "checking"
	StateOnline       State = "online"
	StateOffline      State = "offline"
	StateError        State = "error"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

const checkingMessage = "Checking..."

// Component is the status of one backend dependency.
type Component struct {
	Status      State           `json:"status"`
	Message     string          `json:"message"`
	LastChecked *time.Time      `json:"last_checked"`
	Details     json.RawMessage `json:"details,omitempty"`
}

// Healthy reports whether the component answered successfully.
func (c Component) Healthy() bool {
	return c.Status == StateOnline || c.Status == StateConnected
}

// Snapshot is the combined system status.
type Snapshot struct {
	APIServer Component  `json:"api_server"`
	Database  Component  `json:"database"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
}

// Healthy reports whether every dependency is up.
func (s Snapshot) Healthy() bool {
	return s.APIServer.Healthy() && s.Database.Healthy()
}

// MarshalJSON adds the derived healthy flag.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	return json.Marshal(struct {
		alias
		Healthy bool `json:"healthy"`
	}{alias: alias(s), Healthy: s.Healthy()})
}

// InitialSnapshot is the status before the first check completes.
func InitialSnapshot() Snapshot {
	return Snapshot{
		APIServer: Component{Status: StateChecking, Message: checkingMessage},
		Database:  Component{Status: StateChecking, Message: checkingMessage},
	}
}
