package types

// Event types pushed on the local notify hub.
const (
	NotifyTypeDeviceDiscovered = "device_discovered"
	NotifyTypeDeviceUpdated    = "device_updated"
	NotifyTypeSessionStarted   = "session_started"
	NotifyTypeFileReceived     = "file_received"
	NotifyTypeSessionFinished  = "session_finished"
	NotifyTypeSessionCancelled = "session_cancelled"
)

// Notification is the JSON payload broadcast to connected event clients.
type Notification struct {
	Type    string         `json:"type"`
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}
