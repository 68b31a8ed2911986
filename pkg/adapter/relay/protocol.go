package relay

// Message types exchanged over the websocket.
const (
	// TypeAuth binds the connection to an identity. Client to server.
	TypeAuth = "auth"

	// TypeAudio carries one push-to-talk audio frame. Client to server
	// with a recipient, server to client with the sender filled in.
	TypeAudio = "audio"
)

// Envelope is the single JSON frame shape used in both directions.
// Unused fields are omitted on the wire, so an auth frame is
// {"type":"auth","userId":"..."} and a delivered audio frame is
// {"type":"audio","from":"...","data":"..."}.
//
// Data is raw audio bytes; encoding/json transports []byte as base64.
type Envelope struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
	To     string `json:"to,omitempty"`
	From   string `json:"from,omitempty"`
	Data   []byte `json:"data,omitempty"`
}
