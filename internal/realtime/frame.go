// Package realtime implements the client side of the platform's pub/sub
// channel: STOMP-style command frames carried as JSON over one persistent
// WebSocket connection.
package realtime

import "encoding/json"

// Frame commands. The broker acknowledges a subscription with CONNECTED
// before delivering any MESSAGE frames.
const (
	CommandSubscribe = "SUBSCRIBE"
	CommandSend      = "SEND"
	CommandConnected = "CONNECTED"
	CommandMessage   = "MESSAGE"
	CommandError     = "ERROR"
)

// Frame is one unit on the wire, in either direction.
type Frame struct {
	Command     string          `json:"command"`
	Destination string          `json:"destination,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}
