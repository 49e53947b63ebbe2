// Package watchparty implements the watch-party session coordinator: one
// room membership at a time, owner-gated playback control, and reconciliation
// of the room's event stream with the REST side effects that drive it.
package watchparty

import "encoding/json"

// EventType tags a decoded inbound event.
type EventType string

const (
	EventUserJoined    EventType = "USER_JOINED"
	EventUserLeft      EventType = "USER_LEFT"
	EventRedirectVideo EventType = "REDIRECT_VIDEO"
	EventRoomClosed    EventType = "ROOM_CLOSED"
	// EventChat is a broadcast chat/status line carried in a {"message": ...}
	// body rather than a typed event.
	EventChat EventType = "CHAT"
	// EventRaw is anything the decoder could not make sense of, forwarded
	// verbatim.
	EventRaw EventType = "RAW"
)

// Event is the decoded form of one inbound frame body. Only the fields
// relevant to its Type are set.
type Event struct {
	Type     EventType
	Username string
	VideoID  int64
	Text     string
}

type eventEnvelope struct {
	EventType string `json:"eventType"`
	VideoID   int64  `json:"videoId"`
	Username  string `json:"username"`
	Message   string `json:"message"`
}

// DecodeEvent classifies a frame body. It never fails: input that does not
// match a recognized shape comes back as EventChat or EventRaw so the session
// continues uninterrupted.
func DecodeEvent(body []byte) Event {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		// not an object; a bare JSON string is plain text, anything else is raw
		var text string
		if err := json.Unmarshal(body, &text); err == nil {
			return Event{Type: EventRaw, Text: text}
		}
		return Event{Type: EventRaw, Text: string(body)}
	}

	switch env.EventType {
	case "REDIRECT_VIDEO":
		if env.VideoID == 0 {
			return Event{Type: EventRaw, Text: string(body)}
		}
		return Event{Type: EventRedirectVideo, VideoID: env.VideoID}
	case "USER_JOINED":
		return Event{Type: EventUserJoined, Username: env.Username}
	case "USER_LEFT":
		return Event{Type: EventUserLeft, Username: env.Username}
	case "ROOM_CLOSED":
		return Event{Type: EventRoomClosed}
	}

	if env.EventType == "" && env.Message != "" {
		return Event{Type: EventChat, Text: env.Message}
	}
	return Event{Type: EventRaw, Text: string(body)}
}
