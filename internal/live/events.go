package live

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// Event names on the wire.
const (
	EventRegister       = "register"
	EventOnlineStatus   = "online_status"
	EventTypingStart    = "typing_start"
	EventTypingStop     = "typing_stop"
	EventMatchFound     = "match_found"
	EventSuperLike      = "super_like_received"
	EventNewMessage     = "new_message"
	EventMessageSent    = "message_sent"
	EventMessageDeleted = "message_deleted"
	EventMessagesRead   = "messages_read"
	EventError          = "error"
)

// Frame is the JSON envelope of every websocket message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Notifier delivers a targeted event to every session of one user.
// Delivery is best effort and at most once per session.
type Notifier interface {
	Notify(ctx context.Context, userID uint64, event string, data any)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID uint64, event string, data any)

func (f NotifierFunc) Notify(ctx context.Context, userID uint64, event string, data any) {
	f(ctx, userID, event, data)
}

// Discard is a Notifier that drops everything.
var Discard Notifier = NotifierFunc(func(context.Context, uint64, string, any) {})

// OnlineStatus is the presence payload.
type OnlineStatus struct {
	UserID uint64 `json:"userId"`
	Online bool   `json:"online"`
}

// Typing is the typing relay payload delivered to the recipient.
type Typing struct {
	FromUserID uint64 `json:"fromUserId"`
}

// flexID decodes a user id sent as either a JSON number or a string.
type flexID uint64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexID(n)
	return nil
}

type registerPayload struct {
	UserID flexID `json:"userId"`
}

// decodeRegister accepts the bare user id or the {"userId": ...} object.
func decodeRegister(data json.RawMessage) (uint64, error) {
	var id flexID
	if err := json.Unmarshal(data, &id); err == nil {
		return uint64(id), nil
	}
	var p registerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, err
	}
	return uint64(p.UserID), nil
}

type typingPayload struct {
	ToUserID flexID `json:"toUserId"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
