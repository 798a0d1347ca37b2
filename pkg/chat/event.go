package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEvent is returned for inbound frames that cannot be decoded
// or carry no event tag. It terminates the handling of that single frame
// only, never the session.
var ErrMalformedEvent = errors.New("malformed event")

const (
	EventHistory  = "history"
	EventMessage  = "message"
	EventTyping   = "typing"
	EventUserList = "user_list"
)

// timeLayout is the wall-clock format messages carry on the wire.
const timeLayout = "15:04:05"

// WireMessage is the wire shape of a single chat log entry.
type WireMessage struct {
	Timestamp string  `json:"timestamp"`
	Username  *string `json:"username"`
	Content   string  `json:"content"`
	IsSystem  bool    `json:"is_system"`
}

func NewWireMessage(m Message) WireMessage {
	return WireMessage{
		Timestamp: m.SentAt.Format(timeLayout),
		Username:  m.Author,
		Content:   m.Content,
		IsSystem:  m.IsSystem(),
	}
}

type historyEvent struct {
	Event    string        `json:"event"`
	Messages []WireMessage `json:"messages"`
}

type messageEvent struct {
	Event   string      `json:"event"`
	Message WireMessage `json:"message"`
}

type typingEvent struct {
	Event    string `json:"event"`
	Username string `json:"username"`
	Typing   bool   `json:"typing"`
}

type userListEvent struct {
	Event string   `json:"event"`
	Users []string `json:"users"`
}

func EncodeHistory(messages []Message) ([]byte, error) {
	// an empty history is an empty list on the wire, not null
	wire := make([]WireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, NewWireMessage(m))
	}
	return json.Marshal(historyEvent{Event: EventHistory, Messages: wire})
}

func EncodeMessage(m Message) ([]byte, error) {
	return json.Marshal(messageEvent{Event: EventMessage, Message: NewWireMessage(m)})
}

func EncodeTyping(username string, typing bool) ([]byte, error) {
	return json.Marshal(typingEvent{Event: EventTyping, Username: username, Typing: typing})
}

func EncodeUserList(users []string) ([]byte, error) {
	if users == nil {
		users = []string{}
	}
	return json.Marshal(userListEvent{Event: EventUserList, Users: users})
}

// InboundEvent is a decoded client frame. Message carries the chat text for
// "message" events; Typing carries the indicator state for "typing" events.
type InboundEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
	Typing  bool   `json:"typing"`
}

func DecodeInbound(data []byte) (*InboundEvent, error) {
	var event InboundEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("%w: missing event tag", ErrMalformedEvent)
	}
	return &event, nil
}
