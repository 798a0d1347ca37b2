package chat

import (
	"context"
	"time"
)

// Message is a persisted chat log entry. A nil Author marks a
// system-generated entry such as a join or leave notification.
type Message struct {
	ID      int64
	Room    string
	Content string
	Author  *string
	SentAt  time.Time
}

func (m Message) IsSystem() bool {
	return m.Author == nil
}

type MessageStore interface {
	// Append stores a message and returns its id.
	// Messages are immutable once stored.
	Append(ctx context.Context, room, content string, author *string, sentAt time.Time) (int64, error)

	// ListByRoom returns the room's messages ascending by timestamp.
	// Entries sharing a timestamp keep insertion order.
	ListByRoom(ctx context.Context, room string) ([]Message, error)
}
