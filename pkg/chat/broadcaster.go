package chat

import (
	"log/slog"
)

// Broadcaster fans a payload out to every live connection of a room.
// Delivery is best effort: a failing recipient is skipped, never retried,
// and never aborts delivery to the rest of the room.
type Broadcaster struct {
	registry *Registry
	logger   *slog.Logger
}

func NewBroadcaster(registry *Registry, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		registry: registry,
		logger:   logger,
	}
}

func (b *Broadcaster) Broadcast(room string, payload []byte) {
	b.BroadcastExcept(room, payload, nil)
}

// BroadcastExcept delivers payload to every connection of room except the
// excluded one. Used for typing relays, where the sender must not echo to
// itself.
func (b *Broadcaster) BroadcastExcept(room string, payload []byte, except Conn) {
	for _, conn := range b.registry.ConnectionsOf(room) {
		if except != nil && conn.ID() == except.ID() {
			continue
		}
		if err := conn.Send(payload); err != nil {
			b.logger.Debug("dropping frame for connection",
				slog.String("conn.id", conn.ID()),
				slog.String("room", room),
				slog.Any("error", err))
		}
	}
}
