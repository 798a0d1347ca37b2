package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosing
	StateClosed
)

// malformedWarnThreshold is the run of consecutive undecodable frames after
// which the session surfaces a warning to the operational layer.
const malformedWarnThreshold = 5

// Session drives the lifecycle of one connection: register, replay history,
// announce the join, process inbound events, announce the leave, clean up.
type Session struct {
	conn        Conn
	room        string
	username    string
	registry    *Registry
	store       MessageStore
	broadcaster *Broadcaster
	logger      *slog.Logger

	state    atomic.Int32
	teardown sync.Once
}

func NewSession(conn Conn, room, username string, registry *Registry,
	store MessageStore, broadcaster *Broadcaster, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		conn:        conn,
		room:        room,
		username:    username,
		registry:    registry,
		store:       store,
		broadcaster: broadcaster,
		logger: logger.With(
			slog.String("conn.id", conn.ID()),
			slog.String("room", room),
			slog.String("username", username)),
	}
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Run executes the session until the peer disconnects or a fatal error
// occurs. It always releases the registry entry and the transport.
func (s *Session) Run(ctx context.Context) {
	if err := s.registry.Register(s.conn, s.room, s.username); err != nil {
		// nothing was announced, so tear down without a leave broadcast
		s.logger.Error("register connection", slog.Any("error", err))
		s.close(ctx, false)
		return
	}
	s.state.Store(int32(StateActive))

	if err := s.replayHistory(ctx); err != nil {
		s.logger.Error("replay history", slog.Any("error", err))
		s.close(ctx, false)
		return
	}

	if err := s.announceJoin(ctx); err != nil {
		s.logger.Error("announce join", slog.Any("error", err))
		s.close(ctx, false)
		return
	}

	s.loop(ctx)
}

func (s *Session) loop(ctx context.Context) {
	malformed := 0
	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			if !errors.Is(err, ErrTransportClosed) {
				s.logger.Error("read frame", slog.Any("error", err))
			}
			s.close(ctx, true)
			return
		}

		event, err := DecodeInbound(frame)
		if err != nil {
			malformed++
			if malformed == malformedWarnThreshold {
				s.logger.Warn("persistent run of malformed frames",
					slog.Int("count", malformed), slog.Any("error", err))
			} else {
				s.logger.Debug("dropping malformed frame", slog.Any("error", err))
			}
			continue
		}
		malformed = 0

		switch event.Event {
		case EventMessage:
			if err := s.handleMessage(ctx, event.Message); err != nil {
				// the sender believes the message was sent; do not drop it
				// silently
				s.logger.Error("handle message", slog.Any("error", err))
				s.close(ctx, true)
				return
			}
		case EventTyping:
			s.handleTyping(event.Typing)
		default:
			// unrecognized event kinds are a forward-compatible no-op
		}
	}
}

// replayHistory sends the room's stored messages to this connection only.
func (s *Session) replayHistory(ctx context.Context) error {
	messages, err := s.store.ListByRoom(ctx, s.room)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	payload, err := EncodeHistory(messages)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	if err := s.conn.Send(payload); err != nil {
		return fmt.Errorf("send history: %w", err)
	}
	return nil
}

func (s *Session) announceJoin(ctx context.Context) error {
	if err := s.broadcastSystem(ctx, fmt.Sprintf("%s joined", s.username)); err != nil {
		return err
	}
	s.broadcastUserList()
	return nil
}

// handleMessage persists the message, then broadcasts it. Persisting first
// keeps history replay consistent with what was delivered live.
func (s *Session) handleMessage(ctx context.Context, content string) error {
	author := s.username
	message := Message{
		Room:    s.room,
		Content: content,
		Author:  &author,
		SentAt:  time.Now(),
	}

	id, err := s.store.Append(ctx, message.Room, message.Content, message.Author, message.SentAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	message.ID = id

	payload, err := EncodeMessage(message)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	s.broadcaster.Broadcast(s.room, payload)
	return nil
}

// handleTyping relays the indicator to the rest of the room. Typing events
// are never persisted.
func (s *Session) handleTyping(typing bool) {
	payload, err := EncodeTyping(s.username, typing)
	if err != nil {
		s.logger.Error("encode typing", slog.Any("error", err))
		return
	}
	s.broadcaster.BroadcastExcept(s.room, payload, s.conn)
}

func (s *Session) broadcastSystem(ctx context.Context, content string) error {
	message := Message{
		Room:    s.room,
		Content: content,
		SentAt:  time.Now(),
	}

	id, err := s.store.Append(ctx, message.Room, message.Content, nil, message.SentAt)
	if err != nil {
		return fmt.Errorf("append system message: %w", err)
	}
	message.ID = id

	payload, err := EncodeMessage(message)
	if err != nil {
		return fmt.Errorf("encode system message: %w", err)
	}

	s.broadcaster.Broadcast(s.room, payload)
	return nil
}

func (s *Session) broadcastUserList() {
	payload, err := EncodeUserList(s.registry.MembersOf(s.room))
	if err != nil {
		s.logger.Error("encode user list", slog.Any("error", err))
		return
	}
	s.broadcaster.Broadcast(s.room, payload)
}

// close tears the session down exactly once. With announce set it persists
// and broadcasts the leave message and a refreshed member list; without it
// the session vanishes silently (used when the join was never announced).
func (s *Session) close(ctx context.Context, announce bool) {
	s.teardown.Do(func() {
		s.state.Store(int32(StateClosing))

		s.registry.Deregister(s.conn)

		if announce {
			if err := s.broadcastSystem(ctx, fmt.Sprintf("%s left", s.username)); err != nil {
				s.logger.Error("announce leave", slog.Any("error", err))
			}
			s.broadcastUserList()
		}

		if err := s.conn.Close(); err != nil {
			s.logger.Error("close transport", slog.Any("error", err))
		}

		s.state.Store(int32(StateClosed))
		s.logger.Debug("session closed")
	})
}
