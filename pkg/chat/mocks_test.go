package chat

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockConn is an in-memory Conn. The test plays the peer: PeerSend feeds
// frames to ReadFrame, PeerClose simulates a transport disconnect, and out
// collects everything delivered to the connection.
type MockConn struct {
	id  string
	in  chan []byte
	out chan []byte

	failSend bool

	done      chan struct{}
	closeOnce sync.Once
}

func NewMockConn(id string) *MockConn {
	return &MockConn{
		id:   id,
		in:   make(chan []byte, 16),
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

func (c *MockConn) ID() string {
	return c.id
}

func (c *MockConn) ReadFrame() ([]byte, error) {
	select {
	case frame := <-c.in:
		return frame, nil
	case <-c.done:
		return nil, ErrTransportClosed
	}
}

func (c *MockConn) Send(payload []byte) error {
	if c.failSend {
		return errors.New("write: broken pipe")
	}
	select {
	case c.out <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *MockConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *MockConn) PeerSend(frame []byte) {
	c.in <- frame
}

func (c *MockConn) PeerClose() {
	c.Close()
}

// MemStore is an in-memory MessageStore for session tests.
type MemStore struct {
	mu        sync.Mutex
	messages  []Message
	nextID    int64
	appendErr error
	listErr   error
}

func NewMemStore() *MemStore {
	return &MemStore{nextID: 1}
}

func (s *MemStore) Append(ctx context.Context, room, content string, author *string, sentAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return 0, s.appendErr
	}
	id := s.nextID
	s.nextID++
	s.messages = append(s.messages, Message{
		ID:      id,
		Room:    room,
		Content: content,
		Author:  author,
		SentAt:  sentAt,
	})
	return id, nil
}

func (s *MemStore) ListByRoom(ctx context.Context, room string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var messages []Message
	for _, m := range s.messages {
		if m.Room == room {
			messages = append(messages, m)
		}
	}
	return messages, nil
}

func (s *MemStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}
