package chat

import (
	"errors"
	"slices"
	"sync"
)

// ErrDuplicateConnection is returned when a connection is registered twice.
var ErrDuplicateConnection = errors.New("connection already registered")

type presenceEntry struct {
	conn     Conn
	room     string
	username string
}

// Registry holds the authoritative mapping of live connections to their
// room and display name. All operations are safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	// rooms keeps entries per room in registration order
	rooms map[string][]*presenceEntry
	conns map[string]*presenceEntry
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string][]*presenceEntry),
		conns: make(map[string]*presenceEntry),
	}
}

func (r *Registry) Register(conn Conn, room, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID()]; ok {
		return ErrDuplicateConnection
	}

	entry := &presenceEntry{conn: conn, room: room, username: username}
	r.conns[conn.ID()] = entry
	r.rooms[room] = append(r.rooms[room], entry)

	return nil
}

// Deregister removes the entry for conn. It is a no-op if the connection is
// not registered, so racing cleanup paths can both call it safely.
func (r *Registry) Deregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[conn.ID()]
	if !ok {
		return
	}
	delete(r.conns, conn.ID())

	entries := r.rooms[entry.room]
	idx := slices.Index(entries, entry)
	if idx == -1 {
		return
	}
	entries = slices.Delete(entries, idx, idx+1)
	if len(entries) == 0 {
		delete(r.rooms, entry.room)
	} else {
		r.rooms[entry.room] = entries
	}
}

// MembersOf returns the display names currently bound to room in
// registration order.
func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.rooms[room]
	members := make([]string, 0, len(entries))
	for _, entry := range entries {
		members = append(members, entry.username)
	}
	return members
}

// ConnectionsOf returns a snapshot of the live connections bound to room.
// Mutations after the call do not affect the returned slice.
func (r *Registry) ConnectionsOf(room string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.rooms[room]
	conns := make([]Conn, 0, len(entries))
	for _, entry := range entries {
		conns = append(conns, entry.conn)
	}
	return conns
}

// ActiveRooms returns the distinct rooms with at least one live connection.
func (r *Registry) ActiveRooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.rooms))
	for room := range r.rooms {
		rooms = append(rooms, room)
	}
	slices.Sort(rooms)
	return rooms
}
