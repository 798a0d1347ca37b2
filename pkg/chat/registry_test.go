package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	t.Run("register new connection", func(t *testing.T) {
		r := NewRegistry()
		c := NewMockConn("1")

		err := r.Register(c, "general", "alice")

		require.Nil(t, err)
		assert.Equal(t, []string{"alice"}, r.MembersOf("general"))
		assert.Equal(t, []string{"general"}, r.ActiveRooms())
	})

	t.Run("duplicate connection", func(t *testing.T) {
		r := NewRegistry()
		c := NewMockConn("1")

		require.Nil(t, r.Register(c, "general", "alice"))
		err := r.Register(c, "general", "alice")

		require.NotNil(t, err)
		assert.Equal(t, ErrDuplicateConnection, err)
		assert.Equal(t, []string{"alice"}, r.MembersOf("general"))
	})
}

func TestDeregister(t *testing.T) {
	t.Run("removes the entry", func(t *testing.T) {
		r := NewRegistry()
		c := NewMockConn("1")
		require.Nil(t, r.Register(c, "general", "alice"))

		r.Deregister(c)

		assert.Empty(t, r.MembersOf("general"))
		assert.Empty(t, r.ActiveRooms())
	})

	t.Run("idempotent", func(t *testing.T) {
		r := NewRegistry()
		c1 := NewMockConn("1")
		c2 := NewMockConn("2")
		require.Nil(t, r.Register(c1, "general", "alice"))
		require.Nil(t, r.Register(c2, "general", "bob"))

		r.Deregister(c1)
		r.Deregister(c1)

		assert.Equal(t, []string{"bob"}, r.MembersOf("general"))
	})

	t.Run("unknown connection is a no-op", func(t *testing.T) {
		r := NewRegistry()
		r.Deregister(NewMockConn("1"))
		assert.Empty(t, r.ActiveRooms())
	})
}

func TestMembersOf(t *testing.T) {
	t.Run("registration order", func(t *testing.T) {
		r := NewRegistry()
		require.Nil(t, r.Register(NewMockConn("1"), "general", "alice"))
		require.Nil(t, r.Register(NewMockConn("2"), "general", "bob"))
		require.Nil(t, r.Register(NewMockConn("3"), "other", "carol"))

		assert.Equal(t, []string{"alice", "bob"}, r.MembersOf("general"))
		assert.Equal(t, []string{"carol"}, r.MembersOf("other"))
		assert.Empty(t, r.MembersOf("empty"))
	})
}

func TestConnectionsOf(t *testing.T) {
	t.Run("snapshot is stable under later mutation", func(t *testing.T) {
		r := NewRegistry()
		c1 := NewMockConn("1")
		c2 := NewMockConn("2")
		require.Nil(t, r.Register(c1, "general", "alice"))
		require.Nil(t, r.Register(c2, "general", "bob"))

		snapshot := r.ConnectionsOf("general")
		r.Deregister(c1)

		require.Len(t, snapshot, 2)
		assert.Equal(t, "1", snapshot[0].ID())
		assert.Equal(t, "2", snapshot[1].ID())
		assert.Len(t, r.ConnectionsOf("general"), 1)
	})
}

func TestActiveRooms(t *testing.T) {
	r := NewRegistry()
	require.Nil(t, r.Register(NewMockConn("1"), "b", "alice"))
	require.Nil(t, r.Register(NewMockConn("2"), "a", "bob"))
	require.Nil(t, r.Register(NewMockConn("3"), "a", "carol"))

	assert.Equal(t, []string{"a", "b"}, r.ActiveRooms())
}

// After any interleaving of concurrent registers and deregisters, the
// members of a room are exactly the usernames whose last operation was a
// register without a subsequent deregister.
func TestRegistry_concurrent(t *testing.T) {
	const n = 64

	r := NewRegistry()

	var wg sync.WaitGroup
	stay := make([]Conn, 0, n)
	for i := 0; i < n; i++ {
		c := NewMockConn(fmt.Sprintf("stay-%d", i))
		stay = append(stay, c)
	}

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := r.Register(stay[i], "general", fmt.Sprintf("user-%d", i)); err != nil {
				t.Error(err)
			}
		}(i)

		// churn: a second cohort registers and deregisters concurrently
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewMockConn(fmt.Sprintf("churn-%d", i))
			if err := r.Register(c, "general", fmt.Sprintf("ghost-%d", i)); err != nil {
				t.Error(err)
			}
			r.Deregister(c)
			r.Deregister(c)
		}(i)

		// readers must never observe a torn set
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.MembersOf("general")
			r.ConnectionsOf("general")
			r.ActiveRooms()
		}()
	}

	wg.Wait()

	members := r.MembersOf("general")
	require.Len(t, members, n)
	for i := 0; i < n; i++ {
		assert.Contains(t, members, fmt.Sprintf("user-%d", i))
	}
	for _, m := range members {
		assert.NotContains(t, m, "ghost")
	}
}
