package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Add_Several_Connections_Same_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()

	// When a user connects from two tabs
	registry.Add(userID, "tab-1")
	registry.Add(userID, "tab-2")

	// Then both handles are kept under one entry
	req.Equal(1, registry.Len())
	req.ElementsMatch([]Handle{"tab-1", "tab-2"}, registry.ConnectionsOf(userID))
}

func TestRegistry_Remove_Last_Handle_Deletes_Entry(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()

	// Given a user with two simultaneous connections
	registry.Add(userID, "tab-1")
	registry.Add(userID, "tab-2")

	// When one disconnects
	registry.Remove(userID, "tab-1")

	// Then exactly one entry with one handle remains
	req.Equal(1, registry.Len())
	req.Equal([]Handle{"tab-2"}, registry.ConnectionsOf(userID))

	// When the second disconnects
	registry.Remove(userID, "tab-2")

	// Then the entry is gone
	req.Zero(registry.Len())
	req.False(registry.IsOnline(userID))
	req.Empty(registry.ConnectionsOf(userID))
}

func TestRegistry_Unknown_User_Is_Offline(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.Empty(registry.ConnectionsOf("nobody"))
	req.False(registry.IsOnline("nobody"))

	// Removing from an unknown user is a no-op
	registry.Remove("nobody", "h")
	req.Zero(registry.Len())
}

func TestRegistry_Re_Adding_Same_Handle_Does_Not_Duplicate(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Add("u", "h")
	registry.Add("u", "h")

	req.Len(registry.ConnectionsOf("u"), 1)
}

func TestRegistry_Concurrent_Connect_Disconnect(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle := Handle(fmt.Sprintf("h-%d", i))
			registry.Add("u", handle)
			_ = registry.ConnectionsOf("u")
			registry.Remove("u", handle)
		}(i)
	}
	wg.Wait()

	req.Zero(registry.Len())
}
