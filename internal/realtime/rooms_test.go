package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BruksfildServices01/consult-scheduler/internal/presence"
)

func TestCallRooms_Join_Returns_Existing_Members(t *testing.T) {
	req := require.New(t)
	rooms := NewCallRooms()

	// Given an empty room
	peers := rooms.Join("room-1", Member{Handle: "h-patient", UserID: "patient-1"})
	req.Empty(peers)

	// When a second connection joins
	peers = rooms.Join("room-1", Member{Handle: "h-doctor", UserID: "doctor-1"})

	// Then it sees the first one
	req.Equal([]Member{{Handle: "h-patient", UserID: "patient-1"}}, peers)
	req.Equal(1, rooms.Len())

	roomID, ok := rooms.RoomOf("h-doctor")
	req.True(ok)
	req.Equal("room-1", roomID)
}

func TestCallRooms_Peers_Requires_Membership(t *testing.T) {
	req := require.New(t)
	rooms := NewCallRooms()
	rooms.Join("room-1", Member{Handle: "h-patient", UserID: "patient-1"})
	rooms.Join("room-1", Member{Handle: "h-doctor", UserID: "doctor-1"})

	peers, ok := rooms.Peers("room-1", "h-doctor")
	req.True(ok)
	req.Equal([]Member{{Handle: "h-patient", UserID: "patient-1"}}, peers)

	_, ok = rooms.Peers("room-1", "h-stranger")
	req.False(ok)

	_, ok = rooms.Peers("room-2", "h-doctor")
	req.False(ok)
}

func TestCallRooms_Leave_Deletes_Empty_Room(t *testing.T) {
	req := require.New(t)
	rooms := NewCallRooms()
	rooms.Join("room-1", Member{Handle: "h-patient", UserID: "patient-1"})
	rooms.Join("room-1", Member{Handle: "h-doctor", UserID: "doctor-1"})

	// When the doctor leaves
	roomID, remaining, ok := rooms.Leave("h-doctor")

	// Then the patient remains
	req.True(ok)
	req.Equal("room-1", roomID)
	req.Equal([]Member{{Handle: "h-patient", UserID: "patient-1"}}, remaining)

	// When the last member leaves
	_, remaining, ok = rooms.Leave("h-patient")

	// Then the room is gone
	req.True(ok)
	req.Empty(remaining)
	req.Zero(rooms.Len())

	_, _, ok = rooms.Leave(presence.Handle("h-patient"))
	req.False(ok)
}
