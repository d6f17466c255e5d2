package realtime

import (
	"sync"

	"github.com/samber/lo"

	"github.com/BruksfildServices01/consult-scheduler/internal/presence"
)

// Member is one connection inside a call room.
type Member struct {
	Handle presence.Handle
	UserID string
}

// CallRooms tracks which connections joined which call room. A connection is
// in at most one room at a time.
type CallRooms struct {
	mu      sync.RWMutex
	members map[string]map[presence.Handle]string
	joined  map[presence.Handle]string
}

func NewCallRooms() *CallRooms {
	return &CallRooms{
		members: make(map[string]map[presence.Handle]string),
		joined:  make(map[presence.Handle]string),
	}
}

// Join adds m to roomID and returns the members that were already there.
// The caller leaves any previous room first.
func (r *CallRooms) Join(roomID string, m Member) []Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.members[roomID]
	if !ok {
		room = make(map[presence.Handle]string)
		r.members[roomID] = room
	}

	peers := membersExcept(room, m.Handle)
	room[m.Handle] = m.UserID
	r.joined[m.Handle] = roomID
	return peers
}

// Leave removes handle from its room and returns the room id and the members
// still in it. ok is false when the handle was in no room.
func (r *CallRooms) Leave(handle presence.Handle) (roomID string, remaining []Member, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok = r.joined[handle]
	if !ok {
		return "", nil, false
	}
	delete(r.joined, handle)

	room := r.members[roomID]
	delete(room, handle)
	if len(room) == 0 {
		delete(r.members, roomID)
		return roomID, nil, true
	}
	return roomID, membersExcept(room, handle), true
}

// RoomOf returns the room handle is in.
func (r *CallRooms) RoomOf(handle presence.Handle) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomID, ok := r.joined[handle]
	return roomID, ok
}

// Peers returns the other members of roomID. ok is false when handle is not
// itself a member of roomID.
func (r *CallRooms) Peers(roomID string, handle presence.Handle) (peers []Member, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.members[roomID]
	if _, member := room[handle]; !member {
		return nil, false
	}
	return membersExcept(room, handle), true
}

// Len returns the number of rooms with at least one member.
func (r *CallRooms) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func membersExcept(room map[presence.Handle]string, handle presence.Handle) []Member {
	others := lo.OmitByKeys(room, []presence.Handle{handle})
	return lo.MapToSlice(others, func(h presence.Handle, userID string) Member {
		return Member{Handle: h, UserID: userID}
	})
}
