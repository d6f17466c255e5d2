package testfixtures

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/BruksfildServices01/consult-scheduler/internal/roombroker"
)

var ErrQuotaExceeded = errors.New("quota exceeded")

// RoomBroker is an in-memory roombroker.Broker. With Fail set every call
// returns a *roombroker.RoomAllocationError.
type RoomBroker struct {
	mu    sync.Mutex
	rooms map[string]string
	calls int
	Fail  bool
}

func NewRoomBroker() *RoomBroker {
	return &RoomBroker{rooms: make(map[string]string)}
}

func (b *RoomBroker) CreateRoom(_ context.Context, appointmentID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls++
	if b.Fail {
		return "", &roombroker.RoomAllocationError{AppointmentID: appointmentID, Op: "create", Err: ErrQuotaExceeded}
	}
	if roomID, ok := b.rooms[appointmentID]; ok {
		return roomID, nil
	}
	roomID := uuid.NewString()
	b.rooms[appointmentID] = roomID
	return roomID, nil
}

func (b *RoomBroker) LookupRoom(_ context.Context, appointmentID string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Fail {
		return "", false, &roombroker.RoomAllocationError{AppointmentID: appointmentID, Op: "lookup", Err: ErrQuotaExceeded}
	}
	roomID, ok := b.rooms[appointmentID]
	return roomID, ok, nil
}

func (b *RoomBroker) AppointmentForRoom(_ context.Context, roomID string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Fail {
		return "", false, &roombroker.RoomAllocationError{RoomID: roomID, Op: "room_lookup", Err: ErrQuotaExceeded}
	}
	for appointmentID, id := range b.rooms {
		if id == roomID {
			return appointmentID, true, nil
		}
	}
	return "", false, nil
}

func (b *RoomBroker) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

var _ roombroker.Broker = (*RoomBroker)(nil)
