// Package roombroker allocates the call room correlated with an appointment
// in an external store. Every failure is reported as *RoomAllocationError;
// callers degrade instead of retrying.
package roombroker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Broker interface {
	// CreateRoom allocates the room for appointmentID. Calling it again for
	// the same appointment returns the room already allocated.
	CreateRoom(ctx context.Context, appointmentID string) (roomID string, err error)
	LookupRoom(ctx context.Context, appointmentID string) (roomID string, found bool, err error)
	// AppointmentForRoom resolves a room back to the appointment it was
	// allocated for.
	AppointmentForRoom(ctx context.Context, roomID string) (appointmentID string, found bool, err error)
}

type RoomAllocationError struct {
	AppointmentID string
	RoomID        string // set instead of AppointmentID for lookups by room
	Op            string
	Err           error
}

func (e *RoomAllocationError) Error() string {
	if e.RoomID != "" {
		return fmt.Sprintf("room allocation failed (%s) for room %s: %v", e.Op, e.RoomID, e.Err)
	}
	return fmt.Sprintf("room allocation failed (%s) for appointment %s: %v", e.Op, e.AppointmentID, e.Err)
}

func (e *RoomAllocationError) Unwrap() error {
	return e.Err
}

func IsRoomAllocationError(err error) bool {
	var rae *RoomAllocationError
	return errors.As(err, &rae)
}

// CallRoom is the record stored for each allocated room.
type CallRoom struct {
	RoomID        string    `json:"roomId"`
	AppointmentID string    `json:"appointmentId"`
	CreatedAt     time.Time `json:"createdAt"`
}

func allocErr(appointmentID, op string, err error) error {
	return &RoomAllocationError{AppointmentID: appointmentID, Op: op, Err: err}
}

func roomErr(roomID, op string, err error) error {
	return &RoomAllocationError{RoomID: roomID, Op: op, Err: err}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
