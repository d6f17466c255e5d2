package appointment

import (
	"context"
	"errors"

	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
	"github.com/BruksfildServices01/consult-scheduler/internal/roombroker"
)

// ErrRoomNotFound is returned when no appointment is correlated with a room.
var ErrRoomNotFound = errors.New("room_not_found")

// CallAccess is granted to a participant of the appointment behind a room.
type CallAccess struct {
	RoomID        string
	AppointmentID string
	Role          string
}

type VerifyCallAccess struct {
	repo  domain.Repository
	rooms roombroker.Broker
}

func NewVerifyCallAccess(repo domain.Repository, rooms roombroker.Broker) *VerifyCallAccess {
	return &VerifyCallAccess{repo: repo, rooms: rooms}
}

// Execute resolves roomID to its appointment and admits the caller only if
// they are one of its two participants. Rooms of cancelled appointments are
// closed.
func (uc *VerifyCallAccess) Execute(
	ctx context.Context,
	actor Actor,
	roomID string,
) (CallAccess, error) {

	appointmentID, found, err := uc.rooms.AppointmentForRoom(ctx, roomID)
	if err != nil {
		return CallAccess{}, err
	}
	if !found {
		return CallAccess{}, ErrRoomNotFound
	}

	ap, err := uc.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return CallAccess{}, err
	}

	if !ap.HasParticipant(actor.UserID) {
		return CallAccess{}, ErrForbidden
	}
	if domain.Status(ap.Status) == domain.StatusCancelled {
		return CallAccess{}, httperr.ErrBusiness("appointment_cancelled")
	}

	role := models.RolePatient
	if ap.DoctorID == actor.UserID {
		role = models.RoleDoctor
	}

	return CallAccess{
		RoomID:        roomID,
		AppointmentID: ap.ID,
		Role:          role,
	}, nil
}

// AuthorizeRoom is the websocket admission check for signaling.
func (uc *VerifyCallAccess) AuthorizeRoom(ctx context.Context, userID, roomID string) error {
	_, err := uc.Execute(ctx, Actor{UserID: userID}, roomID)
	return err
}
