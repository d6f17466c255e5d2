package appointment

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/BruksfildServices01/consult-scheduler/internal/clock"
	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
	"github.com/BruksfildServices01/consult-scheduler/internal/roombroker"
)

// SessionStatus is what a client that missed the sessionStarting push needs
// to join the call.
type SessionStatus struct {
	Active bool
	RoomID *string
}

type GetSessionStatus struct {
	repo   domain.Repository
	rooms  roombroker.Broker
	clock  clock.Clock
	logger zerolog.Logger
}

func NewGetSessionStatus(
	repo domain.Repository,
	rooms roombroker.Broker,
	clk clock.Clock,
	logger zerolog.Logger,
) *GetSessionStatus {
	return &GetSessionStatus{
		repo:   repo,
		rooms:  rooms,
		clock:  clk,
		logger: logger,
	}
}

// Execute answers the session query for one of the two participants.
func (uc *GetSessionStatus) Execute(
	ctx context.Context,
	actor Actor,
	appointmentID string,
) (SessionStatus, error) {

	ap, err := uc.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return SessionStatus{}, err
	}
	if !ap.HasParticipant(actor.UserID) {
		return SessionStatus{}, ErrForbidden
	}
	return uc.sessionOf(ctx, ap), nil
}

// IsSessionActive reports whether the appointment is confirmed and now lies
// in [StartsAt, EndsAt). The room is looked up only for an active session; a
// broker failure degrades to a null room.
func (uc *GetSessionStatus) IsSessionActive(
	ctx context.Context,
	appointmentID string,
) (SessionStatus, error) {

	ap, err := uc.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return SessionStatus{}, err
	}
	return uc.sessionOf(ctx, ap), nil
}

func (uc *GetSessionStatus) sessionOf(ctx context.Context, ap *models.Appointment) SessionStatus {
	now := uc.clock.Now()
	if domain.Status(ap.Status) != domain.StatusConfirmed ||
		now.Before(ap.StartsAt) ||
		!now.Before(ap.EndsAt) {
		return SessionStatus{}
	}

	status := SessionStatus{Active: true}

	roomID, found, err := uc.rooms.LookupRoom(ctx, ap.ID)
	switch {
	case err != nil:
		uc.logger.Warn().Err(err).Str("appointment_id", ap.ID).Msg("room lookup failed")
	case found:
		status.RoomID = &roomID
	}
	return status
}
