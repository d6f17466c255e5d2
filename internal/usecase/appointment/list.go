package appointment

import (
	"context"

	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
)

type ListAppointments struct {
	repo domain.Repository
}

func NewListAppointments(repo domain.Repository) *ListAppointments {
	return &ListAppointments{repo: repo}
}

// Execute returns the caller's appointments: those they hold as doctor or
// as patient, depending on their role.
func (uc *ListAppointments) Execute(
	ctx context.Context,
	actor Actor,
) ([]models.Appointment, error) {
	return uc.repo.ListAppointmentsForUser(ctx, actor.UserID, actor.Role)
}

type GetAppointment struct {
	repo domain.Repository
}

func NewGetAppointment(repo domain.Repository) *GetAppointment {
	return &GetAppointment{repo: repo}
}

func (uc *GetAppointment) Execute(
	ctx context.Context,
	actor Actor,
	appointmentID string,
) (*models.Appointment, error) {

	ap, err := uc.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if !ap.HasParticipant(actor.UserID) {
		return nil, ErrForbidden
	}
	return ap, nil
}
