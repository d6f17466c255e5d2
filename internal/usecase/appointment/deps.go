package appointment

import (
	"context"
	"errors"

	"github.com/BruksfildServices01/consult-scheduler/internal/audit"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
)

// ErrForbidden is returned when the caller is not allowed to act on the
// appointment.
var ErrForbidden = errors.New("forbidden")

// Actor is the authenticated caller.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsDoctor() bool  { return a.Role == models.RoleDoctor }
func (a Actor) IsPatient() bool { return a.Role == models.RolePatient }

// SessionScheduler is the part of the scheduler the request path drives.
// Every hook runs with the appointment lock held.
type SessionScheduler interface {
	Lock(appointmentID string) (unlock func())
	OnAppointmentBooked(ctx context.Context, ap *models.Appointment) error
	OnAppointmentConfirmed(ctx context.Context, ap *models.Appointment) error
	OnAppointmentCancelled(appointmentID string)
}

type Notifier interface {
	Notify(event string, payload any, userIDs ...string) int
}

type Auditor interface {
	Dispatch(ev audit.Event)
}

// otherParticipant returns the participant who did not trigger the change.
func otherParticipant(ap *models.Appointment, actorID string) string {
	if ap.DoctorID == actorID {
		return ap.PatientID
	}
	return ap.DoctorID
}
