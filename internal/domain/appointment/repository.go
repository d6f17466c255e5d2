package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/BruksfildServices01/consult-scheduler/internal/models"
)

var ErrNotFound = errors.New("appointment_not_found")

// ErrStaleStatus is returned by UpdateStatus when the stored status no longer
// matches the status the caller read.
var ErrStaleStatus = errors.New("appointment_status_changed")

// ErrUnknownStatus is returned when a stored row carries a status outside the
// lifecycle.
var ErrUnknownStatus = errors.New("appointment_unknown_status")

// EndFilter selects appointments by where EndsAt falls relative to an instant.
type EndFilter struct {
	// EndsAfter keeps rows with EndsAt > EndsAfter when non-zero.
	EndsAfter time.Time
	// EndsNotAfter keeps rows with EndsAt <= EndsNotAfter when non-zero.
	EndsNotAfter time.Time
}

type Repository interface {
	// -------- Appointment (read) --------
	GetAppointment(
		ctx context.Context,
		id string,
	) (*models.Appointment, error)

	ListAppointmentsForUser(
		ctx context.Context,
		userID string,
		role string,
	) ([]models.Appointment, error)

	ListByStatusAndEnd(
		ctx context.Context,
		statuses []Status,
		filter EndFilter,
	) ([]models.Appointment, error)

	// -------- Appointment (create / conflict) --------
	CreateAppointment(
		ctx context.Context,
		ap *models.Appointment,
	) error

	AssertSlotFree(
		ctx context.Context,
		doctorID string,
		date string,
		startTime string,
	) error

	// -------- Appointment (state change) --------

	// UpdateStatus persists ap's status and transition fields, but only if
	// the stored status is still from.
	UpdateStatus(
		ctx context.Context,
		ap *models.Appointment,
		from Status,
	) error
}
