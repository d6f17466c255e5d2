package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/BruksfildServices01/consult-scheduler/internal/audit"
	"github.com/BruksfildServices01/consult-scheduler/internal/clock"
	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
	"github.com/BruksfildServices01/consult-scheduler/internal/realtime"
	"github.com/BruksfildServices01/consult-scheduler/internal/timezone"
)

// ======================================================
// INPUT
// ======================================================

type BookAppointmentInput struct {
	DoctorID  string
	Date      string
	StartTime string
	EndTime   string
}

// ======================================================
// USE CASE
// ======================================================

type BookAppointment struct {
	repo      domain.Repository
	scheduler SessionScheduler
	notifier  Notifier
	audit     Auditor
	clock     clock.Clock
	loc       *time.Location
	logger    zerolog.Logger
}

func NewBookAppointment(
	repo domain.Repository,
	scheduler SessionScheduler,
	notifier Notifier,
	audit Auditor,
	clk clock.Clock,
	loc *time.Location,
	logger zerolog.Logger,
) *BookAppointment {
	return &BookAppointment{
		repo:      repo,
		scheduler: scheduler,
		notifier:  notifier,
		audit:     audit,
		clock:     clk,
		loc:       loc,
		logger:    logger,
	}
}

// ======================================================
// EXECUTE
// ======================================================

func (uc *BookAppointment) Execute(
	ctx context.Context,
	actor Actor,
	in BookAppointmentInput,
) (*models.Appointment, error) {

	if !actor.IsPatient() {
		return nil, ErrForbidden
	}

	// --------------------------------------------------
	// Input
	// --------------------------------------------------
	doctorID := strings.TrimSpace(in.DoctorID)
	if doctorID == "" {
		return nil, httperr.ErrBusiness("doctor_required")
	}
	if doctorID == actor.UserID {
		return nil, httperr.ErrBusiness("invalid_doctor")
	}

	startsAt, err := timezone.Instant(in.Date, in.StartTime, uc.loc)
	if err != nil {
		return nil, httperr.ErrBusiness("invalid_date_or_time")
	}
	endsAt, err := timezone.Instant(in.Date, in.EndTime, uc.loc)
	if err != nil {
		return nil, httperr.ErrBusiness("invalid_date_or_time")
	}

	if !endsAt.After(startsAt) {
		return nil, httperr.ErrBusiness("invalid_time_range")
	}
	if !startsAt.After(uc.clock.Now()) {
		return nil, httperr.ErrBusiness("appointment_in_past")
	}

	// --------------------------------------------------
	// Slot conflict
	// --------------------------------------------------
	if err := uc.repo.AssertSlotFree(ctx, doctorID, in.Date, in.StartTime); err != nil {
		return nil, err
	}

	// --------------------------------------------------
	// Create
	// --------------------------------------------------
	ap := &models.Appointment{
		ID:        uuid.NewString(),
		DoctorID:  doctorID,
		PatientID: actor.UserID,
		Date:      in.Date,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		Status:    string(domain.InitialStatus()),
	}

	if err := uc.repo.CreateAppointment(ctx, ap); err != nil {
		if httperr.IsBusiness(err, "time_conflict") {
			uc.logger.Info().
				Str("doctor_id", doctorID).
				Str("date", in.Date).
				Str("start_time", in.StartTime).
				Msg("slot taken by a concurrent booking")
		}
		return nil, err
	}

	unlock := uc.scheduler.Lock(ap.ID)
	err = uc.scheduler.OnAppointmentBooked(ctx, ap)
	unlock()
	if err != nil {
		// The reconciler picks the row up on the next boot.
		uc.logger.Error().Err(err).Str("appointment_id", ap.ID).Msg("could not schedule booked appointment")
	}

	uc.notifier.Notify(realtime.EventNewAppointmentRequest, realtime.NewAppointmentPayload(ap), ap.DoctorID)

	uc.audit.Dispatch(audit.Event{
		ActorID:  &actor.UserID,
		Action:   "appointment_created",
		Entity:   "appointment",
		EntityID: ap.ID,
		Metadata: map[string]any{"doctor_id": ap.DoctorID, "starts_at": ap.StartsAt},
	})

	return ap, nil
}
