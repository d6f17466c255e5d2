package appointment

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/BruksfildServices01/consult-scheduler/internal/audit"
	"github.com/BruksfildServices01/consult-scheduler/internal/clock"
	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
	"github.com/BruksfildServices01/consult-scheduler/internal/realtime"
)

type ConfirmAppointment struct {
	repo      domain.Repository
	scheduler SessionScheduler
	notifier  Notifier
	audit     Auditor
	clock     clock.Clock
	logger    zerolog.Logger
}

func NewConfirmAppointment(
	repo domain.Repository,
	scheduler SessionScheduler,
	notifier Notifier,
	audit Auditor,
	clk clock.Clock,
	logger zerolog.Logger,
) *ConfirmAppointment {
	return &ConfirmAppointment{
		repo:      repo,
		scheduler: scheduler,
		notifier:  notifier,
		audit:     audit,
		clock:     clk,
		logger:    logger,
	}
}

func (uc *ConfirmAppointment) Execute(
	ctx context.Context,
	actor Actor,
	appointmentID string,
) (*models.Appointment, error) {

	unlock := uc.scheduler.Lock(appointmentID)
	defer unlock()

	ap, err := uc.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if !actor.IsDoctor() || ap.DoctorID != actor.UserID {
		return nil, ErrForbidden
	}

	now := uc.clock.Now()
	from := domain.Status(ap.Status)

	// An elapsed pending appointment belongs to its end job.
	if from == domain.StatusPending && !ap.EndsAt.After(now) {
		return nil, httperr.ErrBusiness("appointment_expired")
	}

	effects, err := domain.Confirm(ap, now)
	if err != nil {
		return nil, err
	}

	if err := uc.repo.UpdateStatus(ctx, ap, from); err != nil {
		return nil, err
	}

	if lo.Contains(effects, domain.EffectScheduleSession) {
		// The row is already confirmed; the reconciler rearms it on the next boot.
		if err := uc.scheduler.OnAppointmentConfirmed(ctx, ap); err != nil {
			uc.logger.Error().Err(err).Str("appointment_id", ap.ID).Msg("could not schedule confirmed appointment")
		}
	}

	if lo.Contains(effects, domain.EffectNotifyParticipants) {
		uc.notifier.Notify(
			realtime.EventAppointmentStatusChanged,
			realtime.NewAppointmentPayload(ap),
			otherParticipant(ap, actor.UserID),
		)
	}

	uc.audit.Dispatch(audit.Event{
		ActorID:  &actor.UserID,
		Action:   "appointment_confirmed",
		Entity:   "appointment",
		EntityID: ap.ID,
		Metadata: map[string]any{"from": from},
	})

	return ap, nil
}
