package appointment

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/BruksfildServices01/consult-scheduler/internal/audit"
	"github.com/BruksfildServices01/consult-scheduler/internal/clock"
	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
	"github.com/BruksfildServices01/consult-scheduler/internal/realtime"
)

type CancelAppointment struct {
	repo      domain.Repository
	scheduler SessionScheduler
	notifier  Notifier
	audit     Auditor
	clock     clock.Clock
}

func NewCancelAppointment(
	repo domain.Repository,
	scheduler SessionScheduler,
	notifier Notifier,
	audit Auditor,
	clk clock.Clock,
) *CancelAppointment {
	return &CancelAppointment{
		repo:      repo,
		scheduler: scheduler,
		notifier:  notifier,
		audit:     audit,
		clock:     clk,
	}
}

func (uc *CancelAppointment) Execute(
	ctx context.Context,
	actor Actor,
	appointmentID string,
	reason string,
) (*models.Appointment, error) {

	unlock := uc.scheduler.Lock(appointmentID)
	defer unlock()

	ap, err := uc.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if !ap.HasParticipant(actor.UserID) {
		return nil, ErrForbidden
	}

	from := domain.Status(ap.Status)

	effects, err := domain.Cancel(ap, strings.TrimSpace(reason), uc.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := uc.repo.UpdateStatus(ctx, ap, from); err != nil {
		return nil, err
	}

	if lo.Contains(effects, domain.EffectCancelJobs) {
		uc.scheduler.OnAppointmentCancelled(ap.ID)
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
		Action:   "appointment_cancelled",
		Entity:   "appointment",
		EntityID: ap.ID,
		Metadata: map[string]any{"from": from, "reason": ap.CancelReason},
	})

	return ap, nil
}
