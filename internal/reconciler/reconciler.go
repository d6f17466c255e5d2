// Package reconciler rebuilds scheduler state from stored appointments.
// Timers live only in memory, so this runs at every boot before the API
// accepts traffic.
package reconciler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/BruksfildServices01/consult-scheduler/internal/clock"
	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
)

type Scheduler interface {
	Lock(appointmentID string) (unlock func())
	ScheduleStart(ap *models.Appointment) bool
	ScheduleEnd(ctx context.Context, ap *models.Appointment) error
}

type Store interface {
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	ListByStatusAndEnd(ctx context.Context, statuses []domain.Status, filter domain.EndFilter) ([]models.Appointment, error)
}

type Summary struct {
	Expired   int `json:"expired"`
	Scheduled int `json:"scheduled"`
	Failed    int `json:"failed"`
}

type Reconciler struct {
	store     Store
	scheduler Scheduler
	clock     clock.Clock
	logger    zerolog.Logger
}

func New(store Store, scheduler Scheduler, clk clock.Clock, logger zerolog.Logger) *Reconciler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Reconciler{
		store:     store,
		scheduler: scheduler,
		clock:     clk,
		logger:    logger.With().Str("component", "reconciler").Logger(),
	}
}

var active = []domain.Status{domain.StatusPending, domain.StatusConfirmed}

// ReconcileAll applies every overdue end transition, then arms the timers of
// every appointment whose window has not closed yet.
func (r *Reconciler) ReconcileAll(ctx context.Context) (Summary, error) {
	summary, err := r.ExpireStale(ctx)
	if err != nil {
		return summary, err
	}

	upcoming, err := r.store.ListByStatusAndEnd(ctx, active, domain.EndFilter{
		EndsAfter: r.clock.Now(),
	})
	if err != nil {
		return summary, fmt.Errorf("list upcoming appointments: %w", err)
	}

	for i := range upcoming {
		if err := r.schedule(ctx, upcoming[i].ID); err != nil {
			summary.Failed++
			r.logger.Error().Err(err).Str("appointment_id", upcoming[i].ID).Msg("could not schedule appointment")
			continue
		}
		summary.Scheduled++
	}

	r.logger.Info().
		Int("expired", summary.Expired).
		Int("scheduled", summary.Scheduled).
		Int("failed", summary.Failed).
		Msg("reconciliation finished")
	return summary, nil
}

// ExpireStale applies the end transition to every pending or confirmed
// appointment whose window already closed. A failed write is counted and
// left to the scheduler, which re-arms the end job for it.
func (r *Reconciler) ExpireStale(ctx context.Context) (Summary, error) {
	var summary Summary

	stale, err := r.store.ListByStatusAndEnd(ctx, active, domain.EndFilter{
		EndsNotAfter: r.clock.Now(),
	})
	if err != nil {
		return summary, fmt.Errorf("list stale appointments: %w", err)
	}

	for i := range stale {
		if err := r.expire(ctx, stale[i].ID); err != nil {
			summary.Failed++
			r.logger.Error().Err(err).Str("appointment_id", stale[i].ID).Msg("could not expire appointment")
			continue
		}
		summary.Expired++
	}

	if len(stale) > 0 {
		r.logger.Info().Int("expired", summary.Expired).Int("failed", summary.Failed).Msg("stale appointments expired")
	}
	return summary, nil
}

// Rows are reloaded under the lock: a request may have changed them since
// the listing.

func (r *Reconciler) expire(ctx context.Context, id string) error {
	unlock := r.scheduler.Lock(id)
	defer unlock()

	ap, err := r.store.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	return r.scheduler.ScheduleEnd(ctx, ap)
}

func (r *Reconciler) schedule(ctx context.Context, id string) error {
	unlock := r.scheduler.Lock(id)
	defer unlock()

	ap, err := r.store.GetAppointment(ctx, id)
	if err != nil {
		return err
	}

	switch domain.Status(ap.Status) {
	case domain.StatusConfirmed:
		r.scheduler.ScheduleStart(ap)
		return r.scheduler.ScheduleEnd(ctx, ap)
	case domain.StatusPending:
		return r.scheduler.ScheduleEnd(ctx, ap)
	}
	return nil
}
