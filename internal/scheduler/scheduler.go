// Package scheduler owns the in-memory timers that drive an appointment's
// time-triggered transitions: the session start notification and the end of
// the session window.
//
// Timers are a cache of intent derived from stored appointments. They are
// never persisted; after a restart the reconciler rebuilds them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/BruksfildServices01/consult-scheduler/internal/audit"
	"github.com/BruksfildServices01/consult-scheduler/internal/clock"
	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/lockset"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
	"github.com/BruksfildServices01/consult-scheduler/internal/realtime"
	"github.com/BruksfildServices01/consult-scheduler/internal/roombroker"
)

type Phase string

const (
	PhaseStart Phase = "start"
	PhaseEnd   Phase = "end"
)

// Store is the slice of the appointment repository the scheduler needs.
type Store interface {
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, ap *models.Appointment, from domain.Status) error
}

type Notifier interface {
	Notify(event string, payload any, userIDs ...string) int
}

type Auditor interface {
	Dispatch(ev audit.Event)
}

// Options tune how a failed end-transition write is retried. Every attempt
// is a single write under the appointment lock; between attempts the end job
// is re-armed, so the lock is never held while waiting.
type Options struct {
	// EndRetryMaxElapsed is how long re-arms follow the exponential backoff
	// schedule after the first failure.
	EndRetryMaxElapsed time.Duration
	// EndRetryInitialInterval is the first backoff interval.
	EndRetryInitialInterval time.Duration
	// EndRetryDelay is the re-arm interval once the backoff window is spent.
	EndRetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		EndRetryMaxElapsed:      30 * time.Second,
		EndRetryInitialInterval: 200 * time.Millisecond,
		EndRetryDelay:           time.Minute,
	}
}

type noopAuditor struct{}

func (noopAuditor) Dispatch(audit.Event) {}

type jobKey struct {
	appointmentID string
	phase         Phase
}

type job struct {
	at    time.Time
	gen   uint64
	timer clock.Timer
}

type Scheduler struct {
	mu      sync.Mutex
	jobs    map[jobKey]*job
	seq     uint64
	stopped bool

	// endRetries holds the backoff state of end jobs whose last write failed.
	endRetries map[string]backoff.BackOff

	locks    *lockset.Set
	store    Store
	rooms    roombroker.Broker
	notifier Notifier
	auditor  Auditor
	clock    clock.Clock
	opts     Options
	logger   zerolog.Logger
}

func New(
	store Store,
	rooms roombroker.Broker,
	notifier Notifier,
	auditor Auditor,
	clk clock.Clock,
	opts Options,
	logger zerolog.Logger,
) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	if auditor == nil {
		auditor = noopAuditor{}
	}

	defaults := DefaultOptions()
	if opts.EndRetryMaxElapsed <= 0 {
		opts.EndRetryMaxElapsed = defaults.EndRetryMaxElapsed
	}
	if opts.EndRetryInitialInterval <= 0 {
		opts.EndRetryInitialInterval = defaults.EndRetryInitialInterval
	}
	if opts.EndRetryDelay <= 0 {
		opts.EndRetryDelay = defaults.EndRetryDelay
	}
	return &Scheduler{
		jobs:       make(map[jobKey]*job),
		endRetries: make(map[string]backoff.BackOff),
		locks:      lockset.New(),
		store:      store,
		rooms:      rooms,
		notifier:   notifier,
		auditor:    auditor,
		clock:      clk,
		opts:       opts,
		logger:     logger.With().Str("component", "scheduler").Logger(),
	}
}

// Lock takes the per-appointment lock every status-mutating path runs under.
// ScheduleStart, ScheduleEnd, Cancel and the On* hooks expect the caller to
// hold it.
func (s *Scheduler) Lock(appointmentID string) (unlock func()) {
	return s.locks.Lock(appointmentID)
}

// ===============================
// Hooks
// ===============================

// OnAppointmentBooked arms the end job of a pending appointment, which
// cancels it if nobody confirms it before its window closes.
func (s *Scheduler) OnAppointmentBooked(ctx context.Context, ap *models.Appointment) error {
	return s.ScheduleEnd(ctx, ap)
}

func (s *Scheduler) OnAppointmentConfirmed(ctx context.Context, ap *models.Appointment) error {
	s.ScheduleStart(ap)
	return s.ScheduleEnd(ctx, ap)
}

func (s *Scheduler) OnAppointmentCancelled(appointmentID string) {
	s.Cancel(appointmentID)
}

// ===============================
// Scheduling
// ===============================

// ScheduleStart arms the start job. It reports false, and does nothing, when
// the start instant is not in the future.
func (s *Scheduler) ScheduleStart(ap *models.Appointment) bool {
	now := s.clock.Now()
	if !ap.StartsAt.After(now) {
		s.logger.Debug().
			Str("appointment_id", ap.ID).
			Time("starts_at", ap.StartsAt).
			Msg("start instant already passed, not scheduling")
		return false
	}

	id := ap.ID
	s.register(jobKey{id, PhaseStart}, ap.StartsAt, func(gen uint64) {
		s.fireStart(id, gen)
	})
	return true
}

// ScheduleEnd arms the end job, or applies the end transition right away
// when the end instant is not in the future. When that immediate write
// fails the error is returned and the end job is re-armed to try again.
func (s *Scheduler) ScheduleEnd(ctx context.Context, ap *models.Appointment) error {
	id := ap.ID
	key := jobKey{id, PhaseEnd}

	now := s.clock.Now()
	if !ap.EndsAt.After(now) {
		s.cancelKey(key)
		if err := s.applyEnd(ctx, ap); err != nil {
			s.rearmEnd(id, err)
			return err
		}
		s.clearEndRetry(id)
		return nil
	}

	s.clearEndRetry(id)
	s.register(key, ap.EndsAt, func(gen uint64) {
		s.fireEnd(id, gen)
	})
	return nil
}

// Cancel drops the live start and end jobs of an appointment. A job that has
// already started firing is not interrupted.
func (s *Scheduler) Cancel(appointmentID string) {
	s.cancelKey(jobKey{appointmentID, PhaseStart})
	s.cancelKey(jobKey{appointmentID, PhaseEnd})
	s.clearEndRetry(appointmentID)
}

// Stop drops every live timer. Nothing is scheduled afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, key)
	}
	clear(s.endRetries)
	s.stopped = true
}

func (s *Scheduler) Has(appointmentID string, phase Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[jobKey{appointmentID, phase}]
	return ok
}

// Len returns the number of live jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) register(key jobKey, at time.Time, run func(gen uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if old, ok := s.jobs[key]; ok {
		old.timer.Stop()
		delete(s.jobs, key)
	}

	s.seq++
	gen := s.seq
	j := &job{at: at, gen: gen}
	j.timer = s.clock.AfterFunc(at.Sub(s.clock.Now()), func() { run(gen) })
	s.jobs[key] = j

	s.logger.Debug().
		Str("appointment_id", key.appointmentID).
		Str("phase", string(key.phase)).
		Time("at", at).
		Msg("job scheduled")
}

func (s *Scheduler) cancelKey(key jobKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[key]; ok {
		j.timer.Stop()
		delete(s.jobs, key)
		s.logger.Debug().
			Str("appointment_id", key.appointmentID).
			Str("phase", string(key.phase)).
			Msg("job cancelled")
	}
}

// claim removes the job under key if it is still the generation that fired.
// A timer whose job was cancelled or replaced loses the claim and does
// nothing.
func (s *Scheduler) claim(key jobKey, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[key]
	if !ok || j.gen != gen {
		return false
	}
	delete(s.jobs, key)
	return true
}

// ===============================
// Firing
// ===============================

func (s *Scheduler) fireStart(appointmentID string, gen uint64) {
	if !s.claim(jobKey{appointmentID, PhaseStart}, gen) {
		return
	}

	ctx := context.Background()
	log := s.logger.With().Str("appointment_id", appointmentID).Str("phase", string(PhaseStart)).Logger()

	ap, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		log.Error().Err(err).Msg("start job could not load appointment")
		return
	}
	if domain.Status(ap.Status) != domain.StatusConfirmed {
		log.Info().Str("status", ap.Status).Msg("appointment no longer confirmed, skipping start")
		return
	}

	payload := realtime.SessionStartingPayload{AppointmentID: ap.ID}

	roomID, err := s.rooms.CreateRoom(ctx, ap.ID)
	if err != nil {
		log.Error().Err(err).Msg("room allocation failed, notifying without room")
	} else {
		payload.RoomID = &roomID
	}

	delivered := s.notifier.Notify(realtime.EventSessionStarting, payload, ap.DoctorID, ap.PatientID)

	log.Info().
		Bool("room_allocated", payload.RoomID != nil).
		Int("delivered", delivered).
		Msg("session start fired")
}

func (s *Scheduler) fireEnd(appointmentID string, gen uint64) {
	unlock := s.Lock(appointmentID)
	defer unlock()

	key := jobKey{appointmentID, PhaseEnd}
	if !s.claim(key, gen) {
		return
	}

	ctx := context.Background()

	ap, err := s.store.GetAppointment(ctx, appointmentID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn().Str("appointment_id", appointmentID).Msg("end job fired for missing appointment")
		s.clearEndRetry(appointmentID)
		return
	}
	if err == nil {
		err = s.applyEnd(ctx, ap)
	}
	if err != nil {
		s.rearmEnd(appointmentID, err)
		return
	}
	s.clearEndRetry(appointmentID)
}

// rearmEnd schedules another end attempt after a failed write. Delays follow
// the appointment's backoff until EndRetryMaxElapsed is spent, then
// EndRetryDelay.
func (s *Scheduler) rearmEnd(appointmentID string, cause error) {
	delay := s.nextEndRetry(appointmentID)
	retryAt := s.clock.Now().Add(delay)

	s.logger.Error().
		Err(cause).
		Str("appointment_id", appointmentID).
		Time("retry_at", retryAt).
		Msg("end transition not persisted, re-arming end job")

	s.register(jobKey{appointmentID, PhaseEnd}, retryAt, func(gen uint64) {
		s.fireEnd(appointmentID, gen)
	})
}

func (s *Scheduler) nextEndRetry(appointmentID string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.endRetries[appointmentID]
	if !ok {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = s.opts.EndRetryInitialInterval
		eb.MaxElapsedTime = s.opts.EndRetryMaxElapsed
		eb.Clock = s.clock
		eb.Reset()
		b = eb
		if !s.stopped {
			s.endRetries[appointmentID] = b
		}
	}

	if next := b.NextBackOff(); next != backoff.Stop {
		return next
	}
	return s.opts.EndRetryDelay
}

func (s *Scheduler) clearEndRetry(appointmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.endRetries, appointmentID)
}

// applyEnd runs the end transition on ap and persists it. The caller holds
// the appointment lock.
func (s *Scheduler) applyEnd(ctx context.Context, ap *models.Appointment) error {
	from := domain.Status(ap.Status)

	effects, changed, err := domain.End(ap, s.clock.Now())
	if err != nil {
		return err
	}
	if !changed {
		s.logger.Debug().
			Str("appointment_id", ap.ID).
			Str("status", ap.Status).
			Msg("end transition is a no-op")
		return nil
	}

	err = s.store.UpdateStatus(ctx, ap, from)
	if errors.Is(err, domain.ErrStaleStatus) {
		fresh, gerr := s.store.GetAppointment(ctx, ap.ID)
		if gerr != nil {
			return fmt.Errorf("reload after stale write: %w", gerr)
		}
		if domain.Status(fresh.Status).IsTerminal() {
			return nil
		}
		return s.applyEnd(ctx, fresh)
	}
	if err != nil {
		return fmt.Errorf("persist end transition: %w", err)
	}

	s.auditor.Dispatch(audit.Event{
		Action:   "appointment_" + ap.Status,
		Entity:   "appointment",
		EntityID: ap.ID,
		Metadata: map[string]any{"from": from, "trigger": "scheduler"},
	})

	for _, effect := range effects {
		if effect == domain.EffectNotifyParticipants {
			s.notifier.Notify(
				realtime.EventAppointmentStatusChanged,
				realtime.NewAppointmentPayload(ap),
				ap.Participants()...,
			)
		}
	}

	s.logger.Info().
		Str("appointment_id", ap.ID).
		Str("from", string(from)).
		Str("to", ap.Status).
		Msg("end transition applied")
	return nil
}
