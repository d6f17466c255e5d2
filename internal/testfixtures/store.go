package testfixtures

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/samber/lo"

	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
)

var ErrStoreUnavailable = errors.New("store unavailable")

// AppointmentStore is an in-memory domain.Repository.
type AppointmentStore struct {
	mu          sync.Mutex
	rows        map[string]models.Appointment
	failUpdates int
	failLists   bool
	updates     int
}

func NewAppointmentStore(aps ...models.Appointment) *AppointmentStore {
	s := &AppointmentStore{rows: make(map[string]models.Appointment)}
	for _, ap := range aps {
		s.rows[ap.ID] = ap
	}
	return s
}

// FailNextUpdates makes the next n UpdateStatus calls fail.
func (s *AppointmentStore) FailNextUpdates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdates = n
}

// FailLists makes every ListByStatusAndEnd call fail.
func (s *AppointmentStore) FailLists() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLists = true
}

func (s *AppointmentStore) UpdateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

func (s *AppointmentStore) Status(id string) domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Status(s.rows[id].Status)
}

// Put overwrites a row, bypassing status checks.
func (s *AppointmentStore) Put(ap models.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[ap.ID] = ap
}

func (s *AppointmentStore) GetAppointment(_ context.Context, id string) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ap, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ap, nil
}

func (s *AppointmentStore) ListAppointmentsForUser(_ context.Context, userID string, role string) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := lo.Filter(lo.Values(s.rows), func(ap models.Appointment, _ int) bool {
		if role == models.RoleDoctor {
			return ap.DoctorID == userID
		}
		return ap.PatientID == userID
	})
	sortByStart(out)
	return out, nil
}

func (s *AppointmentStore) ListByStatusAndEnd(_ context.Context, statuses []domain.Status, filter domain.EndFilter) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failLists {
		return nil, ErrStoreUnavailable
	}

	out := lo.Filter(lo.Values(s.rows), func(ap models.Appointment, _ int) bool {
		if !lo.Contains(statuses, domain.Status(ap.Status)) {
			return false
		}
		if !filter.EndsAfter.IsZero() && !ap.EndsAt.After(filter.EndsAfter) {
			return false
		}
		if !filter.EndsNotAfter.IsZero() && ap.EndsAt.After(filter.EndsNotAfter) {
			return false
		}
		return true
	})
	sortByStart(out)
	return out, nil
}

func (s *AppointmentStore) CreateAppointment(_ context.Context, ap *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[ap.ID] = *ap
	return nil
}

func (s *AppointmentStore) AssertSlotFree(_ context.Context, doctorID, date, startTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ap := range s.rows {
		if ap.DoctorID != doctorID || ap.Date != date || ap.StartTime != startTime {
			continue
		}
		if st := domain.Status(ap.Status); st == domain.StatusPending || st == domain.StatusConfirmed {
			return httperr.ErrBusiness("time_conflict")
		}
	}
	return nil
}

func (s *AppointmentStore) UpdateStatus(_ context.Context, ap *models.Appointment, from domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpdates > 0 {
		s.failUpdates--
		return ErrStoreUnavailable
	}

	current, ok := s.rows[ap.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if domain.Status(current.Status) != from {
		return domain.ErrStaleStatus
	}

	s.rows[ap.ID] = *ap
	s.updates++
	return nil
}

func sortByStart(aps []models.Appointment) {
	sort.Slice(aps, func(i, j int) bool {
		return aps[i].StartsAt.Before(aps[j].StartsAt)
	})
}

var _ domain.Repository = (*AppointmentStore)(nil)
