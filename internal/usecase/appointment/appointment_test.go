package appointment_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BruksfildServices01/consult-scheduler/internal/audit"
	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
	"github.com/BruksfildServices01/consult-scheduler/internal/realtime"
	"github.com/BruksfildServices01/consult-scheduler/internal/roombroker"
	"github.com/BruksfildServices01/consult-scheduler/internal/scheduler"
	"github.com/BruksfildServices01/consult-scheduler/internal/testfixtures"
	"github.com/BruksfildServices01/consult-scheduler/internal/timezone"
	usecase "github.com/BruksfildServices01/consult-scheduler/internal/usecase/appointment"
)

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Dispatch(ev audit.Event) {
	m.Called(ev)
}

func auditAction(action string) any {
	return mock.MatchedBy(func(ev audit.Event) bool { return ev.Action == action })
}

var (
	patient = usecase.Actor{UserID: testfixtures.PatientID, Role: models.RolePatient}
	doctor  = usecase.Actor{UserID: testfixtures.DoctorID, Role: models.RoleDoctor}
	other   = usecase.Actor{UserID: "patient-2", Role: models.RolePatient}
)

type fixture struct {
	clock    *testfixtures.Clock
	store    *testfixtures.AppointmentStore
	rooms    *testfixtures.RoomBroker
	notifier *testfixtures.Notifier
	auditor  *MockAuditor
	sched    *scheduler.Scheduler

	book    *usecase.BookAppointment
	confirm *usecase.ConfirmAppointment
	cancel  *usecase.CancelAppointment
	get     *usecase.GetAppointment
	list    *usecase.ListAppointments
	session *usecase.GetSessionStatus
	call    *usecase.VerifyCallAccess
}

func newFixture(t *testing.T, aps ...models.Appointment) *fixture {
	t.Helper()

	f := &fixture{
		clock:    testfixtures.NewClock(testfixtures.ReferenceTime()),
		store:    testfixtures.NewAppointmentStore(aps...),
		rooms:    testfixtures.NewRoomBroker(),
		notifier: &testfixtures.Notifier{},
		auditor:  new(MockAuditor),
	}
	f.auditor.On("Dispatch", mock.Anything).Maybe()

	f.sched = scheduler.New(f.store, f.rooms, f.notifier, nil, f.clock, scheduler.Options{}, zerolog.Nop())
	t.Cleanup(f.sched.Stop)

	loc := timezone.Location(timezone.DefaultTimezone)
	f.book = usecase.NewBookAppointment(f.store, f.sched, f.notifier, f.auditor, f.clock, loc, zerolog.Nop())
	f.confirm = usecase.NewConfirmAppointment(f.store, f.sched, f.notifier, f.auditor, f.clock, zerolog.Nop())
	f.cancel = usecase.NewCancelAppointment(f.store, f.sched, f.notifier, f.auditor, f.clock)
	f.get = usecase.NewGetAppointment(f.store)
	f.list = usecase.NewListAppointments(f.store)
	f.session = usecase.NewGetSessionStatus(f.store, f.rooms, f.clock, zerolog.Nop())
	f.call = usecase.NewVerifyCallAccess(f.store, f.rooms)
	return f
}

// Reference time is 2026-03-02 09:00 UTC, 11:00 in Kyiv.
func tomorrowAt(start, end string) usecase.BookAppointmentInput {
	return usecase.BookAppointmentInput{
		DoctorID:  testfixtures.DoctorID,
		Date:      "2026-03-03",
		StartTime: start,
		EndTime:   end,
	}
}

// ======================================================
// Book
// ======================================================

func TestBookAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// When
	ap, err := f.book.Execute(ctx, patient, tomorrowAt("10:00", "11:00"))

	// Then
	require.NoError(t, err)
	require.Equal(t, string(domain.StatusPending), ap.Status)
	require.Equal(t, testfixtures.PatientID, ap.PatientID)
	require.Equal(t, time.Date(2026, time.March, 3, 8, 0, 0, 0, time.UTC), ap.StartsAt)
	require.Equal(t, time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC), ap.EndsAt)

	require.False(t, f.sched.Has(ap.ID, scheduler.PhaseStart))
	require.True(t, f.sched.Has(ap.ID, scheduler.PhaseEnd))

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, realtime.EventNewAppointmentRequest, sent[0].Event)
	require.Equal(t, []string{testfixtures.DoctorID}, sent[0].UserIDs)

	f.auditor.AssertCalled(t, "Dispatch", auditAction("appointment_created"))
}

func TestBookAppointment_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		actor usecase.Actor
		in    usecase.BookAppointmentInput
		code  string
	}{
		{"bad clock", patient, tomorrowAt("25:00", "26:00"), "invalid_date_or_time"},
		{"bad date", patient, usecase.BookAppointmentInput{DoctorID: testfixtures.DoctorID, Date: "03/03/2026", StartTime: "10:00", EndTime: "11:00"}, "invalid_date_or_time"},
		{"end before start", patient, tomorrowAt("11:00", "10:00"), "invalid_time_range"},
		{"in the past", patient, usecase.BookAppointmentInput{DoctorID: testfixtures.DoctorID, Date: "2026-03-02", StartTime: "10:00", EndTime: "10:30"}, "appointment_in_past"},
		{"no doctor", patient, usecase.BookAppointmentInput{Date: "2026-03-03", StartTime: "10:00", EndTime: "11:00"}, "doctor_required"},
		{"self booking", usecase.Actor{UserID: testfixtures.DoctorID, Role: models.RolePatient}, tomorrowAt("10:00", "11:00"), "invalid_doctor"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.book.Execute(context.Background(), tc.actor, tc.in)
			require.True(t, httperr.IsBusiness(err, tc.code), "got %v", err)
			require.Zero(t, f.sched.Len())
			require.Empty(t, f.notifier.Sent())
		})
	}
}

func TestBookAppointment_DoctorCannotBook(t *testing.T) {
	f := newFixture(t)

	_, err := f.book.Execute(context.Background(), doctor, tomorrowAt("10:00", "11:00"))
	require.ErrorIs(t, err, usecase.ErrForbidden)
}

func TestBookAppointment_SlotTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.book.Execute(ctx, patient, tomorrowAt("10:00", "11:00"))
	require.NoError(t, err)

	_, err = f.book.Execute(ctx, other, tomorrowAt("10:00", "11:00"))
	require.True(t, httperr.IsBusiness(err, "time_conflict"))
}

// slotIndex rejects every insert the way the active-slot index does when
// another booking committed first.
type slotIndex struct {
	*testfixtures.AppointmentStore
}

func (slotIndex) CreateAppointment(context.Context, *models.Appointment) error {
	return httperr.ErrBusiness("time_conflict")
}

func TestBookAppointment_SlotTakenConcurrently(t *testing.T) {
	f := newFixture(t)

	var logs bytes.Buffer
	book := usecase.NewBookAppointment(
		slotIndex{f.store}, f.sched, f.notifier, f.auditor, f.clock,
		timezone.Location(timezone.DefaultTimezone), zerolog.New(&logs),
	)

	_, err := book.Execute(context.Background(), patient, tomorrowAt("10:00", "11:00"))

	require.True(t, httperr.IsBusiness(err, "time_conflict"))
	require.Contains(t, logs.String(), "slot taken by a concurrent booking")
	require.Zero(t, f.sched.Len())
	require.Empty(t, f.notifier.Sent())
}

// ======================================================
// Confirm
// ======================================================

func TestConfirmAppointment(t *testing.T) {
	now := testfixtures.ReferenceTime()
	ap := testfixtures.Appointment(domain.StatusPending, now, time.Hour, time.Hour)
	f := newFixture(t, ap)

	confirmed, err := f.confirm.Execute(context.Background(), doctor, ap.ID)
	require.NoError(t, err)
	require.Equal(t, string(domain.StatusConfirmed), confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	require.Equal(t, domain.StatusConfirmed, f.store.Status(ap.ID))

	require.True(t, f.sched.Has(ap.ID, scheduler.PhaseStart))
	require.True(t, f.sched.Has(ap.ID, scheduler.PhaseEnd))

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, realtime.EventAppointmentStatusChanged, sent[0].Event)
	require.Equal(t, []string{testfixtures.PatientID}, sent[0].UserIDs)

	f.auditor.AssertCalled(t, "Dispatch", auditAction("appointment_confirmed"))
}

func TestConfirmAppointment_Rejections(t *testing.T) {
	now := testfixtures.ReferenceTime()

	t.Run("not the doctor", func(t *testing.T) {
		ap := testfixtures.Appointment(domain.StatusPending, now, time.Hour, time.Hour)
		f := newFixture(t, ap)

		_, err := f.confirm.Execute(context.Background(), usecase.Actor{UserID: "doctor-2", Role: models.RoleDoctor}, ap.ID)
		require.ErrorIs(t, err, usecase.ErrForbidden)

		_, err = f.confirm.Execute(context.Background(), patient, ap.ID)
		require.ErrorIs(t, err, usecase.ErrForbidden)
	})

	t.Run("already confirmed", func(t *testing.T) {
		ap := testfixtures.Appointment(domain.StatusConfirmed, now, time.Hour, time.Hour)
		f := newFixture(t, ap)

		_, err := f.confirm.Execute(context.Background(), doctor, ap.ID)
		require.ErrorIs(t, err, domain.ErrIllegalTransition)
		require.Zero(t, f.store.UpdateCount())
		require.Zero(t, f.sched.Len())
	})

	t.Run("window closed", func(t *testing.T) {
		ap := testfixtures.Appointment(domain.StatusPending, now, -2*time.Hour, time.Hour)
		f := newFixture(t, ap)

		_, err := f.confirm.Execute(context.Background(), doctor, ap.ID)
		require.True(t, httperr.IsBusiness(err, "appointment_expired"))
		require.Equal(t, domain.StatusPending, f.store.Status(ap.ID))
	})

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.confirm.Execute(context.Background(), doctor, "nope")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

type unschedulable struct {
	*scheduler.Scheduler
}

func (unschedulable) OnAppointmentConfirmed(context.Context, *models.Appointment) error {
	return testfixtures.ErrStoreUnavailable
}

func TestConfirmAppointment_SchedulingFailureKeepsConfirmation(t *testing.T) {
	now := testfixtures.ReferenceTime()
	ap := testfixtures.Appointment(domain.StatusPending, now, time.Hour, time.Hour)
	f := newFixture(t, ap)

	confirm := usecase.NewConfirmAppointment(
		f.store, unschedulable{f.sched}, f.notifier, f.auditor, f.clock, zerolog.Nop(),
	)

	// When the timers cannot be armed after the write committed
	confirmed, err := confirm.Execute(context.Background(), doctor, ap.ID)

	// Then the caller still sees the confirmation it caused
	require.NoError(t, err)
	require.Equal(t, string(domain.StatusConfirmed), confirmed.Status)
	require.Equal(t, domain.StatusConfirmed, f.store.Status(ap.ID))
	require.Equal(t, []string{realtime.EventAppointmentStatusChanged}, f.notifier.Events())
	f.auditor.AssertCalled(t, "Dispatch", auditAction("appointment_confirmed"))
}

// ======================================================
// Cancel
// ======================================================

func TestCancelAppointment(t *testing.T) {
	now := testfixtures.ReferenceTime()
	ap := testfixtures.Appointment(domain.StatusPending, now, time.Hour, time.Hour)
	f := newFixture(t, ap)
	ctx := context.Background()

	_, err := f.confirm.Execute(ctx, doctor, ap.ID)
	require.NoError(t, err)
	require.Equal(t, 2, f.sched.Len())

	cancelled, err := f.cancel.Execute(ctx, patient, ap.ID, "  can't make it ")
	require.NoError(t, err)
	require.Equal(t, string(domain.StatusCancelled), cancelled.Status)
	require.Equal(t, "can't make it", cancelled.CancelReason)
	require.Zero(t, f.sched.Len())

	sent := f.notifier.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, []string{testfixtures.DoctorID}, sent[1].UserIDs)

	// The session never starts once cancelled.
	f.clock.Advance(3 * time.Hour)
	require.Len(t, f.notifier.Sent(), 2)
	require.Equal(t, domain.StatusCancelled, f.store.Status(ap.ID))

	f.auditor.AssertCalled(t, "Dispatch", auditAction("appointment_cancelled"))
}

func TestCancelAppointment_Rejections(t *testing.T) {
	now := testfixtures.ReferenceTime()

	t.Run("not a participant", func(t *testing.T) {
		ap := testfixtures.Appointment(domain.StatusPending, now, time.Hour, time.Hour)
		f := newFixture(t, ap)

		_, err := f.cancel.Execute(context.Background(), other, ap.ID, "")
		require.ErrorIs(t, err, usecase.ErrForbidden)
	})

	t.Run("terminal", func(t *testing.T) {
		ap := testfixtures.Appointment(domain.StatusPassed, now, -2*time.Hour, time.Hour)
		f := newFixture(t, ap)

		_, err := f.cancel.Execute(context.Background(), doctor, ap.ID, "")
		require.ErrorIs(t, err, domain.ErrIllegalTransition)
	})
}

// ======================================================
// Races
// ======================================================

func TestCancelRacingEndJob(t *testing.T) {
	now := testfixtures.ReferenceTime()

	for i := 0; i < 25; i++ {
		ap := testfixtures.Appointment(domain.StatusConfirmed, now, -30*time.Minute, time.Hour)
		f := newFixture(t, ap)

		unlock := f.sched.Lock(ap.ID)
		require.NoError(t, f.sched.OnAppointmentConfirmed(context.Background(), &ap))
		unlock()

		// When a cancel request and the end of the window arrive together
		var (
			wg        sync.WaitGroup
			cancelErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancelErr = f.cancel.Execute(context.Background(), patient, ap.ID, "")
		}()
		go func() {
			defer wg.Done()
			f.clock.Advance(31 * time.Minute)
		}()
		wg.Wait()

		// Then exactly one of them wins and no job is left behind
		switch f.store.Status(ap.ID) {
		case domain.StatusCancelled:
			require.NoError(t, cancelErr)
		case domain.StatusPassed:
			require.ErrorIs(t, cancelErr, domain.ErrIllegalTransition)
		default:
			t.Fatalf("unexpected status %s", f.store.Status(ap.ID))
		}
		require.Zero(t, f.sched.Len())
		require.Equal(t, 1, f.store.UpdateCount())
	}
}

func TestConfirmRacingCancel(t *testing.T) {
	now := testfixtures.ReferenceTime()

	for i := 0; i < 25; i++ {
		ap := testfixtures.Appointment(domain.StatusPending, now, time.Hour, time.Hour)
		f := newFixture(t, ap)

		// When the doctor confirms while the patient cancels
		var (
			wg         sync.WaitGroup
			confirmErr error
			cancelErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, confirmErr = f.confirm.Execute(context.Background(), doctor, ap.ID)
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = f.cancel.Execute(context.Background(), patient, ap.ID, "")
		}()
		wg.Wait()

		// Then the cancel always sticks and no timer survives it
		require.NoError(t, cancelErr)
		if confirmErr != nil {
			require.ErrorIs(t, confirmErr, domain.ErrIllegalTransition)
		}
		require.Equal(t, domain.StatusCancelled, f.store.Status(ap.ID))
		require.Zero(t, f.sched.Len())

		f.clock.Advance(3 * time.Hour)
		require.NotContains(t, f.notifier.Events(), realtime.EventSessionStarting)
	}
}

// ======================================================
// Read
// ======================================================

func TestGetAndListAppointments(t *testing.T) {
	now := testfixtures.ReferenceTime()
	a := testfixtures.Appointment(domain.StatusPending, now, 2*time.Hour, time.Hour)
	b := testfixtures.Appointment(domain.StatusConfirmed, now, time.Hour, time.Hour)
	c := testfixtures.Appointment(domain.StatusPending, now, time.Hour, time.Hour)
	c.PatientID = other.UserID
	f := newFixture(t, a, b, c)
	ctx := context.Background()

	mine, err := f.list.Execute(ctx, patient)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, b.ID, mine[0].ID)

	theirs, err := f.list.Execute(ctx, doctor)
	require.NoError(t, err)
	require.Len(t, theirs, 3)

	got, err := f.get.Execute(ctx, patient, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	_, err = f.get.Execute(ctx, patient, c.ID)
	require.ErrorIs(t, err, usecase.ErrForbidden)
}

// ======================================================
// Session
// ======================================================

func TestSessionStatus_FollowsTheWindow(t *testing.T) {
	now := testfixtures.ReferenceTime()
	ap := testfixtures.Appointment(domain.StatusPending, now, 10*time.Minute, time.Hour)
	f := newFixture(t, ap)
	ctx := context.Background()

	_, err := f.confirm.Execute(ctx, doctor, ap.ID)
	require.NoError(t, err)

	// Before the start.
	status, err := f.session.Execute(ctx, patient, ap.ID)
	require.NoError(t, err)
	require.False(t, status.Active)
	require.Nil(t, status.RoomID)

	// Start fired, room allocated.
	f.clock.Advance(10 * time.Minute)
	status, err = f.session.Execute(ctx, patient, ap.ID)
	require.NoError(t, err)
	require.True(t, status.Active)
	require.NotNil(t, status.RoomID)

	pushed := f.notifier.Sent()[1].Payload.(realtime.SessionStartingPayload)
	require.Equal(t, *pushed.RoomID, *status.RoomID)

	// Window closed.
	f.clock.Advance(time.Hour)
	status, err = f.session.IsSessionActive(ctx, ap.ID)
	require.NoError(t, err)
	require.False(t, status.Active)
	require.Equal(t, domain.StatusPassed, f.store.Status(ap.ID))
}

func TestSessionStatus_BrokerDown(t *testing.T) {
	now := testfixtures.ReferenceTime()
	ap := testfixtures.Appointment(domain.StatusConfirmed, now, -10*time.Minute, time.Hour)
	f := newFixture(t, ap)
	f.rooms.Fail = true

	status, err := f.session.Execute(context.Background(), doctor, ap.ID)
	require.NoError(t, err)
	require.True(t, status.Active)
	require.Nil(t, status.RoomID)
}

func TestSessionStatus_InactiveUnlessConfirmed(t *testing.T) {
	now := testfixtures.ReferenceTime()
	pending := testfixtures.Appointment(domain.StatusPending, now, -10*time.Minute, time.Hour)
	cancelled := testfixtures.Appointment(domain.StatusCancelled, now, -10*time.Minute, time.Hour)
	f := newFixture(t, pending, cancelled)
	ctx := context.Background()

	for _, id := range []string{pending.ID, cancelled.ID} {
		status, err := f.session.IsSessionActive(ctx, id)
		require.NoError(t, err)
		require.False(t, status.Active)
	}

	_, err := f.session.Execute(ctx, other, pending.ID)
	require.ErrorIs(t, err, usecase.ErrForbidden)

	_, err = f.session.IsSessionActive(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// ======================================================
// Call access
// ======================================================

func TestVerifyCallAccess(t *testing.T) {
	now := testfixtures.ReferenceTime()
	ap := testfixtures.Appointment(domain.StatusConfirmed, now, -10*time.Minute, time.Hour)
	f := newFixture(t, ap)
	ctx := context.Background()

	// Given a room allocated for the appointment
	roomID, err := f.rooms.CreateRoom(ctx, ap.ID)
	require.NoError(t, err)

	// When each participant asks for access
	access, err := f.call.Execute(ctx, patient, roomID)

	// Then both get in with their own role
	require.NoError(t, err)
	require.Equal(t, usecase.CallAccess{RoomID: roomID, AppointmentID: ap.ID, Role: models.RolePatient}, access)

	access, err = f.call.Execute(ctx, doctor, roomID)
	require.NoError(t, err)
	require.Equal(t, models.RoleDoctor, access.Role)

	require.NoError(t, f.call.AuthorizeRoom(ctx, testfixtures.PatientID, roomID))
}

func TestVerifyCallAccess_Rejections(t *testing.T) {
	now := testfixtures.ReferenceTime()
	confirmed := testfixtures.Appointment(domain.StatusConfirmed, now, -10*time.Minute, time.Hour)
	cancelled := testfixtures.Appointment(domain.StatusCancelled, now, -10*time.Minute, time.Hour)
	f := newFixture(t, confirmed, cancelled)
	ctx := context.Background()

	confirmedRoom, err := f.rooms.CreateRoom(ctx, confirmed.ID)
	require.NoError(t, err)
	cancelledRoom, err := f.rooms.CreateRoom(ctx, cancelled.ID)
	require.NoError(t, err)

	// A stranger is kept out.
	_, err = f.call.Execute(ctx, other, confirmedRoom)
	require.ErrorIs(t, err, usecase.ErrForbidden)
	require.ErrorIs(t, f.call.AuthorizeRoom(ctx, other.UserID, confirmedRoom), usecase.ErrForbidden)

	// An unknown room does not exist.
	_, err = f.call.Execute(ctx, patient, "no-such-room")
	require.ErrorIs(t, err, usecase.ErrRoomNotFound)

	// A cancelled appointment's room is closed.
	_, err = f.call.Execute(ctx, patient, cancelledRoom)
	require.True(t, httperr.IsBusiness(err, "appointment_cancelled"))

	// A broken broker surfaces as a room allocation error.
	f.rooms.Fail = true
	_, err = f.call.Execute(ctx, patient, confirmedRoom)
	require.True(t, roombroker.IsRoomAllocationError(err))
}
