package appointment

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
)

var now = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func TestConfirm(t *testing.T) {
	ap := &models.Appointment{ID: "ap-1", Status: string(StatusPending)}

	effects, err := Confirm(ap, now)
	require.NoError(t, err)
	require.Contains(t, effects, EffectScheduleSession)
	require.Equal(t, string(StatusConfirmed), ap.Status)
	require.Equal(t, now, *ap.ConfirmedAt)

	_, err = Confirm(ap, now)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCancel(t *testing.T) {
	ap := &models.Appointment{ID: "ap-1", Status: string(StatusConfirmed)}

	effects, err := Cancel(ap, "feeling better", now)
	require.NoError(t, err)
	require.Contains(t, effects, EffectCancelJobs)
	require.Equal(t, string(StatusCancelled), ap.Status)
	require.Equal(t, "feeling better", ap.CancelReason)
	require.Equal(t, now, *ap.CancelledAt)

	_, err = Cancel(ap, "again", now)
	require.ErrorIs(t, err, ErrIllegalTransition)
	require.Equal(t, "feeling better", ap.CancelReason)
}

func TestCancel_ReasonTooLong(t *testing.T) {
	ap := &models.Appointment{ID: "ap-1", Status: string(StatusPending)}

	_, err := Cancel(ap, strings.Repeat("я", MaxCancelReasonLength+1), now)
	require.True(t, httperr.IsBusiness(err, "cancel_reason_too_long"))
	require.Equal(t, string(StatusPending), ap.Status)

	_, err = Cancel(ap, strings.Repeat("я", MaxCancelReasonLength), now)
	require.NoError(t, err)
}

func TestEnd(t *testing.T) {
	t.Run("confirmed passes", func(t *testing.T) {
		ap := &models.Appointment{Status: string(StatusConfirmed)}

		effects, changed, err := End(ap, now)
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, []Effect{EffectNotifyParticipants}, effects)
		require.Equal(t, string(StatusPassed), ap.Status)
		require.Equal(t, now, *ap.PassedAt)
	})

	t.Run("pending is cancelled", func(t *testing.T) {
		ap := &models.Appointment{Status: string(StatusPending)}

		_, changed, err := End(ap, now)
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, string(StatusCancelled), ap.Status)
		require.Equal(t, "not_confirmed_in_time", ap.CancelReason)
		require.Equal(t, now, *ap.CancelledAt)
		require.Nil(t, ap.PassedAt)
	})

	t.Run("terminal is untouched", func(t *testing.T) {
		for _, st := range []Status{StatusCancelled, StatusPassed} {
			ap := &models.Appointment{Status: string(st), CancelReason: "x"}

			effects, changed, err := End(ap, now)
			require.NoError(t, err)
			require.False(t, changed)
			require.Empty(t, effects)
			require.Equal(t, string(st), ap.Status)
			require.Equal(t, "x", ap.CancelReason)
			require.Nil(t, ap.PassedAt)
			require.Nil(t, ap.CancelledAt)
		}
	})
}
