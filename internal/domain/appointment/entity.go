package appointment

import (
	"time"
	"unicode/utf8"

	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
)

const MaxCancelReasonLength = 255

// ===============================
// Domain Actions
// ===============================

func Confirm(ap *models.Appointment, now time.Time) ([]Effect, error) {
	next, effects, err := Transition(Status(ap.Status), EventConfirm)
	if err != nil {
		return nil, err
	}

	ap.Status = string(next)
	ap.ConfirmedAt = &now
	return effects, nil
}

func Cancel(ap *models.Appointment, reason string, now time.Time) ([]Effect, error) {
	if utf8.RuneCountInString(reason) > MaxCancelReasonLength {
		return nil, httperr.ErrBusiness("cancel_reason_too_long")
	}

	next, effects, err := Transition(Status(ap.Status), EventCancel)
	if err != nil {
		return nil, err
	}

	ap.Status = string(next)
	ap.CancelReason = reason
	ap.CancelledAt = &now
	return effects, nil
}

// End applies the end-of-window transition. changed is false when the
// appointment was already terminal and nothing was modified.
func End(ap *models.Appointment, now time.Time) (effects []Effect, changed bool, err error) {
	current := Status(ap.Status)
	next, effects, err := Transition(current, EventEnd)
	if err != nil {
		return nil, false, err
	}
	if next == current {
		return nil, false, nil
	}

	ap.Status = string(next)
	switch next {
	case StatusPassed:
		ap.PassedAt = &now
	case StatusCancelled:
		ap.CancelReason = "not_confirmed_in_time"
		ap.CancelledAt = &now
	}
	return effects, true, nil
}
