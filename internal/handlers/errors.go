package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
	"github.com/BruksfildServices01/consult-scheduler/internal/roombroker"
	usecase "github.com/BruksfildServices01/consult-scheduler/internal/usecase/appointment"
)

// conflictCodes are business errors that describe a clash with current
// state rather than bad input.
var conflictCodes = map[string]string{
	"time_conflict":         "The doctor already has an appointment at this time.",
	"appointment_expired":   "The appointment window has already closed.",
	"appointment_cancelled": "The appointment was cancelled.",
}

var badRequestMessages = map[string]string{
	"doctor_required":        "doctor_id is required.",
	"invalid_doctor":         "You cannot book an appointment with yourself.",
	"invalid_date_or_time":   "Use YYYY-MM-DD for date and HH:MM for times.",
	"invalid_time_range":     "end_time must be after start_time.",
	"appointment_in_past":    "The appointment must start in the future.",
	"cancel_reason_too_long": "The cancel reason must be at most 255 characters.",
}

// writeError maps use-case errors to the HTTP error envelope. The error is
// attached to the gin context so the request logger records it.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		httperr.NotFound(c, "appointment_not_found", "Appointment not found.")
	case errors.Is(err, usecase.ErrRoomNotFound):
		httperr.NotFound(c, "room_not_found", "Call room not found.")
	case roombroker.IsRoomAllocationError(err):
		httperr.Write(c, http.StatusServiceUnavailable, "room_store_unavailable", "Call rooms are unavailable, retry later.")
	case errors.Is(err, usecase.ErrForbidden):
		httperr.Forbidden(c, "forbidden", "You are not allowed to act on this appointment.")
	case errors.Is(err, domain.ErrIllegalTransition):
		httperr.Conflict(c, "illegal_transition", err.Error())
	case errors.Is(err, domain.ErrStaleStatus):
		httperr.Conflict(c, "appointment_status_changed", "The appointment changed, reload and retry.")
	default:
		code, ok := httperr.BusinessCode(err)
		if !ok {
			httperr.Internal(c, "internal_error", "Unexpected error.")
			return
		}
		if msg, conflict := conflictCodes[code]; conflict {
			httperr.Conflict(c, code, msg)
			return
		}
		msg, known := badRequestMessages[code]
		if !known {
			msg = code
		}
		httperr.Write(c, http.StatusBadRequest, code, msg)
	}
}
