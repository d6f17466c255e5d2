package dto

import (
	"time"

	"github.com/samber/lo"

	"github.com/BruksfildServices01/consult-scheduler/internal/models"
)

type AppointmentDTO struct {
	ID           string     `json:"id"`
	DoctorID     string     `json:"doctor_id"`
	PatientID    string     `json:"patient_id"`
	Date         string     `json:"date"`
	StartTime    string     `json:"start_time"`
	EndTime      string     `json:"end_time"`
	StartsAt     time.Time  `json:"starts_at"`
	EndsAt       time.Time  `json:"ends_at"`
	Status       string     `json:"status"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	PassedAt     *time.Time `json:"passed_at,omitempty"`
}

func NewAppointmentDTO(ap *models.Appointment) AppointmentDTO {
	return AppointmentDTO{
		ID:           ap.ID,
		DoctorID:     ap.DoctorID,
		PatientID:    ap.PatientID,
		Date:         ap.Date,
		StartTime:    ap.StartTime,
		EndTime:      ap.EndTime,
		StartsAt:     ap.StartsAt,
		EndsAt:       ap.EndsAt,
		Status:       ap.Status,
		CancelReason: ap.CancelReason,
		ConfirmedAt:  ap.ConfirmedAt,
		CancelledAt:  ap.CancelledAt,
		PassedAt:     ap.PassedAt,
	}
}

func NewAppointmentDTOs(aps []models.Appointment) []AppointmentDTO {
	return lo.Map(aps, func(ap models.Appointment, _ int) AppointmentDTO {
		return NewAppointmentDTO(&ap)
	})
}

// SessionDTO answers the session query. RoomID is always present, null when
// no room is known.
type SessionDTO struct {
	AppointmentID string  `json:"appointmentId"`
	Active        bool    `json:"active"`
	RoomID        *string `json:"roomId"`
}

// CallAccessDTO confirms the caller may join a call room and says as whom.
type CallAccessDTO struct {
	RoomID        string `json:"roomId"`
	AppointmentID string `json:"appointmentId"`
	Role          string `json:"role"`
}
