package realtime

import "github.com/BruksfildServices01/consult-scheduler/internal/models"

const (
	EventSessionStarting          = "sessionStarting"
	EventAppointmentStatusChanged = "appointmentStatusChanged"
	EventNewAppointmentRequest    = "newAppointmentRequest"
)

// SessionStartingPayload is pushed to both participants when the session
// window opens. RoomID is null when no room could be allocated; clients then
// fall back to the session query.
type SessionStartingPayload struct {
	AppointmentID string  `json:"appointmentId"`
	RoomID        *string `json:"roomId"`
}

type AppointmentPayload struct {
	AppointmentID string `json:"appointmentId"`
	DoctorID      string `json:"doctorId"`
	PatientID     string `json:"patientId"`
	Date          string `json:"date"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	Status        string `json:"status"`
	CancelReason  string `json:"cancelReason,omitempty"`
}

func NewAppointmentPayload(ap *models.Appointment) AppointmentPayload {
	return AppointmentPayload{
		AppointmentID: ap.ID,
		DoctorID:      ap.DoctorID,
		PatientID:     ap.PatientID,
		Date:          ap.Date,
		StartTime:     ap.StartTime,
		EndTime:       ap.EndTime,
		Status:        ap.Status,
		CancelReason:  ap.CancelReason,
	}
}
