package testfixtures

import (
	"time"

	"github.com/google/uuid"

	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
)

const (
	DoctorID  = "doctor-1"
	PatientID = "patient-1"
)

// Appointment builds an appointment whose window is [start, start+duration),
// expressed relative to now. Date and clock fields are filled in UTC.
func Appointment(status domain.Status, now time.Time, startIn, duration time.Duration) models.Appointment {
	start := now.Add(startIn).UTC()
	end := start.Add(duration)
	return models.Appointment{
		ID:        uuid.NewString(),
		DoctorID:  DoctorID,
		PatientID: PatientID,
		Date:      start.Format("2006-01-02"),
		StartTime: start.Format("15:04"),
		EndTime:   end.Format("15:04"),
		StartsAt:  start,
		EndsAt:    end,
		Status:    string(status),
	}
}
