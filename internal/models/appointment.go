package models

import "time"

type Appointment struct {
	ID string `gorm:"type:uuid;primaryKey" json:"id"`

	DoctorID  string `gorm:"size:64;not null;index:idx_appointments_doctor_slot" json:"doctor_id"`
	PatientID string `gorm:"size:64;not null;index" json:"patient_id"`

	// Clinic-local calendar fields, as booked.
	Date      string `gorm:"size:10;not null;index:idx_appointments_doctor_slot" json:"date"`
	StartTime string `gorm:"size:5;not null;index:idx_appointments_doctor_slot" json:"start_time"`
	EndTime   string `gorm:"size:5;not null" json:"end_time"`

	// UTC instants derived from Date/StartTime/EndTime when the row is written.
	StartsAt time.Time `gorm:"not null" json:"starts_at"`
	EndsAt   time.Time `gorm:"not null;index" json:"ends_at"`

	Status string `gorm:"size:20;default:'pending';index" json:"status"`

	CancelReason string `gorm:"size:255" json:"cancel_reason,omitempty"`
	Rating       *int   `json:"rating,omitempty"`

	ConfirmedAt *time.Time `json:"confirmed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	PassedAt    *time.Time `json:"passed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasParticipant reports whether userID is the doctor or the patient.
func (a *Appointment) HasParticipant(userID string) bool {
	return a.DoctorID == userID || a.PatientID == userID
}

// Participants returns the doctor and patient ids.
func (a *Appointment) Participants() []string {
	return []string{a.DoctorID, a.PatientID}
}
