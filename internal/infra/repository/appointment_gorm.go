package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domain "github.com/BruksfildServices01/consult-scheduler/internal/domain/appointment"
	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
)

const pgUniqueViolation = "23505"

type AppointmentGormRepository struct {
	db *gorm.DB
}

func NewAppointmentGormRepository(db *gorm.DB) *AppointmentGormRepository {
	return &AppointmentGormRepository{db: db}
}

// --------------------------------------------------
// Appointment (read)
// --------------------------------------------------

func (r *AppointmentGormRepository) GetAppointment(
	ctx context.Context,
	id string,
) (*models.Appointment, error) {

	var ap models.Appointment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&ap).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !domain.Status(ap.Status).IsValid() {
		return nil, fmt.Errorf("appointment %s: %w %q", id, domain.ErrUnknownStatus, ap.Status)
	}
	return &ap, nil
}

func (r *AppointmentGormRepository) ListAppointmentsForUser(
	ctx context.Context,
	userID string,
	role string,
) ([]models.Appointment, error) {

	column := "patient_id"
	if role == models.RoleDoctor {
		column = "doctor_id"
	}

	var apps []models.Appointment
	if err := r.db.WithContext(ctx).
		Where(column+" = ?", userID).
		Order("starts_at ASC").
		Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *AppointmentGormRepository) ListByStatusAndEnd(
	ctx context.Context,
	statuses []domain.Status,
	filter domain.EndFilter,
) ([]models.Appointment, error) {

	values := make([]string, 0, len(statuses))
	for _, st := range statuses {
		values = append(values, string(st))
	}

	q := r.db.WithContext(ctx).Where("status IN ?", values)
	if !filter.EndsAfter.IsZero() {
		q = q.Where("ends_at > ?", filter.EndsAfter)
	}
	if !filter.EndsNotAfter.IsZero() {
		q = q.Where("ends_at <= ?", filter.EndsNotAfter)
	}

	var apps []models.Appointment
	if err := q.Order("starts_at ASC").Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// --------------------------------------------------
// Appointment (create / conflict)
// --------------------------------------------------

func (r *AppointmentGormRepository) CreateAppointment(
	ctx context.Context,
	ap *models.Appointment,
) error {
	return mapWriteError(r.db.WithContext(ctx).Create(ap).Error)
}

// AssertSlotFree fails with time_conflict when the doctor already has an
// active appointment starting at the same slot. The partial unique index
// created at migration time backs this check against concurrent inserts.
func (r *AppointmentGormRepository) AssertSlotFree(
	ctx context.Context,
	doctorID string,
	date string,
	startTime string,
) error {

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where(
			"doctor_id = ? AND date = ? AND start_time = ? AND status IN ?",
			doctorID,
			date,
			startTime,
			[]string{string(domain.StatusPending), string(domain.StatusConfirmed)},
		).
		Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return httperr.ErrBusiness("time_conflict")
	}
	return nil
}

// --------------------------------------------------
// Appointment (state change)
// --------------------------------------------------

func (r *AppointmentGormRepository) UpdateStatus(
	ctx context.Context,
	ap *models.Appointment,
	from domain.Status,
) error {

	res := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND status = ?", ap.ID, string(from)).
		Updates(map[string]any{
			"status":        ap.Status,
			"cancel_reason": ap.CancelReason,
			"confirmed_at":  ap.ConfirmedAt,
			"cancelled_at":  ap.CancelledAt,
			"passed_at":     ap.PassedAt,
		})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return domain.ErrStaleStatus
	}
	return nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return httperr.ErrBusiness("time_conflict")
	}
	return err
}

// Compile-time check
var _ domain.Repository = (*AppointmentGormRepository)(nil)
