package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/BruksfildServices01/consult-scheduler/internal/dto"
	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
	"github.com/BruksfildServices01/consult-scheduler/internal/httpresp"
	"github.com/BruksfildServices01/consult-scheduler/internal/middleware"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
	usecase "github.com/BruksfildServices01/consult-scheduler/internal/usecase/appointment"
)

// ======================================================
// USE CASES
// ======================================================

type BookUseCase interface {
	Execute(ctx context.Context, actor usecase.Actor, in usecase.BookAppointmentInput) (*models.Appointment, error)
}

type TransitionUseCase interface {
	Execute(ctx context.Context, actor usecase.Actor, appointmentID string) (*models.Appointment, error)
}

type CancelUseCase interface {
	Execute(ctx context.Context, actor usecase.Actor, appointmentID string, reason string) (*models.Appointment, error)
}

type ListUseCase interface {
	Execute(ctx context.Context, actor usecase.Actor) ([]models.Appointment, error)
}

type SessionUseCase interface {
	Execute(ctx context.Context, actor usecase.Actor, appointmentID string) (usecase.SessionStatus, error)
}

// ======================================================
// HANDLER
// ======================================================

type AppointmentHandler struct {
	book    BookUseCase
	confirm TransitionUseCase
	cancel  CancelUseCase
	list    ListUseCase
	get     TransitionUseCase
	session SessionUseCase
}

func NewAppointmentHandler(
	book BookUseCase,
	confirm TransitionUseCase,
	cancel CancelUseCase,
	list ListUseCase,
	get TransitionUseCase,
	session SessionUseCase,
) *AppointmentHandler {
	return &AppointmentHandler{
		book:    book,
		confirm: confirm,
		cancel:  cancel,
		list:    list,
		get:     get,
		session: session,
	}
}

// ======================================================
// REQUESTS
// ======================================================

type CreateAppointmentRequest struct {
	DoctorID  string `json:"doctor_id" binding:"required"`
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

func actorFrom(c *gin.Context) usecase.Actor {
	return usecase.Actor{
		UserID: c.GetString(middleware.ContextUserID),
		Role:   c.GetString(middleware.ContextUserRole),
	}
}

// ======================================================
// CREATE
// ======================================================

func (h *AppointmentHandler) Create(c *gin.Context) {
	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "Invalid request body.")
		return
	}

	ap, err := h.book.Execute(c.Request.Context(), actorFrom(c), usecase.BookAppointmentInput{
		DoctorID:  req.DoctorID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	httpresp.Created(c, dto.NewAppointmentDTO(ap))
}

// ======================================================
// STATE CHANGES
// ======================================================

func (h *AppointmentHandler) Confirm(c *gin.Context) {
	ap, err := h.confirm.Execute(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	httpresp.OK(c, dto.NewAppointmentDTO(ap))
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	var req CancelAppointmentRequest
	// The body is optional.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperr.BadRequest(c, "invalid_request", "Invalid request body.")
			return
		}
	}

	ap, err := h.cancel.Execute(c.Request.Context(), actorFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}

	httpresp.OK(c, dto.NewAppointmentDTO(ap))
}

// ======================================================
// READ
// ======================================================

func (h *AppointmentHandler) List(c *gin.Context) {
	apps, err := h.list.Execute(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	httpresp.List(c, dto.NewAppointmentDTOs(apps))
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	ap, err := h.get.Execute(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	httpresp.OK(c, dto.NewAppointmentDTO(ap))
}

// Session is the pull fallback for clients that missed sessionStarting.
func (h *AppointmentHandler) Session(c *gin.Context) {
	id := c.Param("id")

	status, err := h.session.Execute(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	httpresp.OK(c, dto.SessionDTO{
		AppointmentID: id,
		Active:        status.Active,
		RoomID:        status.RoomID,
	})
}
