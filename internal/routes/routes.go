package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/BruksfildServices01/consult-scheduler/internal/app"
	"github.com/BruksfildServices01/consult-scheduler/internal/handlers"
	"github.com/BruksfildServices01/consult-scheduler/internal/middleware"
	"github.com/BruksfildServices01/consult-scheduler/internal/realtime"
	ucAppointment "github.com/BruksfildServices01/consult-scheduler/internal/usecase/appointment"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	cfg := a.Config

	// ======================================================
	// GLOBAL MIDDLEWARE
	// ======================================================
	r.Use(
		middleware.RequestLogger(a.Logger),
		middleware.Recovery(a.Logger),
		middleware.CORSMiddleware(cfg.AllowedOrigins()),
	)

	verifier := middleware.NewTokenVerifier(cfg.JWTSecret)

	// ======================================================
	// USE CASES - APPOINTMENTS
	// ======================================================
	bookAppointmentUC := ucAppointment.NewBookAppointment(
		a.Appointments,
		a.Scheduler,
		a.Notifier,
		a.Audit,
		a.Clock,
		cfg.Location(),
		a.Logger,
	)

	confirmAppointmentUC := ucAppointment.NewConfirmAppointment(
		a.Appointments,
		a.Scheduler,
		a.Notifier,
		a.Audit,
		a.Clock,
		a.Logger,
	)

	cancelAppointmentUC := ucAppointment.NewCancelAppointment(
		a.Appointments,
		a.Scheduler,
		a.Notifier,
		a.Audit,
		a.Clock,
	)

	listAppointmentsUC := ucAppointment.NewListAppointments(a.Appointments)
	getAppointmentUC := ucAppointment.NewGetAppointment(a.Appointments)

	sessionStatusUC := ucAppointment.NewGetSessionStatus(
		a.Appointments,
		a.Rooms,
		a.Clock,
		a.Logger,
	)

	callAccessUC := ucAppointment.NewVerifyCallAccess(a.Appointments, a.Rooms)

	// ======================================================
	// HANDLERS
	// ======================================================
	healthHandler := handlers.NewHealthHandler(a.Scheduler, a.Presence)
	meHandler := handlers.NewMeHandler(a.Presence)

	appointmentHandler := handlers.NewAppointmentHandler(
		bookAppointmentUC,
		confirmAppointmentUC,
		cancelAppointmentUC,
		listAppointmentsUC,
		getAppointmentUC,
		sessionStatusUC,
	)

	auditLogsHandler := handlers.NewAuditLogsHandler(a.AuditLog, getAppointmentUC)

	callHandler := handlers.NewCallHandler(callAccessUC)

	signaling := realtime.NewSignaling(a.Hub, realtime.NewCallRooms(), callAccessUC, a.Logger)
	wsHandler := realtime.NewWebSocketHandler(a.Hub, signaling, verifier, cfg.AllowedOrigins(), a.Logger)

	// ======================================================
	// PUBLIC
	// ======================================================
	r.GET("/health", healthHandler.Health)

	// The websocket authenticates itself: browsers cannot set headers on
	// the upgrade request, so it also accepts ?token=.
	r.GET("/ws", wsHandler.Connect)

	// ======================================================
	// AUTHENTICATED
	// ======================================================
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(verifier))

	api.GET("/me", meHandler.GetMe)

	appointments := api.Group("/appointments")
	appointments.POST("", appointmentHandler.Create)
	appointments.GET("", appointmentHandler.List)
	appointments.GET("/:id", appointmentHandler.Get)
	appointments.PATCH("/:id/confirm", appointmentHandler.Confirm)
	appointments.PATCH("/:id/cancel", appointmentHandler.Cancel)
	appointments.GET("/:id/session", appointmentHandler.Session)
	appointments.GET("/:id/history", auditLogsHandler.List)

	api.GET("/calls/:roomId", callHandler.Access)
}
