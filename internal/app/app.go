// Package app assembles the process from configuration. Both binaries build
// the same graph so the one-shot reconcile job and the API share behavior.
package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/BruksfildServices01/consult-scheduler/internal/audit"
	"github.com/BruksfildServices01/consult-scheduler/internal/clock"
	"github.com/BruksfildServices01/consult-scheduler/internal/config"
	dbpkg "github.com/BruksfildServices01/consult-scheduler/internal/db"
	infraRepo "github.com/BruksfildServices01/consult-scheduler/internal/infra/repository"
	"github.com/BruksfildServices01/consult-scheduler/internal/presence"
	"github.com/BruksfildServices01/consult-scheduler/internal/realtime"
	"github.com/BruksfildServices01/consult-scheduler/internal/reconciler"
	"github.com/BruksfildServices01/consult-scheduler/internal/roombroker"
	"github.com/BruksfildServices01/consult-scheduler/internal/scheduler"
)

const auditBuffer = 100

type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Clock  clock.Clock

	DB           *gorm.DB
	Appointments *infraRepo.AppointmentGormRepository
	AuditLog     *audit.Logger
	Audit        *audit.Dispatcher

	Rooms    roombroker.Broker
	Presence *presence.Registry
	Hub      *realtime.Hub
	Notifier *realtime.Notifier

	Scheduler  *scheduler.Scheduler
	Reconciler *reconciler.Reconciler

	closers []func() error
}

func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		Clock:  clock.Real{},
	}

	// ======================================================
	// STORAGE
	// ======================================================
	db, err := dbpkg.NewDB(cfg.DBUrl, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() error { return dbpkg.Close(db) })

	a.Appointments = infraRepo.NewAppointmentGormRepository(db)
	a.AuditLog = audit.New(db)
	a.Audit = audit.NewDispatcher(a.AuditLog, auditBuffer, logger)

	// ======================================================
	// ROOMS
	// ======================================================
	rooms, err := a.newRoomBroker()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Rooms = rooms

	// ======================================================
	// PUSH
	// ======================================================
	a.Presence = presence.NewRegistry()
	a.Hub = realtime.NewHub(a.Presence, cfg.PushBuffer, logger)
	a.Notifier = realtime.NewNotifier(a.Presence, a.Hub, logger)

	// ======================================================
	// SCHEDULING
	// ======================================================
	a.Scheduler = scheduler.New(
		a.Appointments,
		a.Rooms,
		a.Notifier,
		a.Audit,
		a.Clock,
		scheduler.Options{
			EndRetryMaxElapsed: cfg.EndRetryMaxElapsed,
			EndRetryDelay:      cfg.EndRetryDelay,
		},
		logger,
	)
	a.Reconciler = reconciler.New(a.Appointments, a.Scheduler, a.Clock, logger)

	return a, nil
}

func (a *App) newRoomBroker() (roombroker.Broker, error) {
	cfg := a.Config

	switch cfg.RoomStore {
	case config.RoomStoreRedis:
		client := roombroker.NewRedisClient(roombroker.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, client.Close)
		return roombroker.NewRedisBroker(client, cfg.RoomTTL, cfg.RoomTimeout, a.Logger), nil

	case config.RoomStoreS3:
		return roombroker.NewS3Broker(roombroker.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}, cfg.RoomTimeout, a.Logger), nil
	}

	return nil, fmt.Errorf("unknown room store %q", cfg.RoomStore)
}

// Close stops the timers, flushes the audit queue and releases connections.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Audit != nil {
		done := make(chan struct{})
		go func() {
			a.Audit.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			a.Logger.Warn().Msg("audit queue not drained before shutdown")
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn().Err(err).Msg("close failed")
		}
	}
}
