package roombroker

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	appointmentKeyPrefix = "call:appointment:"
	roomKeyPrefix        = "call:room:"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// RedisBroker correlates appointment -> room with SETNX so the first writer
// wins and replays reuse the same room.
type RedisBroker struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	logger  zerolog.Logger
}

func NewRedisBroker(
	client *redis.Client,
	ttl time.Duration,
	timeout time.Duration,
	logger zerolog.Logger,
) *RedisBroker {
	return &RedisBroker{
		client:  client,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger.With().Str("component", "room_broker").Str("store", "redis").Logger(),
	}
}

func (b *RedisBroker) CreateRoom(ctx context.Context, appointmentID string) (string, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	key := appointmentKeyPrefix + appointmentID
	roomID := uuid.NewString()

	created, err := b.client.SetNX(ctx, key, roomID, b.ttl).Result()
	if err != nil {
		return "", allocErr(appointmentID, "setnx", err)
	}

	if !created {
		existing, err := b.client.Get(ctx, key).Result()
		if err != nil {
			return "", allocErr(appointmentID, "get", err)
		}
		b.logger.Info().
			Str("appointment_id", appointmentID).
			Str("room_id", existing).
			Msg("room already allocated, reusing")
		return existing, nil
	}

	roomKey := roomKeyPrefix + roomID
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, roomKey,
			"appointmentId", appointmentID,
			"createdAt", time.Now().UTC().Format(time.RFC3339),
		)
		if b.ttl > 0 {
			pipe.Expire(ctx, roomKey, b.ttl)
		}
		return nil
	})
	if err != nil {
		// Without the room hash nobody could be admitted to the room; drop
		// the correlation key so the next attempt starts clean.
		if derr := b.client.Del(ctx, key).Err(); derr != nil {
			b.logger.Warn().
				Err(derr).
				Str("appointment_id", appointmentID).
				Msg("failed to release correlation key")
		}
		return "", allocErr(appointmentID, "hset", err)
	}

	return roomID, nil
}

func (b *RedisBroker) LookupRoom(ctx context.Context, appointmentID string) (string, bool, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	roomID, err := b.client.Get(ctx, appointmentKeyPrefix+appointmentID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, allocErr(appointmentID, "lookup", err)
	}
	return roomID, true, nil
}

func (b *RedisBroker) AppointmentForRoom(ctx context.Context, roomID string) (string, bool, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	appointmentID, err := b.client.HGet(ctx, roomKeyPrefix+roomID, "appointmentId").Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, roomErr(roomID, "room_lookup", err)
	}
	return appointmentID, true, nil
}

var _ Broker = (*RedisBroker)(nil)
