package roombroker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	// RetryMaxAttempts is passed to the SDK; zero keeps the SDK default.
	RetryMaxAttempts int
}

var errMissingCredentials = errors.New("missing aws credentials")

// S3Broker stores one JSON object per appointment and relies on a
// conditional PUT (If-None-Match: *) so a room is created only once. A copy
// keyed by room id lets signaling resolve a room back to its appointment.
type S3Broker struct {
	client  *s3.Client
	bucket  string
	prefix  string
	timeout time.Duration
	// bootErr is set when the client could not be bootstrapped; every call
	// then fails with it instead of taking the process down.
	bootErr error
	logger  zerolog.Logger
}

func NewS3Broker(opts S3Options, timeout time.Duration, logger zerolog.Logger) *S3Broker {
	b := &S3Broker{
		bucket:  opts.Bucket,
		prefix:  opts.Prefix,
		timeout: timeout,
		logger:  logger.With().Str("component", "room_broker").Str("store", "s3").Logger(),
	}

	if opts.AccessKeyID == "" || opts.SecretAccessKey == "" {
		b.bootErr = errMissingCredentials
		b.logger.Error().Err(b.bootErr).Msg("s3 room store disabled")
		return b
	}

	s3Opts := s3.Options{
		Region: opts.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		),
		RetryMaxAttempts: opts.RetryMaxAttempts,
	}
	if opts.Endpoint != "" {
		s3Opts.BaseEndpoint = aws.String(opts.Endpoint)
		s3Opts.UsePathStyle = true
	}

	b.client = s3.New(s3Opts)
	return b
}

func (b *S3Broker) objectKey(appointmentID string) string {
	return path.Join(b.prefix, appointmentID+".json")
}

func (b *S3Broker) roomKey(roomID string) string {
	return path.Join(b.prefix, "rooms", roomID+".json")
}

func (b *S3Broker) CreateRoom(ctx context.Context, appointmentID string) (string, error) {
	if b.bootErr != nil {
		return "", allocErr(appointmentID, "bootstrap", b.bootErr)
	}

	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	room := CallRoom{
		RoomID:        uuid.NewString(),
		AppointmentID: appointmentID,
		CreatedAt:     time.Now().UTC(),
	}
	body, err := json.Marshal(room)
	if err != nil {
		return "", allocErr(appointmentID, "encode", err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.objectKey(appointmentID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err == nil {
		if err := b.writeRoomIndex(ctx, room.RoomID, body); err != nil {
			b.release(ctx, appointmentID)
			return "", allocErr(appointmentID, "index", err)
		}
		return room.RoomID, nil
	}

	if httpStatus(err) != http.StatusPreconditionFailed {
		return "", allocErr(appointmentID, "put", err)
	}

	existing, found, err := b.read(ctx, b.objectKey(appointmentID))
	if err != nil {
		return "", allocErr(appointmentID, "get", err)
	}
	if !found {
		return "", allocErr(appointmentID, "get", errors.New("room object vanished after conflict"))
	}

	b.logger.Info().
		Str("appointment_id", appointmentID).
		Str("room_id", existing.RoomID).
		Msg("room already allocated, reusing")
	return existing.RoomID, nil
}

func (b *S3Broker) LookupRoom(ctx context.Context, appointmentID string) (string, bool, error) {
	if b.bootErr != nil {
		return "", false, allocErr(appointmentID, "bootstrap", b.bootErr)
	}

	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	room, found, err := b.read(ctx, b.objectKey(appointmentID))
	if err != nil {
		return "", false, allocErr(appointmentID, "lookup", err)
	}
	if !found {
		return "", false, nil
	}
	return room.RoomID, true, nil
}

func (b *S3Broker) AppointmentForRoom(ctx context.Context, roomID string) (string, bool, error) {
	if b.bootErr != nil {
		return "", false, roomErr(roomID, "bootstrap", b.bootErr)
	}

	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	room, found, err := b.read(ctx, b.roomKey(roomID))
	if err != nil {
		return "", false, roomErr(roomID, "room_lookup", err)
	}
	if !found {
		return "", false, nil
	}
	return room.AppointmentID, true, nil
}

func (b *S3Broker) writeRoomIndex(ctx context.Context, roomID string, body []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.roomKey(roomID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return err
}

// release removes the appointment object after a half-finished create so the
// next attempt can allocate again.
func (b *S3Broker) release(ctx context.Context, appointmentID string) {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(appointmentID)),
	})
	if err != nil {
		b.logger.Warn().Err(err).Str("appointment_id", appointmentID).Msg("failed to release room object")
	}
}

func (b *S3Broker) read(ctx context.Context, key string) (*CallRoom, bool, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) || httpStatus(err) == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}

	var room CallRoom
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, false, err
	}
	return &room, true, nil
}

func httpStatus(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

var _ Broker = (*S3Broker)(nil)
