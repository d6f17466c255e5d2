package realtime

import (
	"github.com/rs/zerolog"

	"github.com/BruksfildServices01/consult-scheduler/internal/presence"
)

// Directory resolves a user to its live connection handles.
type Directory interface {
	ConnectionsOf(userID string) []presence.Handle
}

// Pusher delivers one event to one connection.
type Pusher interface {
	Send(handle presence.Handle, event string, payload any) error
}

// Notifier delivers an event to every live connection of the given users.
// Delivery is best effort: offline users are skipped and failed pushes are
// dropped, never retried.
type Notifier struct {
	directory Directory
	pusher    Pusher
	logger    zerolog.Logger
}

func NewNotifier(directory Directory, pusher Pusher, logger zerolog.Logger) *Notifier {
	return &Notifier{
		directory: directory,
		pusher:    pusher,
		logger:    logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify returns the number of connections the event was queued on.
func (n *Notifier) Notify(event string, payload any, userIDs ...string) int {
	delivered := 0
	for _, userID := range userIDs {
		handles := n.directory.ConnectionsOf(userID)
		if len(handles) == 0 {
			n.logger.Debug().
				Str("event", event).
				Str("user_id", userID).
				Msg("user offline, skipping")
			continue
		}

		for _, handle := range handles {
			if err := n.pusher.Send(handle, event, payload); err != nil {
				n.logger.Debug().
					Err(err).
					Str("event", event).
					Str("user_id", userID).
					Str("handle", string(handle)).
					Msg("push dropped")
				continue
			}
			delivered++
		}
	}
	return delivered
}
