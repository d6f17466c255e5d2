package realtime

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
)

// Inbound events understood on the websocket.
const (
	EventPing         = "ping"
	EventJoinRoom     = "join-room"
	EventLeaveRoom    = "leave-room"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
)

// Outbound signaling events.
const (
	EventPong       = "pong"
	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"
	EventJoinDenied = "join-denied"
)

// RoomAccess decides whether a user may enter a call room.
type RoomAccess interface {
	AuthorizeRoom(ctx context.Context, userID, roomID string) error
}

type inboundMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// signalFrame carries the WebRTC session description or ICE candidate as
// opaque JSON; the server never looks inside.
type signalFrame struct {
	RoomID    string          `json:"roomId"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type PeerPayload struct {
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
	UserID string `json:"userId,omitempty"`
}

type JoinDeniedPayload struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type SignalPayload struct {
	RoomID    string          `json:"roomId"`
	From      string          `json:"from"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Signaling relays WebRTC negotiation between the members of a call room.
// Only participants of the appointment behind a room are admitted, and frames
// are forwarded only between members of the same room.
type Signaling struct {
	hub    *Hub
	rooms  *CallRooms
	access RoomAccess
	logger zerolog.Logger
}

func NewSignaling(hub *Hub, rooms *CallRooms, access RoomAccess, logger zerolog.Logger) *Signaling {
	return &Signaling{
		hub:    hub,
		rooms:  rooms,
		access: access,
		logger: logger.With().Str("component", "signaling").Logger(),
	}
}

// Handle processes one inbound frame from client. Malformed and unknown
// frames are ignored.
func (s *Signaling) Handle(ctx context.Context, client *Client, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	if msg.Event == EventPing {
		_ = s.hub.Send(client.Handle, EventPong, nil)
		return
	}

	var frame signalFrame
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &frame); err != nil {
			return
		}
	}

	switch msg.Event {
	case EventJoinRoom:
		s.join(ctx, client, frame.RoomID)
	case EventLeaveRoom:
		s.leave(client)
	case EventOffer, EventAnswer, EventICECandidate:
		s.relay(client, msg.Event, frame)
	}
}

// Drop removes a closed connection from its room and tells the peers.
func (s *Signaling) Drop(client *Client) {
	s.leave(client)
}

func (s *Signaling) join(ctx context.Context, client *Client, roomID string) {
	log := s.logger.With().
		Str("user_id", client.UserID).
		Str("handle", string(client.Handle)).
		Str("room_id", roomID).
		Logger()

	if roomID == "" {
		s.deny(client, roomID, "room_required")
		return
	}

	if err := s.access.AuthorizeRoom(ctx, client.UserID, roomID); err != nil {
		log.Info().Err(err).Msg("room join denied")
		s.deny(client, roomID, denialCode(err))
		return
	}

	if current, ok := s.rooms.RoomOf(client.Handle); ok && current != roomID {
		s.leave(client)
	}

	peers := s.rooms.Join(roomID, Member{Handle: client.Handle, UserID: client.UserID})
	for _, peer := range peers {
		_ = s.hub.Send(client.Handle, EventUserJoined, PeerPayload{
			RoomID: roomID,
			PeerID: string(peer.Handle),
			UserID: peer.UserID,
		})
	}

	log.Debug().Int("peers", len(peers)).Msg("joined room")
}

func (s *Signaling) leave(client *Client) {
	roomID, remaining, ok := s.rooms.Leave(client.Handle)
	if !ok {
		return
	}

	for _, peer := range remaining {
		_ = s.hub.Send(peer.Handle, EventUserLeft, PeerPayload{
			RoomID: roomID,
			PeerID: string(client.Handle),
		})
	}

	s.logger.Debug().
		Str("handle", string(client.Handle)).
		Str("room_id", roomID).
		Msg("left room")
}

func (s *Signaling) relay(client *Client, event string, frame signalFrame) {
	peers, ok := s.rooms.Peers(frame.RoomID, client.Handle)
	if !ok {
		s.logger.Debug().
			Str("event", event).
			Str("handle", string(client.Handle)).
			Str("room_id", frame.RoomID).
			Msg("signal from non-member dropped")
		return
	}

	payload := SignalPayload{RoomID: frame.RoomID, From: string(client.Handle)}
	switch event {
	case EventOffer:
		payload.Offer = frame.Offer
	case EventAnswer:
		payload.Answer = frame.Answer
	case EventICECandidate:
		payload.Candidate = frame.Candidate
	}

	for _, peer := range peers {
		if err := s.hub.Send(peer.Handle, event, payload); err != nil {
			s.logger.Debug().
				Err(err).
				Str("event", event).
				Str("peer", string(peer.Handle)).
				Msg("signal dropped")
		}
	}
}

func (s *Signaling) deny(client *Client, roomID, code string) {
	_ = s.hub.Send(client.Handle, EventJoinDenied, JoinDeniedPayload{RoomID: roomID, Code: code})
}

func denialCode(err error) string {
	if code, ok := httperr.BusinessCode(err); ok {
		return code
	}
	return "room_access_denied"
}
