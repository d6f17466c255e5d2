package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
	"github.com/BruksfildServices01/consult-scheduler/internal/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	// Session descriptions carry the full SDP, which runs to several KB.
	maxMessageSize = 64 * 1024
)

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	Authenticate(token string) (userID string, err error)
}

type WebSocketHandler struct {
	hub       *Hub
	signaling *Signaling
	auth      Authenticator
	upgrader  gorillawebsocket.Upgrader
	logger    zerolog.Logger
}

func NewWebSocketHandler(
	hub *Hub,
	signaling *Signaling,
	auth Authenticator,
	allowedOrigins []string,
	logger zerolog.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		signaling: signaling,
		auth:      auth,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With().Str("component", "ws_handler").Logger(),
	}
}

// Connect authenticates the caller, upgrades the connection and runs the
// read/write pumps until the connection ends.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		httperr.Unauthorized(c, "missing_token", "Token is required.")
		return
	}

	userID, err := h.auth.Authenticate(token)
	if err != nil {
		httperr.Unauthorized(c, "invalid_token", "Invalid token.")
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	client := h.hub.Connect(userID)

	go h.writePump(client, ws)
	h.readPump(c.Request.Context(), client, ws)
}

func (h *WebSocketHandler) readPump(ctx context.Context, client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.signaling.Drop(client)
		h.hub.Disconnect(client)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if gorillawebsocket.IsUnexpectedCloseError(err, gorillawebsocket.CloseGoingAway, gorillawebsocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("user_id", client.UserID).Msg("websocket closed unexpectedly")
			}
			return
		}

		h.signaling.Handle(ctx, client, data)
	}
}

func (h *WebSocketHandler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Messages():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}

// originChecker admits requests without an Origin header (non-browser
// clients) and browser origins on the CORS allow list.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || middleware.OriginAllowed(allowed, origin)
	}
}
