package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BruksfildServices01/consult-scheduler/internal/presence"
)

type MeHandler struct {
	presence *presence.Registry
}

func NewMeHandler(registry *presence.Registry) *MeHandler {
	return &MeHandler{presence: registry}
}

// GetMe echoes the caller's identity and how many push connections they
// currently hold.
func (h *MeHandler) GetMe(c *gin.Context) {
	actor := actorFrom(c)
	if actor.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user_not_in_context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":   actor.UserID,
			"role": actor.Role,
		},
		"connections": len(h.presence.ConnectionsOf(actor.UserID)),
	})
}
