package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/BruksfildServices01/consult-scheduler/internal/dto"
	"github.com/BruksfildServices01/consult-scheduler/internal/httpresp"
	usecase "github.com/BruksfildServices01/consult-scheduler/internal/usecase/appointment"
)

type CallAccessUseCase interface {
	Execute(ctx context.Context, actor usecase.Actor, roomID string) (usecase.CallAccess, error)
}

type CallHandler struct {
	access CallAccessUseCase
}

func NewCallHandler(access CallAccessUseCase) *CallHandler {
	return &CallHandler{access: access}
}

// Access tells a client, before it opens the signaling channel, whether it
// may join the room.
func (h *CallHandler) Access(c *gin.Context) {
	access, err := h.access.Execute(c.Request.Context(), actorFrom(c), c.Param("roomId"))
	if err != nil {
		writeError(c, err)
		return
	}

	httpresp.OK(c, dto.CallAccessDTO{
		RoomID:        access.RoomID,
		AppointmentID: access.AppointmentID,
		Role:          access.Role,
	})
}
