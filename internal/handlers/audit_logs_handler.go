package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/BruksfildServices01/consult-scheduler/internal/httperr"
	"github.com/BruksfildServices01/consult-scheduler/internal/httpresp"
	"github.com/BruksfildServices01/consult-scheduler/internal/models"
)

type HistoryReader interface {
	History(ctx context.Context, entity string, entityID string, limit int, offset int) ([]models.AuditLog, int64, error)
}

// ======================================================
// HANDLER
// ======================================================

type AuditLogsHandler struct {
	history HistoryReader
	get     TransitionUseCase
}

func NewAuditLogsHandler(history HistoryReader, get TransitionUseCase) *AuditLogsHandler {
	return &AuditLogsHandler{history: history, get: get}
}

// List returns the status history of one appointment to its participants.
func (h *AuditLogsHandler) List(c *gin.Context) {
	id := c.Param("id")

	// participant check
	if _, err := h.get.Execute(c.Request.Context(), actorFrom(c), id); err != nil {
		writeError(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	offset := (page - 1) * limit

	logs, total, err := h.history.History(c.Request.Context(), "appointment", id, limit, offset)
	if err != nil {
		_ = c.Error(err)
		httperr.Internal(c, "audit_list_failed", "Could not list the appointment history.")
		return
	}

	httpresp.Page(c, logs, page, limit, total)
}
