package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type JobCounter interface {
	Len() int
}

type UserCounter interface {
	Len() int
}

type HealthHandler struct {
	jobs  JobCounter
	users UserCounter
}

func NewHealthHandler(jobs JobCounter, users UserCounter) *HealthHandler {
	return &HealthHandler{jobs: jobs, users: users}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"live_jobs":    h.jobs.Len(),
		"online_users": h.users.Len(),
	})
}
