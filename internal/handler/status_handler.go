package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xanderslabs/Fundit/internal/indexer"
)

type StatusHandler struct {
	scheduler *indexer.Scheduler
}

func NewStatusHandler(scheduler *indexer.Scheduler) *StatusHandler {
	return &StatusHandler{scheduler: scheduler}
}

// GetIndexerStatus 获取每条链的同步状态
func (h *StatusHandler) GetIndexerStatus(c *gin.Context) {
	statuses := h.scheduler.Status(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"chains": statuses})
}

// Health 健康检查
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
