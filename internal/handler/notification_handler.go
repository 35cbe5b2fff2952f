package handler

import (
	"net/http"

	"fieldserve/internal/middleware"
	"fieldserve/internal/service"
	"fieldserve/pkg/logger"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications *service.NotificationService
	log           logger.ILogger
}

func NewNotificationHandler(notifications *service.NotificationService, log logger.ILogger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, log: log}
}

func (h *NotificationHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	list, err := h.notifications.List(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	found, err := h.notifications.MarkRead(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
