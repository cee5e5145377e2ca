package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rabbitctf/rabbitctf-api/internal/handler/dto"
	"github.com/rabbitctf/rabbitctf-api/internal/handler/helper"
)

// EventHandler обрабатывает запросы состояния и настроек соревнования
type EventHandler struct {
	events EventUseCase
	audit  AuditRecorder
}

// NewEventHandler создает новый обработчик соревнования
func NewEventHandler(events EventUseCase, audit AuditRecorder) *EventHandler {
	return &EventHandler{events: events, audit: audit}
}

// Status возвращает публичное состояние соревнования
func (h *EventHandler) Status(c *gin.Context) {
	snapshot, err := h.events.Snapshot(c.Request.Context())
	if err != nil {
		handleServiceError(c, "EventHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewEventStatusResponse(snapshot))
}

// GetConfig возвращает настройки соревнования
func (h *EventHandler) GetConfig(c *gin.Context) {
	cfg, err := h.events.GetConfig(c.Request.Context())
	if err != nil {
		handleServiceError(c, "EventHandler", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateConfig изменяет настройки соревнования
func (h *EventHandler) UpdateConfig(c *gin.Context) {
	var req dto.EventConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.events.UpdateConfig(c.Request.Context(), actorFrom(c), req.ToUpdate())
	if err != nil {
		handleServiceError(c, "EventHandler", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// AuditLog возвращает последние действия администраторов
func (h *EventHandler) AuditLog(c *gin.Context) {
	limit, offset := helper.Pagination(c)

	entries, err := h.audit.List(c.Request.Context(), limit, offset)
	if err != nil {
		handleServiceError(c, "EventHandler", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
