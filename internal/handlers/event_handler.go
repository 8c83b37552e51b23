package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lifedigital/internal/models"
	"lifedigital/internal/realtime"
	"lifedigital/internal/services"
)

type EventHandler struct {
	eventService *services.EventService
	hub          *realtime.EventHub
}

func NewEventHandler(eventService *services.EventService, hub *realtime.EventHub) *EventHandler {
	return &EventHandler{eventService: eventService, hub: hub}
}

// cursor do SSE: query ?cursor= ou header Last-Event-ID
func parseCursor(c *gin.Context) int64 {
	raw := c.Query("cursor")
	if raw == "" {
		raw = c.GetHeader("Last-Event-ID")
	}
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeSSE(c *gin.Context, ev *models.WorkflowEvent) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(c.Writer, "id: %d\nevent: workflow\ndata: %s\n\n", ev.ID, data); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}

// @Summary      Stream de eventos do usuário
// @Description  SSE com replay a partir do cursor (?cursor= ou Last-Event-ID) e eventos ao vivo em seguida
// @Tags         Events
// @Produce      text/event-stream
// @Param        cursor  query  int  false  "id do último evento recebido"
// @Success      200
// @Router       /events [get]
func (h *EventHandler) Stream(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	// Assina ANTES do replay para não perder eventos entre as duas fases;
	// duplicatas do intervalo são filtradas pelo cursor.
	sub := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(userID, sub)

	cursor := parseCursor(c)
	replayed, err := h.eventService.Replay(userID, cursor, 500)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "erro interno"})
		return
	}
	for _, ev := range replayed {
		if !writeSSE(c, ev) {
			return
		}
		if ev.ID > cursor {
			cursor = ev.ID
		}
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if ev.ID <= cursor {
				continue
			}
			if !writeSSE(c, ev) {
				return
			}
			cursor = ev.ID
		}
	}
}
