package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lifedigital/internal/services"
)

type MarginHandler struct {
	marginService *services.MarginService
}

func NewMarginHandler(marginService *services.MarginService) *MarginHandler {
	return &MarginHandler{marginService: marginService}
}

// @Summary      Margem consignável
// @Description  Snapshot corrente (refresh sob demanda quando vencido) + histórico mensal
// @Tags         Margin
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /margin [get]
func (h *MarginHandler) Get(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	snap, err := h.marginService.GetCurrent(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	historico, err := h.marginService.History(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"margem":    snap,
		"historico": historico,
	})
}

// @Summary      Força o refresh da margem
// @Tags         Margin
// @Produce      json
// @Success      200  {object}  models.MarginSnapshot
// @Failure      503  {object}  map[string]string
// @Router       /margin/refresh [post]
func (h *MarginHandler) Refresh(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	snap, err := h.marginService.Refresh(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
