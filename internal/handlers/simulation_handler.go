package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"lifedigital/internal/services"
)

type SimulationHandler struct {
	simService *services.SimulationService
}

func NewSimulationHandler(simService *services.SimulationService) *SimulationHandler {
	return &SimulationHandler{simService: simService}
}

// @Summary      Cria uma simulação
// @Description  Valida os parâmetros do produto, fixa a margem corrente e dispara o score assíncrono
// @Tags         Simulations
// @Accept       json
// @Produce      json
// @Param        body  body      object{produto=string,parametros=object}  true  "produto e parâmetros"
// @Success      202   {object}  models.Simulation
// @Failure      400   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /simulations [post]
func (h *SimulationHandler) Create(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	var req struct {
		Produto    string          `json:"produto" binding:"required"`
		Parametros json.RawMessage `json:"parametros" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sim, err := h.simService.Create(c.Request.Context(), userID, req.Produto, req.Parametros)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, sim)
}

// @Summary      Consulta uma simulação
// @Description  Estado corrente; nunca bloqueia em score pendente
// @Tags         Simulations
// @Produce      json
// @Param        id   path      string  true  "id da simulação"
// @Success      200  {object}  models.Simulation
// @Failure      404  {object}  map[string]string
// @Router       /simulations/{id} [get]
func (h *SimulationHandler) Get(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	sim, err := h.simService.Get(c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sim)
}

// @Summary      Aceita a proposta
// @Description  Válido só a partir de APROVADA dentro da janela; idempotente
// @Tags         Simulations
// @Produce      json
// @Param        id   path      string  true  "id da simulação"
// @Success      200  {object}  models.Simulation
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /simulations/{id}/accept [post]
func (h *SimulationHandler) Accept(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	sim, err := h.simService.Accept(c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sim)
}
