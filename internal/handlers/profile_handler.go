package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lifedigital/internal/models"
	"lifedigital/internal/services"
)

type ProfileHandler struct {
	userService   *services.UserService
	verifyService *services.VerificationService
}

func NewProfileHandler(userService *services.UserService, verifyService *services.VerificationService) *ProfileHandler {
	return &ProfileHandler{userService: userService, verifyService: verifyService}
}

// kind da URL -> kind do desafio
func verificationKind(attr string) (string, bool) {
	switch attr {
	case "cpf":
		return models.VerificationKindCPF, true
	case "whatsapp":
		return models.VerificationKindPhone, true
	}
	return "", false
}

// @Summary      Perfil do usuário
// @Tags         Profile
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      404  {object}  map[string]string
// @Router       /profile [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	user, err := h.userService.GetByID(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      Informa o CPF
// @Description  Grava o CPF, derruba a verificação anterior e envia um novo código
// @Tags         Profile
// @Accept       json
// @Produce      json
// @Param        body  body      object{cpf=string}  true  "CPF (11 dígitos)"
// @Success      200   {object}  models.User
// @Failure      400   {object}  map[string]string
// @Router       /profile/cpf [put]
func (h *ProfileHandler) SetCPF(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	var req struct {
		CPF string `json:"cpf" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.userService.SetCPF(userID, req.CPF)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.verifyService.Start(userID, models.VerificationKindCPF); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      Informa o WhatsApp
// @Description  Grava o telefone E.164, derruba a verificação anterior e envia um novo código
// @Tags         Profile
// @Accept       json
// @Produce      json
// @Param        body  body      object{phone=string}  true  "Telefone E.164"
// @Success      200   {object}  models.User
// @Failure      400   {object}  map[string]string
// @Router       /profile/whatsapp [put]
func (h *ProfileHandler) SetWhatsApp(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.userService.SetPhone(userID, req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.verifyService.Start(userID, models.VerificationKindPhone); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      Reenvia o código de verificação
// @Tags         Profile
// @Produce      json
// @Param        attr  path      string  true  "cpf | whatsapp"
// @Success      200   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /profile/{attr}/resend [post]
func (h *ProfileHandler) Resend(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	kind, ok := verificationKind(c.Param("attr"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "atributo desconhecido"})
		return
	}
	if err := h.verifyService.Start(userID, kind); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "código reenviado"})
}

// @Summary      Confirma o código de verificação
// @Tags         Profile
// @Accept       json
// @Produce      json
// @Param        attr  path      string              true  "cpf | whatsapp"
// @Param        body  body      object{code=string}  true  "código recebido"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      410   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /profile/{attr}/verify [post]
func (h *ProfileHandler) Verify(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	kind, ok := verificationKind(c.Param("attr"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "atributo desconhecido"})
		return
	}
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.verifyService.Verify(userID, kind, req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verificado"})
}
