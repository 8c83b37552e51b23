package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"lifedigital/internal/models"
	"lifedigital/internal/services"
)

type AuthHandler struct {
	userService *services.UserService
	authService *services.AuthService
}

func NewAuthHandler(userService *services.UserService, authService *services.AuthService) *AuthHandler {
	return &AuthHandler{userService: userService, authService: authService}
}

// @Summary      Login com Google
// @Description  Troca um id_token do Google por um access token da API
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.GoogleAuthRequest  true  "id_token do Google"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /auth/google [post]
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req models.GoogleAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[auth][google] bad request: bind json failed: err=%v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.authService.ValidateGoogleToken(req.IDToken)
	if err != nil {
		if errors.Is(err, services.ErrInvalidIDToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "id_token inválido"})
			return
		}
		log.Printf("[auth][google] validação falhou: err=%v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "validação do token indisponível"})
		return
	}

	user, err := h.userService.EnsureUser(profile.Email, profile.Name)
	if err != nil {
		log.Printf("[auth][google] ensure user falhou email=%s err=%v", profile.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "erro interno"})
		return
	}

	accessToken, err := h.authService.IssueAccessToken(user.ID)
	if err != nil {
		log.Printf("[auth][google] emissão de token falhou userID=%d err=%v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "falha ao gerar o access token"})
		return
	}

	log.Printf("[auth][google] success userID=%d email=%s", user.ID, user.Email)
	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"access_token": accessToken,
	})
}
