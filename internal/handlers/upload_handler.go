package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lifedigital/internal/services"
)

type UploadHandler struct {
	uploadService *services.UploadService
}

func NewUploadHandler(uploadService *services.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// @Summary      Solicita URL de upload
// @Description  Valida kind/contentType/size e emite a URL pré-assinada de PUT
// @Tags         Uploads
// @Accept       json
// @Produce      json
// @Param        body  body      object{kind=string,content_type=string,size=int}  true  "declaração do upload"
// @Success      200   {object}  models.UploadObject
// @Failure      400   {object}  map[string]string
// @Failure      413   {object}  map[string]string
// @Failure      415   {object}  map[string]string
// @Router       /uploads/presign [post]
func (h *UploadHandler) Presign(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	var req struct {
		Kind        string `json:"kind" binding:"required"`
		ContentType string `json:"content_type" binding:"required"`
		Size        int64  `json:"size" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	obj, err := h.uploadService.Presign(userID, req.Kind, req.ContentType, req.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

// @Summary      Finaliza o upload
// @Description  Confere o objeto no storage e dispara a varredura de malware
// @Tags         Uploads
// @Accept       json
// @Produce      json
// @Param        body  body      object{object_key=string}  true  "object key devolvida no presign"
// @Success      200   {object}  models.UploadObject
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      410   {object}  map[string]string
// @Router       /uploads/finalize [post]
func (h *UploadHandler) Finalize(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	var req struct {
		ObjectKey string `json:"object_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	obj, err := h.uploadService.Finalize(userID, req.ObjectKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

// @Summary      Estado do upload
// @Tags         Uploads
// @Produce      json
// @Param        key  query     string  true  "object key"
// @Success      200  {object}  models.UploadObject
// @Failure      404  {object}  map[string]string
// @Router       /uploads/status [get]
func (h *UploadHandler) Status(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key obrigatória"})
		return
	}
	obj, err := h.uploadService.Get(key)
	if err != nil {
		respondError(c, err)
		return
	}
	if obj.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "não encontrado"})
		return
	}
	c.JSON(http.StatusOK, obj)
}
