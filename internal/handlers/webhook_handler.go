package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"lifedigital/internal/models"
	"lifedigital/internal/services"
	"lifedigital/internal/utils"
)

type WebhookHandler struct {
	webhookService *services.WebhookService
	uploadService  *services.UploadService
	marginService  *services.MarginService
}

func NewWebhookHandler(webhookService *services.WebhookService, uploadService *services.UploadService, marginService *services.MarginService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		uploadService:  uploadService,
		marginService:  marginService,
	}
}

// lê o corpo e valida o HMAC antes de qualquer parse
func (h *WebhookHandler) readSigned(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "corpo ilegível"})
		return nil, false
	}
	sig := c.GetHeader(utils.SignatureHeader)
	if sig == "" || !h.webhookService.VerifyInbound(sig, body) {
		log.Printf("[webhook][in] assinatura inválida path=%s", c.Request.URL.Path)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "assinatura inválida"})
		return nil, false
	}
	return body, true
}

// @Summary      Callback do scanner de malware
// @Description  Recebe o veredito da varredura (CLEAN/INFECTED/FAILED) pelo job_id do submit; callbacks duplicados são ignorados
// @Tags         Webhooks
// @Accept       json
// @Produce      json
// @Param        body  body      object{job_id=string,verdict=string}  true  "veredito"
// @Success      200   {object}  models.UploadObject
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /webhooks/scan [post]
func (h *WebhookHandler) ScanResult(c *gin.Context) {
	body, ok := h.readSigned(c)
	if !ok {
		return
	}
	var req struct {
		JobID     string `json:"job_id"`
		ObjectKey string `json:"object_key"`
		Verdict   string `json:"verdict"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Verdict == "" || (req.JobID == "" && req.ObjectKey == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload inválido"})
		return
	}

	// contrato do scanner é por job_id; object_key fica como fallback
	var obj *models.UploadObject
	var err error
	if req.JobID != "" {
		obj, err = h.uploadService.ApplyScanResultByJob(req.JobID, req.Verdict)
	} else {
		obj, err = h.uploadService.ApplyScanResult(req.ObjectKey, req.Verdict)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

// @Summary      Eventos de parceiros web
// @Description  Despacho de comandos vindos de integrações externas
// @Tags         Webhooks
// @Accept       json
// @Produce      json
// @Param        body  body      object{action=string,user_id=int}  true  "comando"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /webhooks/web [post]
func (h *WebhookHandler) WebEvent(c *gin.Context) {
	body, ok := h.readSigned(c)
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action"`
		UserID int64  `json:"user_id"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload inválido"})
		return
	}

	switch req.Action {
	case "margin.refresh":
		if req.UserID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id obrigatório"})
			return
		}
		if _, err := h.marginService.Refresh(c.Request.Context(), req.UserID); err != nil {
			respondError(c, err)
			return
		}
	default:
		log.Printf("[webhook][web] ação desconhecida action=%q", req.Action)
		c.JSON(http.StatusBadRequest, gin.H{"error": "ação desconhecida"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "processado"})
}
