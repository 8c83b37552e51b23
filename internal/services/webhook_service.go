package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"lifedigital/internal/repositories"
	"lifedigital/internal/utils"
)

const (
	defaultMaxDeliveryAttempts = 5
	deliveryRetryBase          = 30 * time.Second
	deliveryRetryCap           = 15 * time.Minute
	deliveryTimeout            = 10 * time.Second
)

// WebhookService — entregador de webhooks de saída. Cada entrega é assinada
// com HMAC do corpo; falha reagenda com backoff até virar DEAD.
type WebhookService struct {
	Repo        repositories.WebhookRepository
	Events      repositories.EventRepository
	Alerts      Alerter
	Secret      string
	MaxAttempts int
	Client      *http.Client
}

func NewWebhookService(repo repositories.WebhookRepository, events repositories.EventRepository, alerts Alerter, secret string) *WebhookService {
	return &WebhookService{
		Repo:        repo,
		Events:      events,
		Alerts:      alerts,
		Secret:      secret,
		MaxAttempts: defaultMaxDeliveryAttempts,
		Client:      &http.Client{Timeout: deliveryTimeout},
	}
}

func (s *WebhookService) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return defaultMaxDeliveryAttempts
	}
	return s.MaxAttempts
}

// Run — loop de entrega; bloqueia até o ctx encerrar.
func (s *WebhookService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.DeliverDue(); err != nil {
				log.Printf("[webhook][deliver] falhou: %v", err)
			}
		}
	}
}

// DeliverDue — uma passada sobre as entregas vencidas.
func (s *WebhookService) DeliverDue() error {
	due, err := s.Repo.ListDue(time.Now(), 50)
	if err != nil {
		return err
	}
	for _, d := range due {
		if err := s.deliver(d.ID, d.EventID, d.TargetURL, d.Attempts); err != nil {
			log.Printf("[webhook][deliver] id=%d target=%s err=%v", d.ID, d.TargetURL, err)
		}
	}
	return nil
}

func (s *WebhookService) deliver(deliveryID, eventID int64, targetURL string, attempts int) error {
	ev, err := s.Events.GetByID(eventID)
	if err != nil {
		return err
	}
	if ev == nil {
		return s.Repo.MarkFailed(deliveryID, attempts+1, time.Now(), "evento não encontrado", true)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(utils.SignatureHeader, utils.SignPayload(s.Secret, body))

	resp, err := s.Client.Do(req)
	if err != nil {
		return s.fail(deliveryID, attempts, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return s.fail(deliveryID, attempts, fmt.Sprintf("status %d", resp.StatusCode))
	}

	if err := s.Repo.MarkDelivered(deliveryID); err != nil {
		return err
	}
	log.Printf("[webhook][deliver] ok id=%d event_id=%d target=%s", deliveryID, eventID, targetURL)
	return nil
}

func (s *WebhookService) fail(deliveryID int64, attempts int, reason string) error {
	next := attempts + 1
	dead := next >= s.maxAttempts()

	backoff := deliveryRetryBase
	for i := 1; i < next; i++ {
		backoff *= 2
		if backoff > deliveryRetryCap {
			backoff = deliveryRetryCap
			break
		}
	}
	if err := s.Repo.MarkFailed(deliveryID, next, time.Now().Add(backoff), reason, dead); err != nil {
		return err
	}
	if dead {
		log.Printf("[webhook][deliver] morto id=%d attempts=%d motivo=%s", deliveryID, next, reason)
		if s.Alerts != nil {
			s.Alerts.Alert(fmt.Sprintf("⚠️ Webhook morto após %d tentativas: entrega %d (%s)", next, deliveryID, reason))
		}
	}
	return nil
}

// VerifyInbound — confere a assinatura de webhooks de ENTRADA (scanner).
func (s *WebhookService) VerifyInbound(signature string, body []byte) bool {
	return utils.VerifySignature(s.Secret, body, signature)
}
