package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"lifedigital/internal/models"
	"lifedigital/internal/repositories"
	"lifedigital/internal/utils"
)

const (
	defaultPresignTTL      = 15 * time.Minute
	defaultMaxScanAttempts = 3
	scanRetryBase          = 30 * time.Second
	scanRetryCap           = 10 * time.Minute
)

// UploadKindSpec — variante declarativa por kind: tipos permitidos e teto de
// tamanho. Polimorfismo por tabela, não por subclasse.
type UploadKindSpec struct {
	AllowedTypes map[string]string // content-type -> extensão do objeto
	MaxSizeBytes int64
}

var uploadKinds = map[string]UploadKindSpec{
	"contracheque": {
		AllowedTypes: map[string]string{
			"image/jpeg":      ".jpg",
			"image/png":       ".png",
			"application/pdf": ".pdf",
		},
		MaxSizeBytes: 5 << 20,
	},
	"identidade": {
		AllowedTypes: map[string]string{
			"image/jpeg": ".jpg",
			"image/png":  ".png",
		},
		MaxSizeBytes: 8 << 20,
	},
	"comprovante_residencia": {
		AllowedTypes: map[string]string{
			"image/jpeg":      ".jpg",
			"image/png":       ".png",
			"application/pdf": ".pdf",
		},
		MaxSizeBytes: 5 << 20,
	},
}

type StoragePort interface {
	IssueWriteCapability(key, contentType string, size int64, ttl time.Duration) (string, error)
	HeadObject(key string) (*utils.StorageHead, error)
}

type ScannerPort interface {
	Submit(objectKey string) (string, error)
}

// Alerter — canal de alerta operacional (Telegram); pode ser nil.
type Alerter interface {
	Alert(text string)
}

type UploadService struct {
	Repo            repositories.UploadRepository
	Storage         StoragePort
	Scanner         ScannerPort
	Alerts          Alerter
	PresignTTL      time.Duration
	MaxScanAttempts int
}

func NewUploadService(repo repositories.UploadRepository, storage StoragePort, scanner ScannerPort, alerts Alerter) *UploadService {
	return &UploadService{
		Repo:            repo,
		Storage:         storage,
		Scanner:         scanner,
		Alerts:          alerts,
		PresignTTL:      defaultPresignTTL,
		MaxScanAttempts: defaultMaxScanAttempts,
	}
}

// Presign — valida kind/contentType/size e emite a capability de escrita.
func (s *UploadService) Presign(userID int64, kind, contentType string, size int64) (*models.UploadObject, error) {
	spec, ok := uploadKinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: kind %q", ErrValidation, kind)
	}
	ext, ok := spec.AllowedTypes[contentType]
	if !ok {
		return nil, ErrUnsupportedMediaType
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: size deve ser positivo", ErrValidation)
	}
	if size > spec.MaxSizeBytes {
		return nil, ErrPayloadTooLarge
	}

	key, err := utils.NewObjectKey(kind, ext)
	if err != nil {
		return nil, err
	}
	ttl := s.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	url, err := s.Storage.IssueWriteCapability(key, contentType, size, ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	obj := &models.UploadObject{
		ObjectKey:        key,
		UserID:           userID,
		Kind:             kind,
		ContentType:      contentType,
		SizeBytes:        size,
		PresignURL:       url,
		PresignExpiresAt: time.Now().Add(ttl),
	}
	if _, err := s.Repo.Create(obj); err != nil {
		return nil, err
	}
	log.Printf("[upload][presign] ok key=%s kind=%s user_id=%d", key, kind, userID)
	return obj, nil
}

// Get — estado corrente do objeto.
func (s *UploadService) Get(objectKey string) (*models.UploadObject, error) {
	obj, err := s.Repo.GetByKey(objectKey)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNotFound
	}
	return obj, nil
}

// Finalize — PRESIGNED -> UPLOADED -> SCANNING. Idempotente: se o objeto já
// saiu de PRESIGNED devolvemos o estado corrente sem erro (retry de cliente).
// Só o dono do presign pode finalizar; chave alheia responde como inexistente.
func (s *UploadService) Finalize(userID int64, objectKey string) (*models.UploadObject, error) {
	obj, err := s.Repo.GetByKey(objectKey)
	if err != nil {
		return nil, err
	}
	if obj == nil || obj.UserID != userID {
		return nil, ErrNotFound
	}
	if obj.Status != models.UploadPresigned {
		return obj, nil
	}
	if time.Now().After(obj.PresignExpiresAt) {
		return nil, ErrPresignExpired
	}

	// O que foi declarado no presign precisa bater com o que está no storage.
	head, err := s.Storage.HeadObject(objectKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if head == nil {
		return nil, fmt.Errorf("%w: objeto ainda não enviado ao storage", ErrValidation)
	}
	if head.ContentType != obj.ContentType || head.Size != obj.SizeBytes {
		return nil, fmt.Errorf("%w: objeto armazenado difere do declarado (%s/%d vs %s/%d)",
			ErrValidation, head.ContentType, head.Size, obj.ContentType, obj.SizeBytes)
	}

	if _, err := s.Repo.Transition(objectKey, models.UploadPresigned, models.UploadUploaded, "user", nil); err != nil {
		if err == repositories.ErrNoTransition {
			// outro finalize ganhou a corrida
			return s.Repo.GetByKey(objectKey)
		}
		return nil, err
	}
	if _, err := s.Repo.Transition(objectKey, models.UploadUploaded, models.UploadScanning, "system:scan", nil); err != nil && err != repositories.ErrNoTransition {
		return nil, err
	}
	obj.Status = models.UploadScanning

	s.submitScan(obj)
	return s.Repo.GetByKey(objectKey)
}

// submitScan — tenta agendar a varredura; falha vira FAILED com retry agendado.
func (s *UploadService) submitScan(obj *models.UploadObject) {
	jobID, err := s.Scanner.Submit(obj.ObjectKey)
	if err != nil {
		log.Printf("[upload][scan] submit falhou key=%s err=%v", obj.ObjectKey, err)
		s.scheduleScanRetry(obj.ObjectKey, models.UploadScanning)
		return
	}
	if err := s.Repo.SetScanJob(obj.ObjectKey, jobID); err != nil {
		log.Printf("[upload][scan] set job falhou key=%s err=%v", obj.ObjectKey, err)
	}
}

// ApplyScanResultByJob — resolve o job devolvido no submit para o objeto e
// aplica o veredito (o contrato do scanner é por job, não por chave).
func (s *UploadService) ApplyScanResultByJob(jobID, verdict string) (*models.UploadObject, error) {
	obj, err := s.Repo.GetByScanJob(jobID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNotFound
	}
	return s.ApplyScanResult(obj.ObjectKey, verdict)
}

// ApplyScanResult — comando de entrada vindo do webhook do scanner.
// Callbacks duplicados ou fora de ordem são ignorados com segurança.
func (s *UploadService) ApplyScanResult(objectKey, verdict string) (*models.UploadObject, error) {
	obj, err := s.Repo.GetByKey(objectKey)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNotFound
	}
	if obj.Status != models.UploadScanning {
		log.Printf("[upload][scan] callback ignorado key=%s status=%s verdict=%s", objectKey, obj.Status, verdict)
		return obj, nil
	}

	switch verdict {
	case models.UploadClean:
		if _, err := s.Repo.Transition(objectKey, models.UploadScanning, models.UploadClean, "scanner", nil); err != nil && err != repositories.ErrNoTransition {
			return nil, err
		}
	case models.UploadInfected:
		// Quarentena: o objeto fica registrado, nunca é apagado.
		payload, _ := json.Marshal(map[string]string{"motivo": models.ReasonInfectedDocument})
		if _, err := s.Repo.Transition(objectKey, models.UploadScanning, models.UploadInfected, "scanner", payload); err != nil && err != repositories.ErrNoTransition {
			return nil, err
		}
		if s.Alerts != nil {
			s.Alerts.Alert(fmt.Sprintf("🦠 Documento infectado em quarentena: %s (user %d)", objectKey, obj.UserID))
		}
	case models.UploadFailed:
		s.scheduleScanRetry(objectKey, models.UploadScanning)
	default:
		return nil, fmt.Errorf("%w: verdict %q", ErrValidation, verdict)
	}
	return s.Repo.GetByKey(objectKey)
}

func (s *UploadService) maxAttempts() int {
	if s.MaxScanAttempts <= 0 {
		return defaultMaxScanAttempts
	}
	return s.MaxScanAttempts
}

// scheduleScanRetry — transição para FAILED com backoff exponencial; depois de
// esgotar o orçamento o FAILED é permanente e o evento carrega permanent=true.
func (s *UploadService) scheduleScanRetry(objectKey, from string) {
	obj, err := s.Repo.GetByKey(objectKey)
	if err != nil || obj == nil {
		log.Printf("[upload][scan] releitura para retry falhou key=%s err=%v", objectKey, err)
		return
	}

	// Backoff exponencial sobre a tentativa que está sendo consumida agora.
	backoff := scanRetryBase
	for i := 0; i < obj.ScanAttempts; i++ {
		backoff *= 2
		if backoff > scanRetryCap {
			backoff = scanRetryCap
			break
		}
	}
	attempts, err := s.Repo.IncrementScanAttempts(objectKey, time.Now().Add(backoff))
	if err != nil {
		log.Printf("[upload][scan] increment attempts falhou key=%s err=%v", objectKey, err)
		return
	}

	permanent := attempts >= s.maxAttempts()
	payload, _ := json.Marshal(map[string]interface{}{
		"attempts":  attempts,
		"permanent": permanent,
	})
	if _, err := s.Repo.Transition(objectKey, from, models.UploadFailed, "scanner", payload); err != nil && err != repositories.ErrNoTransition {
		log.Printf("[upload][scan] transição FAILED falhou key=%s err=%v", objectKey, err)
		return
	}
	if permanent {
		log.Printf("[upload][scan] falha permanente key=%s attempts=%d", objectKey, attempts)
		if s.Alerts != nil {
			s.Alerts.Alert(fmt.Sprintf("⚠️ Varredura esgotou tentativas: %s", objectKey))
		}
	}
}

// RunScanRetries — loop de fundo: FAILED dentro do orçamento volta a SCANNING
// e é resubmetido ao scanner.
func (s *UploadService) RunScanRetries(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.retryFailedScans()
		}
	}
}

func (s *UploadService) retryFailedScans() {
	candidates, err := s.Repo.ListScanRetryCandidates(time.Now(), s.maxAttempts(), 50)
	if err != nil {
		log.Printf("[upload][scan] lista de retries falhou: %v", err)
		return
	}
	for _, obj := range candidates {
		if _, err := s.Repo.Transition(obj.ObjectKey, models.UploadFailed, models.UploadScanning, "system:retry", nil); err != nil {
			if err != repositories.ErrNoTransition {
				log.Printf("[upload][scan] retry transição falhou key=%s err=%v", obj.ObjectKey, err)
			}
			continue
		}
		log.Printf("[upload][scan] retry key=%s tentativa=%d", obj.ObjectKey, obj.ScanAttempts+1)
		s.submitScan(obj)
	}
}

// KindAllowed — usado na validação de produto (quais kinds existem).
func KindAllowed(kind string) bool {
	_, ok := uploadKinds[kind]
	return ok
}
