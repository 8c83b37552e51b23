package services

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"lifedigital/internal/models"
)

func newUploadEnv() (*UploadService, *fakeUploadRepo, *fakeStorage, *fakeScanner, *fakeAlerter) {
	repo := newFakeUploadRepo()
	storage := newFakeStorage()
	scanner := &fakeScanner{}
	alerts := &fakeAlerter{}
	return NewUploadService(repo, storage, scanner, alerts), repo, storage, scanner, alerts
}

func TestPresignValidacoes(t *testing.T) {
	svc, _, _, _, _ := newUploadEnv()

	if _, err := svc.Presign(1, "selfie", "image/jpeg", 1024); !errors.Is(err, ErrValidation) {
		t.Fatalf("kind desconhecido: esperado ErrValidation, veio %v", err)
	}
	if _, err := svc.Presign(1, "contracheque", "image/gif", 1024); !errors.Is(err, ErrUnsupportedMediaType) {
		t.Fatalf("content-type fora da lista: esperado ErrUnsupportedMediaType, veio %v", err)
	}
	if _, err := svc.Presign(1, "contracheque", "image/jpeg", 50<<20); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("acima do teto: esperado ErrPayloadTooLarge, veio %v", err)
	}

	obj, err := svc.Presign(1, "contracheque", "image/jpeg", 1024)
	if err != nil {
		t.Fatalf("presign válido falhou: %v", err)
	}
	if obj.Status != models.UploadPresigned {
		t.Fatalf("status inicial deveria ser PRESIGNED, veio %s", obj.Status)
	}
	if !strings.HasSuffix(obj.ObjectKey, ".jpg") {
		t.Fatalf("object key deveria carregar a extensão do content-type, veio %s", obj.ObjectKey)
	}
	if obj.PresignURL == "" {
		t.Fatal("presign deveria devolver a URL de escrita")
	}
}

func TestFinalizeDisparaVarredura(t *testing.T) {
	svc, repo, _, scanner, _ := newUploadEnv()

	obj, err := svc.Presign(7, "contracheque", "application/pdf", 2048)
	if err != nil {
		t.Fatalf("presign falhou: %v", err)
	}

	got, err := svc.Finalize(7, obj.ObjectKey)
	if err != nil {
		t.Fatalf("finalize falhou: %v", err)
	}
	if got.Status != models.UploadScanning {
		t.Fatalf("após o finalize o objeto deveria estar SCANNING, veio %s", got.Status)
	}
	if len(scanner.jobs) != 1 {
		t.Fatalf("a varredura deveria ter sido submetida uma vez, veio %d", len(scanner.jobs))
	}

	// retry do cliente: sem erro e sem segunda submissão
	again, err := svc.Finalize(7, obj.ObjectKey)
	if err != nil {
		t.Fatalf("finalize repetido deveria ser idempotente, veio: %v", err)
	}
	if again.Status != models.UploadScanning || len(scanner.jobs) != 1 {
		t.Fatalf("finalize repetido não deveria re-submeter (status=%s jobs=%d)", again.Status, len(scanner.jobs))
	}
	if repo.objects[obj.ObjectKey].ScanJobID == "" {
		t.Fatal("scan_job_id deveria ter sido gravado")
	}
}

func TestFinalizeObjetoDivergente(t *testing.T) {
	svc, _, storage, _, _ := newUploadEnv()

	obj, err := svc.Presign(7, "contracheque", "application/pdf", 2048)
	if err != nil {
		t.Fatalf("presign falhou: %v", err)
	}
	// o que chegou no storage difere do declarado
	storage.heads[obj.ObjectKey].Size = 4096

	if _, err := svc.Finalize(7, obj.ObjectKey); !errors.Is(err, ErrValidation) {
		t.Fatalf("divergência declarado/armazenado: esperado ErrValidation, veio %v", err)
	}
}

func TestFinalizeCapabilityVencida(t *testing.T) {
	svc, repo, _, _, _ := newUploadEnv()

	obj, err := svc.Presign(7, "identidade", "image/png", 2048)
	if err != nil {
		t.Fatalf("presign falhou: %v", err)
	}
	repo.objects[obj.ObjectKey].PresignExpiresAt = time.Now().Add(-time.Minute)

	if _, err := svc.Finalize(7, obj.ObjectKey); !errors.Is(err, ErrPresignExpired) {
		t.Fatalf("esperado ErrPresignExpired, veio %v", err)
	}
}

func TestFinalizeDeOutroUsuario(t *testing.T) {
	svc, repo, _, scanner, _ := newUploadEnv()

	obj, err := svc.Presign(7, "contracheque", "application/pdf", 2048)
	if err != nil {
		t.Fatalf("presign falhou: %v", err)
	}

	// outro usuário autenticado com a chave alheia: responde como inexistente
	if _, err := svc.Finalize(8, obj.ObjectKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("finalize de chave alheia: esperado ErrNotFound, veio %v", err)
	}
	if st := repo.objects[obj.ObjectKey].Status; st != models.UploadPresigned {
		t.Fatalf("a tentativa alheia não pode mover o objeto, veio %s", st)
	}
	if len(scanner.jobs) != 0 {
		t.Fatalf("a tentativa alheia não pode disparar varredura, jobs=%d", len(scanner.jobs))
	}

	// o dono segue conseguindo finalizar normalmente
	if _, err := svc.Finalize(7, obj.ObjectKey); err != nil {
		t.Fatalf("finalize do dono falhou: %v", err)
	}
}

func TestScanCallbackPorJob(t *testing.T) {
	svc, repo, _, _, _ := newUploadEnv()

	obj, _ := svc.Presign(7, "contracheque", "image/jpeg", 1024)
	if _, err := svc.Finalize(7, obj.ObjectKey); err != nil {
		t.Fatalf("finalize falhou: %v", err)
	}
	jobID := repo.objects[obj.ObjectKey].ScanJobID
	if jobID == "" {
		t.Fatal("finalize deveria ter gravado o scan_job_id")
	}

	got, err := svc.ApplyScanResultByJob(jobID, models.UploadClean)
	if err != nil {
		t.Fatalf("callback por job falhou: %v", err)
	}
	if got.ObjectKey != obj.ObjectKey || got.Status != models.UploadClean {
		t.Fatalf("o job deveria resolver para o objeto e aplicá-lo, veio %s/%s", got.ObjectKey, got.Status)
	}

	if _, err := svc.ApplyScanResultByJob("job-inexistente", models.UploadClean); !errors.Is(err, ErrNotFound) {
		t.Fatalf("job desconhecido: esperado ErrNotFound, veio %v", err)
	}
}

func TestScanCallbackCleanEDuplicado(t *testing.T) {
	svc, repo, _, _, _ := newUploadEnv()

	obj, _ := svc.Presign(7, "contracheque", "image/jpeg", 1024)
	if _, err := svc.Finalize(7, obj.ObjectKey); err != nil {
		t.Fatalf("finalize falhou: %v", err)
	}

	got, err := svc.ApplyScanResult(obj.ObjectKey, models.UploadClean)
	if err != nil {
		t.Fatalf("callback CLEAN falhou: %v", err)
	}
	if got.Status != models.UploadClean {
		t.Fatalf("objeto deveria estar CLEAN, veio %s", got.Status)
	}

	// callback duplicado (ou atrasado) é ignorado com segurança
	dup, err := svc.ApplyScanResult(obj.ObjectKey, models.UploadInfected)
	if err != nil {
		t.Fatalf("callback duplicado não deveria falhar: %v", err)
	}
	if dup.Status != models.UploadClean {
		t.Fatalf("callback duplicado não deveria mudar o estado, veio %s", dup.Status)
	}
	_ = repo
}

func TestScanInfectadoQuarentenaEAlerta(t *testing.T) {
	svc, repo, _, _, alerts := newUploadEnv()

	obj, _ := svc.Presign(7, "contracheque", "image/jpeg", 1024)
	if _, err := svc.Finalize(7, obj.ObjectKey); err != nil {
		t.Fatalf("finalize falhou: %v", err)
	}

	got, err := svc.ApplyScanResult(obj.ObjectKey, models.UploadInfected)
	if err != nil {
		t.Fatalf("callback INFECTED falhou: %v", err)
	}
	if got.Status != models.UploadInfected {
		t.Fatalf("objeto deveria estar em quarentena INFECTED, veio %s", got.Status)
	}
	if alerts.count() != 1 {
		t.Fatalf("quarentena deveria gerar um alerta, veio %d", alerts.count())
	}
	// quarentena mantém o registro; nada é apagado
	if repo.objects[obj.ObjectKey] == nil {
		t.Fatal("objeto em quarentena não pode sumir do repositório")
	}
}

func TestScanFalhaPermanenteComEvento(t *testing.T) {
	svc, repo, _, _, alerts := newUploadEnv()
	svc.MaxScanAttempts = 1

	obj, _ := svc.Presign(7, "contracheque", "image/jpeg", 1024)
	if _, err := svc.Finalize(7, obj.ObjectKey); err != nil {
		t.Fatalf("finalize falhou: %v", err)
	}

	got, err := svc.ApplyScanResult(obj.ObjectKey, models.UploadFailed)
	if err != nil {
		t.Fatalf("callback FAILED falhou: %v", err)
	}
	if got.Status != models.UploadFailed {
		t.Fatalf("objeto deveria estar FAILED, veio %s", got.Status)
	}

	ev := repo.lastEvent(obj.ObjectKey)
	if ev == nil || ev.ToStatus != models.UploadFailed {
		t.Fatal("a falha deveria ter registrado o evento FAILED")
	}
	var payload struct {
		Permanent bool `json:"permanent"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || !payload.Permanent {
		t.Fatalf("evento FAILED terminal deveria marcar permanent=true, payload=%s", ev.Payload)
	}
	if alerts.count() != 1 {
		t.Fatalf("falha permanente deveria gerar um alerta, veio %d", alerts.count())
	}
}

func TestRetryDeVarreduraVolta(t *testing.T) {
	svc, repo, _, scanner, _ := newUploadEnv()

	obj, _ := svc.Presign(7, "contracheque", "image/jpeg", 1024)
	if _, err := svc.Finalize(7, obj.ObjectKey); err != nil {
		t.Fatalf("finalize falhou: %v", err)
	}
	if _, err := svc.ApplyScanResult(obj.ObjectKey, models.UploadFailed); err != nil {
		t.Fatalf("callback FAILED falhou: %v", err)
	}
	// antecipa o horário do retry
	repo.nextScanAt[obj.ObjectKey] = time.Now().Add(-time.Second)

	svc.retryFailedScans()

	if st := repo.objects[obj.ObjectKey].Status; st != models.UploadScanning {
		t.Fatalf("retry deveria voltar o objeto a SCANNING, veio %s", st)
	}
	if len(scanner.jobs) != 2 {
		t.Fatalf("retry deveria re-submeter ao scanner, submissões=%d", len(scanner.jobs))
	}
}
