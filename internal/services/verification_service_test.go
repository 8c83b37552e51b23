package services

import (
	"errors"
	"testing"
	"time"

	"lifedigital/internal/models"
)

func newVerifyEnv(t *testing.T) (*VerificationService, *fakeUserRepo, *fakeChallengeRepo, *fakeSender, *models.User) {
	t.Helper()
	users := newFakeUserRepo()
	challenges := &fakeChallengeRepo{}
	sender := &fakeSender{}
	user := &models.User{Email: "ana@example.com", Name: "Ana", PhoneE164: "+5511999990000", CPF: "52998224725"}
	if err := users.Create(user); err != nil {
		t.Fatalf("criação do usuário falhou: %v", err)
	}
	return NewVerificationService(challenges, users, sender), users, challenges, sender, user
}

func TestVerifyFluxoCompleto(t *testing.T) {
	svc, users, _, sender, user := newVerifyEnv(t)

	if err := svc.Start(user.ID, models.VerificationKindPhone); err != nil {
		t.Fatalf("start falhou: %v", err)
	}
	code := sender.lastCode()
	if len(code) != 6 {
		t.Fatalf("código deveria ter 6 dígitos, veio %q", code)
	}

	if err := svc.Verify(user.ID, models.VerificationKindPhone, code); err != nil {
		t.Fatalf("verify com código correto falhou: %v", err)
	}
	u, _ := users.GetByID(user.ID)
	if !u.WhatsappVerified {
		t.Fatal("whatsapp_verified deveria estar ligado após o verify")
	}

	// retry do cliente com o mesmo código: idempotente
	if err := svc.Verify(user.ID, models.VerificationKindPhone, code); err != nil {
		t.Fatalf("reenvio do código correto deveria ser idempotente, veio: %v", err)
	}
}

func TestVerifyEsgotaTentativas(t *testing.T) {
	svc, _, challenges, sender, user := newVerifyEnv(t)

	if err := svc.Start(user.ID, models.VerificationKindPhone); err != nil {
		t.Fatalf("start falhou: %v", err)
	}

	for i := 0; i < 4; i++ {
		if err := svc.Verify(user.ID, models.VerificationKindPhone, "000000"); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("tentativa %d: esperado ErrInvalidCode, veio %v", i+1, err)
		}
	}
	// quinta tentativa errada esgota o desafio
	if err := svc.Verify(user.ID, models.VerificationKindPhone, "000000"); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("quinta tentativa: esperado ErrTooManyAttempts, veio %v", err)
	}
	ch, _ := challenges.GetLatest(user.ID, models.VerificationKindPhone)
	if ch.Status != models.ChallengeExhausted {
		t.Fatalf("desafio deveria estar EXHAUSTED, veio %s", ch.Status)
	}

	// nem o código correto passa depois de esgotar
	if err := svc.Verify(user.ID, models.VerificationKindPhone, sender.lastCode()); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("código correto após esgotar: esperado ErrTooManyAttempts, veio %v", err)
	}
}

func TestStartSupersedeCodigoAnterior(t *testing.T) {
	svc, _, challenges, sender, user := newVerifyEnv(t)

	if err := svc.Start(user.ID, models.VerificationKindPhone); err != nil {
		t.Fatalf("primeiro start falhou: %v", err)
	}
	primeiro := sender.lastCode()

	if err := svc.Start(user.ID, models.VerificationKindPhone); err != nil {
		t.Fatalf("segundo start falhou: %v", err)
	}
	segundo := sender.lastCode()

	if ch := challenges.list[0]; ch.Status != models.ChallengeExpired {
		t.Fatalf("desafio anterior deveria estar EXPIRED, veio %s", ch.Status)
	}
	if primeiro != segundo {
		if err := svc.Verify(user.ID, models.VerificationKindPhone, primeiro); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("código superseded: esperado ErrInvalidCode, veio %v", err)
		}
	}
	if err := svc.Verify(user.ID, models.VerificationKindPhone, segundo); err != nil {
		t.Fatalf("código novo deveria passar: %v", err)
	}
}

func TestStartThrottleDeReenvio(t *testing.T) {
	svc, _, _, _, user := newVerifyEnv(t)

	for i := 0; i < 3; i++ {
		if err := svc.Start(user.ID, models.VerificationKindPhone); err != nil {
			t.Fatalf("start %d falhou: %v", i+1, err)
		}
	}
	if err := svc.Start(user.ID, models.VerificationKindPhone); !errors.Is(err, ErrResendThrottled) {
		t.Fatalf("quarto start: esperado ErrResendThrottled, veio %v", err)
	}
}

func TestVerifyCodigoExpirado(t *testing.T) {
	svc, _, challenges, sender, user := newVerifyEnv(t)

	if err := svc.Start(user.ID, models.VerificationKindPhone); err != nil {
		t.Fatalf("start falhou: %v", err)
	}
	// vence o TTL sem varredura: a expiração é avaliada na consulta
	challenges.list[0].ExpiresAt = time.Now().Add(-time.Minute)

	if err := svc.Verify(user.ID, models.VerificationKindPhone, sender.lastCode()); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("esperado ErrCodeExpired, veio %v", err)
	}
	if ch := challenges.list[0]; ch.Status != models.ChallengeExpired {
		t.Fatalf("desafio deveria ter expirado preguiçosamente, veio %s", ch.Status)
	}
}

func TestStartKindDesconhecido(t *testing.T) {
	svc, _, _, _, user := newVerifyEnv(t)
	if err := svc.Start(user.ID, "email"); !errors.Is(err, ErrValidation) {
		t.Fatalf("kind desconhecido: esperado ErrValidation, veio %v", err)
	}
}
