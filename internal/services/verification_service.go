package services

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"

	"lifedigital/internal/models"
	"lifedigital/internal/repositories"
)

// Parâmetros de segurança do fluxo de OTP.
const (
	maxResendsPerWindow    = 3
	resendWindow           = 10 * time.Minute
	maxConfirmAttempts     = 5
	defaultVerificationTTL = 10 * time.Minute
)

// CodeSender — canal externo de entrega (WhatsApp/SMS); nunca devolvemos o código.
type CodeSender interface {
	SendCode(to, channel, code string) error
}

type VerificationService struct {
	Challenges repositories.ChallengeRepository
	Users      repositories.UserRepository
	Sender     CodeSender
	CodeTTL    time.Duration // 0 = defaultVerificationTTL
}

func NewVerificationService(
	challenges repositories.ChallengeRepository,
	users repositories.UserRepository,
	sender CodeSender,
) *VerificationService {
	return &VerificationService{
		Challenges: challenges,
		Users:      users,
		Sender:     sender,
		CodeTTL:    defaultVerificationTTL,
	}
}

func (s *VerificationService) generateCode() string {
	src := rand.NewSource(time.Now().UnixNano())
	rnd := rand.New(src)
	return fmt.Sprintf("%06d", rnd.Intn(1000000))
}

func (s *VerificationService) ttl() time.Duration {
	if s.CodeTTL <= 0 {
		return defaultVerificationTTL
	}
	return s.CodeTTL
}

// Start — emite um código novo para (usuário, kind). Qualquer desafio ISSUED
// anterior do mesmo kind é expirado na mesma transação (supersede).
func (s *VerificationService) Start(userID int64, kind string) error {
	if kind != models.VerificationKindCPF && kind != models.VerificationKindPhone {
		return fmt.Errorf("%w: kind %q", ErrValidation, kind)
	}
	user, err := s.Users.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}

	// Trottling de reenvio por (usuário, kind).
	since := time.Now().Add(-resendWindow)
	cnt, err := s.Challenges.CountRecentSends(userID, kind, since)
	if err != nil {
		return err
	}
	if cnt >= maxResendsPerWindow {
		return ErrResendThrottled
	}

	code := s.generateCode()
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("bcrypt generate: %w", err)
	}

	now := time.Now()
	ch := &models.VerificationChallenge{
		UserID:    userID,
		Kind:      kind,
		CodeHash:  string(codeHash),
		SentAt:    now,
		ExpiresAt: now.Add(s.ttl()),
	}
	if err := s.Challenges.Issue(ch); err != nil {
		return err
	}

	channel := "whatsapp"
	to := user.PhoneE164
	if kind == models.VerificationKindCPF && to == "" {
		// sem telefone ainda: CPF cai no mesmo canal assim que houver número
		return fmt.Errorf("%w: usuário sem telefone para entrega do código", ErrValidation)
	}
	if err := s.Sender.SendCode(to, channel, code); err != nil {
		return fmt.Errorf("envio do código: %w", err)
	}

	log.Printf("[verify][start] ok user_id=%d kind=%s challenge_id=%d", userID, kind, ch.ID)
	return nil
}

// Verify — confere o código contra o hash, com contagem de tentativas e TTL
// preguiçoso. Reenvio do código correto depois de VERIFIED é idempotente.
func (s *VerificationService) Verify(userID int64, kind, code string) error {
	ch, err := s.Challenges.GetLatest(userID, kind)
	if err != nil {
		return err
	}
	if ch == nil {
		return ErrInvalidCode
	}

	switch ch.Status {
	case models.ChallengeVerified:
		// Retry do cliente com o mesmo código correto: sucesso sem efeito.
		if bcrypt.CompareHashAndPassword([]byte(ch.CodeHash), []byte(code)) == nil {
			return nil
		}
		return ErrInvalidCode
	case models.ChallengeExhausted:
		return ErrTooManyAttempts
	case models.ChallengeExpired:
		return ErrCodeExpired
	}

	// Expiração avaliada na consulta, sem varredura obrigatória.
	if time.Now().After(ch.ExpiresAt) {
		if _, err := s.Challenges.Transition(ch, models.ChallengeExpired, "system:lazy-expire"); err != nil && err != repositories.ErrNoTransition {
			return err
		}
		return ErrCodeExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ch.CodeHash), []byte(code)); err != nil {
		attempts, incErr := s.Challenges.IncrementAttempts(ch.ID)
		if incErr != nil {
			return incErr
		}
		if attempts >= maxConfirmAttempts {
			if _, terr := s.Challenges.Transition(ch, models.ChallengeExhausted, "system:attempts"); terr != nil && terr != repositories.ErrNoTransition {
				return terr
			}
			return ErrTooManyAttempts
		}
		return ErrInvalidCode
	}

	if _, err := s.Challenges.Transition(ch, models.ChallengeVerified, "user"); err != nil {
		if err == repositories.ErrNoTransition {
			// corrida com outro verify; relê e decide pelo estado final
			return s.Verify(userID, kind, code)
		}
		return err
	}
	if err := s.Users.SetAttributeVerified(userID, kind); err != nil {
		return err
	}

	log.Printf("[verify][confirm] ok user_id=%d kind=%s", userID, kind)
	return nil
}

// ExpireStale — passagem explícita de expiração (observabilidade); a
// expiração normal é preguiçosa no Verify.
func (s *VerificationService) ExpireStale() (int, error) {
	n, err := s.Challenges.ExpireStaleIssued(time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[verify][sweep] expirados=%d", n)
	}
	return n, nil
}
