package models

import "time"

// Tipos de verificação suportados (variantes, não subclasses).
const (
	VerificationKindCPF   = "cpf"
	VerificationKindPhone = "phone"
)

// Estados do desafio OTP.
const (
	ChallengeIssued    = "ISSUED"
	ChallengeVerified  = "VERIFIED"
	ChallengeExpired   = "EXPIRED"
	ChallengeExhausted = "EXHAUSTED"
)

// VerificationChallenge — um código de uso único por (usuário, kind).
// Guardamos só o hash bcrypt do código.
type VerificationChallenge struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Kind        string     `json:"kind"`
	CodeHash    string     `json:"-"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	SentAt      time.Time  `json:"sent_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}
