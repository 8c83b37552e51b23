package models

import "time"

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CPF       string    `json:"cpf,omitempty"`
	PhoneE164 string    `json:"phoneE164,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	// Atributos verificados — mudam apenas via transição VERIFIED do desafio.
	CPFVerified      bool `json:"cpfVerified"`
	WhatsappVerified bool `json:"whatsappVerified"`
}

type GoogleAuthRequest struct {
	IDToken string `json:"idToken"`
}
