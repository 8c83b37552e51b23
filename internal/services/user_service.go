package services

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"lifedigital/internal/models"
	"lifedigital/internal/repositories"
)

var (
	cpfDigits = regexp.MustCompile(`^[0-9]{11}$`)
	phoneE164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	cpfStrip  = strings.NewReplacer(".", "", "-", "")
)

type UserService struct {
	Repo repositories.UserRepository
}

func NewUserService(repo repositories.UserRepository) *UserService {
	return &UserService{Repo: repo}
}

// EnsureUser — login social: reutiliza pelo e-mail ou cria na primeira entrada.
func (s *UserService) EnsureUser(email, name string) (*models.User, error) {
	user, err := s.Repo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	user = &models.User{Email: email, Name: name}
	if err := s.Repo.Create(user); err != nil {
		return nil, err
	}
	log.Printf("[user][create] ok id=%d email=%s", user.ID, email)
	return user, nil
}

func (s *UserService) GetByID(id int64) (*models.User, error) {
	user, err := s.Repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// SetCPF — grava o CPF normalizado e derruba cpf_verified; a confirmação vem
// pelo fluxo de OTP.
func (s *UserService) SetCPF(userID int64, cpf string) (*models.User, error) {
	cpf = cpfStrip.Replace(strings.TrimSpace(cpf))
	if !cpfDigits.MatchString(cpf) {
		return nil, fmt.Errorf("%w: CPF deve ter 11 dígitos", ErrValidation)
	}
	if err := s.Repo.SetCPF(userID, cpf); err != nil {
		return nil, err
	}
	return s.GetByID(userID)
}

// SetPhone — grava o telefone em E.164 e derruba whatsapp_verified.
func (s *UserService) SetPhone(userID int64, phone string) (*models.User, error) {
	phone = strings.TrimSpace(phone)
	if !phoneE164.MatchString(phone) {
		return nil, fmt.Errorf("%w: telefone deve estar em E.164 (+5511...)", ErrValidation)
	}
	if err := s.Repo.SetPhone(userID, phone); err != nil {
		return nil, err
	}
	return s.GetByID(userID)
}
