package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lifedigital/internal/middleware"
)

var ErrInvalidIDToken = errors.New("id_token inválido")

const defaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleProfile — o que extraímos do id_token validado.
type GoogleProfile struct {
	Email string
	Name  string
}

// AuthService — troca id_token do Google por um access token próprio.
// DryRun aceita tokens no formato "email|nome" para desenvolvimento local.
type AuthService struct {
	ClientID     string
	TokenInfoURL string
	AccessTTL    time.Duration
	DryRun       bool
	client       *http.Client
}

func NewAuthService(clientID string, dryRun bool) *AuthService {
	return &AuthService{
		ClientID:     clientID,
		TokenInfoURL: defaultTokenInfoURL,
		AccessTTL:    24 * time.Hour,
		DryRun:       dryRun,
		client:       &http.Client{Timeout: 5 * time.Second},
	}
}

// ValidateGoogleToken — valida o id_token contra o endpoint tokeninfo e
// confere audiência e e-mail verificado.
func (s *AuthService) ValidateGoogleToken(idToken string) (*GoogleProfile, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, ErrInvalidIDToken
	}

	if s.DryRun {
		parts := strings.SplitN(idToken, "|", 2)
		name := "Usuário Demo"
		if len(parts) == 2 && parts[1] != "" {
			name = parts[1]
		}
		if !strings.Contains(parts[0], "@") {
			return nil, ErrInvalidIDToken
		}
		log.Printf("[auth][google] dry-run email=%s", parts[0])
		return &GoogleProfile{Email: parts[0], Name: name}, nil
	}

	endpoint := s.TokenInfoURL
	if endpoint == "" {
		endpoint = defaultTokenInfoURL
	}
	resp, err := s.client.Get(endpoint + "?id_token=" + url.QueryEscape(idToken))
	if err != nil {
		return nil, fmt.Errorf("tokeninfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidIDToken
	}

	var info struct {
		Aud           string `json:"aud"`
		Email         string `json:"email"`
		EmailVerified string `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("tokeninfo decode: %w", err)
	}
	if info.Aud != s.ClientID || info.EmailVerified != "true" || info.Email == "" {
		return nil, ErrInvalidIDToken
	}
	return &GoogleProfile{Email: info.Email, Name: info.Name}, nil
}

// IssueAccessToken — JWT HS256 com as claims do middleware.
func (s *AuthService) IssueAccessToken(userID int64) (string, error) {
	claims := &middleware.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.AccessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(middleware.JWTKey)
}
