package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"lifedigital/internal/models"
)

type UserRepository interface {
	Create(user *models.User) error
	GetByID(id int64) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	SetCPF(userID int64, cpf string) error
	SetPhone(userID int64, phone string) error

	// SetAttributeVerified — liga o atributo correspondente ao kind do desafio.
	SetAttributeVerified(userID int64, kind string) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `id, email, name, cpf, phone_e164, cpf_verified, whatsapp_verified, created_at`

func (r *userRepository) Create(user *models.User) error {
	const q = `
		INSERT INTO users (email, name, cpf, phone_e164, cpf_verified, whatsapp_verified, created_at)
		VALUES ($1, $2, $3, $4, FALSE, FALSE, $5)
		RETURNING id
	`
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if err := r.DB.QueryRow(q,
		user.Email, user.Name, user.CPF, user.PhoneE164, user.CreatedAt,
	).Scan(&user.ID); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *userRepository) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.CPF, &u.PhoneE164,
		&u.CPFVerified, &u.WhatsappVerified, &u.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *userRepository) GetByID(id int64) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.DB.QueryRow(q, id))
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.DB.QueryRow(q, email))
}

func (r *userRepository) SetCPF(userID int64, cpf string) error {
	// Trocar o CPF derruba a verificação anterior.
	const q = `UPDATE users SET cpf = $1, cpf_verified = FALSE WHERE id = $2`
	if _, err := r.DB.Exec(q, cpf, userID); err != nil {
		return fmt.Errorf("set cpf: %w", err)
	}
	return nil
}

func (r *userRepository) SetPhone(userID int64, phone string) error {
	const q = `UPDATE users SET phone_e164 = $1, whatsapp_verified = FALSE WHERE id = $2`
	if _, err := r.DB.Exec(q, phone, userID); err != nil {
		return fmt.Errorf("set phone: %w", err)
	}
	return nil
}

func (r *userRepository) SetAttributeVerified(userID int64, kind string) error {
	var column string
	switch kind {
	case models.VerificationKindCPF:
		column = "cpf_verified"
	case models.VerificationKindPhone:
		column = "whatsapp_verified"
	default:
		return fmt.Errorf("kind de verificação desconhecido: %q", kind)
	}
	q := fmt.Sprintf(`UPDATE users SET %s = TRUE WHERE id = $1`, column)
	if _, err := r.DB.Exec(q, userID); err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	return nil
}
