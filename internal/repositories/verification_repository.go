package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"lifedigital/internal/models"
)

type ChallengeRepository interface {
	// Issue — expira qualquer desafio ISSUED do mesmo (usuário, kind) e cria o
	// novo, com os eventos correspondentes, tudo numa transação.
	Issue(ch *models.VerificationChallenge) error

	GetActive(userID int64, kind string) (*models.VerificationChallenge, error)
	GetLatest(userID int64, kind string) (*models.VerificationChallenge, error)
	CountRecentSends(userID int64, kind string, since time.Time) (int, error)
	IncrementAttempts(id int64) (int, error)

	// Transition — CAS sobre o status corrente + evento na mesma tx.
	Transition(ch *models.VerificationChallenge, to, actor string) (*models.WorkflowEvent, error)

	// ExpireStaleIssued — varredura explícita de desafios vencidos (observabilidade).
	ExpireStaleIssued(now time.Time) (int, error)
}

type challengeRepository struct {
	DB *sql.DB
}

func NewChallengeRepository(db *sql.DB) ChallengeRepository {
	return &challengeRepository{DB: db}
}

const challengeColumns = `id, user_id, kind, code_hash, status, attempts, sent_at, expires_at, verified_at`

func (r *challengeRepository) Issue(ch *models.VerificationChallenge) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("issue challenge: begin: %w", err)
	}
	defer tx.Rollback()

	// Supersede: no máximo um ISSUED por (usuário, kind).
	rows, err := tx.Query(`
		UPDATE verification_challenges
		SET status = $1
		WHERE user_id = $2 AND kind = $3 AND status = $4
		RETURNING id
	`, models.ChallengeExpired, ch.UserID, ch.Kind, models.ChallengeIssued)
	if err != nil {
		return fmt.Errorf("supersede challenges: %w", err)
	}
	var superseded []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan superseded id: %w", err)
		}
		superseded = append(superseded, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("supersede challenges: %w", err)
	}

	for _, id := range superseded {
		if err := appendEventTx(tx, &models.WorkflowEvent{
			UserID:     ch.UserID,
			EntityType: models.EntityVerification,
			EntityID:   fmt.Sprintf("%d", id),
			FromStatus: models.ChallengeIssued,
			ToStatus:   models.ChallengeExpired,
			Actor:      "system:supersede",
		}); err != nil {
			return err
		}
	}

	ch.Status = models.ChallengeIssued
	if err := tx.QueryRow(`
		INSERT INTO verification_challenges (user_id, kind, code_hash, status, attempts, sent_at, expires_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		RETURNING id
	`, ch.UserID, ch.Kind, ch.CodeHash, ch.Status, ch.SentAt, ch.ExpiresAt).Scan(&ch.ID); err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}

	if err := appendEventTx(tx, &models.WorkflowEvent{
		UserID:     ch.UserID,
		EntityType: models.EntityVerification,
		EntityID:   fmt.Sprintf("%d", ch.ID),
		ToStatus:   models.ChallengeIssued,
		Actor:      "user",
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("issue challenge: commit: %w", err)
	}
	return nil
}

func (r *challengeRepository) scanChallenge(row *sql.Row) (*models.VerificationChallenge, error) {
	var v models.VerificationChallenge
	if err := row.Scan(
		&v.ID, &v.UserID, &v.Kind, &v.CodeHash, &v.Status,
		&v.Attempts, &v.SentAt, &v.ExpiresAt, &v.VerifiedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan challenge: %w", err)
	}
	return &v, nil
}

func (r *challengeRepository) GetActive(userID int64, kind string) (*models.VerificationChallenge, error) {
	q := `
		SELECT ` + challengeColumns + `
		FROM verification_challenges
		WHERE user_id = $1 AND kind = $2 AND status = $3
		ORDER BY sent_at DESC
		LIMIT 1
	`
	return r.scanChallenge(r.DB.QueryRow(q, userID, kind, models.ChallengeIssued))
}

func (r *challengeRepository) GetLatest(userID int64, kind string) (*models.VerificationChallenge, error) {
	q := `
		SELECT ` + challengeColumns + `
		FROM verification_challenges
		WHERE user_id = $1 AND kind = $2
		ORDER BY sent_at DESC
		LIMIT 1
	`
	return r.scanChallenge(r.DB.QueryRow(q, userID, kind))
}

func (r *challengeRepository) CountRecentSends(userID int64, kind string, since time.Time) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM verification_challenges
		WHERE user_id = $1 AND kind = $2 AND sent_at >= $3
	`
	var c int
	if err := r.DB.QueryRow(q, userID, kind, since).Scan(&c); err != nil {
		return 0, fmt.Errorf("count recent sends: %w", err)
	}
	return c, nil
}

func (r *challengeRepository) IncrementAttempts(id int64) (int, error) {
	const q = `
		UPDATE verification_challenges
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRow(q, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *challengeRepository) Transition(ch *models.VerificationChallenge, to, actor string) (*models.WorkflowEvent, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("challenge transition: begin: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if to == models.ChallengeVerified {
		now := time.Now()
		res, err = tx.Exec(`
			UPDATE verification_challenges SET status = $1, verified_at = $2 WHERE id = $3 AND status = $4
		`, to, now, ch.ID, ch.Status)
		ch.VerifiedAt = &now
	} else {
		res, err = tx.Exec(`
			UPDATE verification_challenges SET status = $1 WHERE id = $2 AND status = $3
		`, to, ch.ID, ch.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("challenge transition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("challenge transition: rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNoTransition
	}

	ev := &models.WorkflowEvent{
		UserID:     ch.UserID,
		EntityType: models.EntityVerification,
		EntityID:   fmt.Sprintf("%d", ch.ID),
		FromStatus: ch.Status,
		ToStatus:   to,
		Actor:      actor,
	}
	if err := appendEventTx(tx, ev); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("challenge transition: commit: %w", err)
	}
	ch.Status = to
	return ev, nil
}

func (r *challengeRepository) ExpireStaleIssued(now time.Time) (int, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("expire stale: begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		UPDATE verification_challenges
		SET status = $1
		WHERE status = $2 AND expires_at < $3
		RETURNING id, user_id
	`, models.ChallengeExpired, models.ChallengeIssued, now)
	if err != nil {
		return 0, fmt.Errorf("expire stale: %w", err)
	}
	type pair struct {
		id     int64
		userID int64
	}
	var expired []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.id, &p.userID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("expire stale: scan: %w", err)
		}
		expired = append(expired, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("expire stale: %w", err)
	}

	for _, p := range expired {
		if err := appendEventTx(tx, &models.WorkflowEvent{
			UserID:     p.userID,
			EntityType: models.EntityVerification,
			EntityID:   fmt.Sprintf("%d", p.id),
			FromStatus: models.ChallengeIssued,
			ToStatus:   models.ChallengeExpired,
			Actor:      "system:sweep",
		}); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("expire stale: commit: %w", err)
	}
	return len(expired), nil
}
