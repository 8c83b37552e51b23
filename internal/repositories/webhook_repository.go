package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"lifedigital/internal/models"
)

type WebhookRepository interface {
	Enqueue(eventID int64, targetURL string, nextAttemptAt time.Time) error
	ListDue(now time.Time, limit int) ([]*models.WebhookDelivery, error)
	MarkDelivered(id int64) error
	MarkFailed(id int64, attempts int, nextAttemptAt time.Time, lastErr string, dead bool) error
}

type webhookRepository struct {
	DB *sql.DB
}

func NewWebhookRepository(db *sql.DB) WebhookRepository {
	return &webhookRepository{DB: db}
}

func (r *webhookRepository) Enqueue(eventID int64, targetURL string, nextAttemptAt time.Time) error {
	const q = `
		INSERT INTO webhook_deliveries (event_id, target_url, status, attempts, next_attempt_at, created_at)
		VALUES ($1, $2, $3, 0, $4, $5)
		ON CONFLICT (event_id, target_url) DO NOTHING
	`
	if _, err := r.DB.Exec(q, eventID, targetURL, models.DeliveryPending, nextAttemptAt, time.Now()); err != nil {
		return fmt.Errorf("enqueue webhook: %w", err)
	}
	return nil
}

func (r *webhookRepository) ListDue(now time.Time, limit int) ([]*models.WebhookDelivery, error) {
	const q = `
		SELECT id, event_id, target_url, status, attempts, next_attempt_at, last_error, delivered_at, created_at
		FROM webhook_deliveries
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY next_attempt_at ASC
		LIMIT $3
	`
	rows, err := r.DB.Query(q, models.DeliveryPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due webhooks: %w", err)
	}
	defer rows.Close()

	var out []*models.WebhookDelivery
	for rows.Next() {
		var d models.WebhookDelivery
		var lastErr sql.NullString
		if err := rows.Scan(
			&d.ID, &d.EventID, &d.TargetURL, &d.Status, &d.Attempts,
			&d.NextAttemptAt, &lastErr, &d.DeliveredAt, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook delivery: %w", err)
		}
		d.LastError = lastErr.String
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *webhookRepository) MarkDelivered(id int64) error {
	const q = `
		UPDATE webhook_deliveries
		SET status = $1, delivered_at = $2, attempts = attempts + 1
		WHERE id = $3
	`
	if _, err := r.DB.Exec(q, models.DeliveryDelivered, time.Now(), id); err != nil {
		return fmt.Errorf("mark webhook delivered: %w", err)
	}
	return nil
}

func (r *webhookRepository) MarkFailed(id int64, attempts int, nextAttemptAt time.Time, lastErr string, dead bool) error {
	status := models.DeliveryPending
	if dead {
		status = models.DeliveryDead
	}
	const q = `
		UPDATE webhook_deliveries
		SET status = $1, attempts = $2, next_attempt_at = $3, last_error = $4
		WHERE id = $5
	`
	if _, err := r.DB.Exec(q, status, attempts, nextAttemptAt, lastErr, id); err != nil {
		return fmt.Errorf("mark webhook failed: %w", err)
	}
	return nil
}
