package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"lifedigital/internal/models"

	"github.com/lib/pq"
)

// EventRepository — log append-only de transições (outbox).
// Nunca há UPDATE de conteúdo; só dispatched_at é marcado pelo despachante.
type EventRepository interface {
	GetByID(id int64) (*models.WorkflowEvent, error)
	ListUndispatched(limit int) ([]*models.WorkflowEvent, error)
	MarkDispatched(ids []int64) error
	ListByUserAfter(userID, afterID int64, limit int) ([]*models.WorkflowEvent, error)
}

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{DB: db}
}

const eventColumns = `id, user_id, entity_type, entity_id, entity_seq, from_status, to_status, actor, payload, created_at`

// appendEventTx — insere o evento na MESMA transação da mudança de estado.
// entity_seq é monotônico por entidade (MAX+1 dentro da tx).
func appendEventTx(tx *sql.Tx, ev *models.WorkflowEvent) error {
	const q = `
		INSERT INTO workflow_events (user_id, entity_type, entity_id, entity_seq, from_status, to_status, actor, payload, created_at)
		VALUES ($1, $2, $3,
			(SELECT COALESCE(MAX(entity_seq), 0) + 1 FROM workflow_events WHERE entity_type = $2 AND entity_id = $3),
			$4, $5, $6, $7, $8)
		RETURNING id, entity_seq
	`
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	var payload interface{}
	if len(ev.Payload) > 0 {
		payload = []byte(ev.Payload)
	}
	if err := tx.QueryRow(q,
		ev.UserID, ev.EntityType, ev.EntityID,
		ev.FromStatus, ev.ToStatus, ev.Actor, payload, ev.CreatedAt,
	).Scan(&ev.ID, &ev.EntitySeq); err != nil {
		return fmt.Errorf("append workflow event: %w", err)
	}
	return nil
}

func scanEvent(row interface{ Scan(...interface{}) error }) (*models.WorkflowEvent, error) {
	var ev models.WorkflowEvent
	var payload []byte
	if err := row.Scan(
		&ev.ID, &ev.UserID, &ev.EntityType, &ev.EntityID, &ev.EntitySeq,
		&ev.FromStatus, &ev.ToStatus, &ev.Actor, &payload, &ev.CreatedAt,
	); err != nil {
		return nil, err
	}
	ev.Payload = payload
	return &ev, nil
}

func (r *eventRepository) GetByID(id int64) (*models.WorkflowEvent, error) {
	q := `SELECT ` + eventColumns + ` FROM workflow_events WHERE id = $1`
	ev, err := scanEvent(r.DB.QueryRow(q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (r *eventRepository) ListUndispatched(limit int) ([]*models.WorkflowEvent, error) {
	q := `
		SELECT ` + eventColumns + `
		FROM workflow_events
		WHERE dispatched_at IS NULL
		ORDER BY id ASC
		LIMIT $1
	`
	rows, err := r.DB.Query(q, limit)
	if err != nil {
		return nil, fmt.Errorf("list undispatched events: %w", err)
	}
	defer rows.Close()

	var events []*models.WorkflowEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *eventRepository) MarkDispatched(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `UPDATE workflow_events SET dispatched_at = $1 WHERE id = ANY($2)`
	if _, err := r.DB.Exec(q, time.Now(), pq.Array(ids)); err != nil {
		return fmt.Errorf("mark events dispatched: %w", err)
	}
	return nil
}

func (r *eventRepository) ListByUserAfter(userID, afterID int64, limit int) ([]*models.WorkflowEvent, error) {
	q := `
		SELECT ` + eventColumns + `
		FROM workflow_events
		WHERE user_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`
	rows, err := r.DB.Query(q, userID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events by user: %w", err)
	}
	defer rows.Close()

	var events []*models.WorkflowEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
