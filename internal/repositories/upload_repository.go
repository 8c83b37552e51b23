package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"lifedigital/internal/models"
)

type UploadRepository interface {
	// Create — insere em PRESIGNED com o evento de criação na mesma tx.
	Create(obj *models.UploadObject) (*models.WorkflowEvent, error)

	GetByKey(key string) (*models.UploadObject, error)

	// GetByScanJob — resolve o job devolvido pelo scanner para o objeto.
	GetByScanJob(jobID string) (*models.UploadObject, error)

	// Transition — CAS (status corrente = from) + evento na mesma tx.
	Transition(key, from, to, actor string, payload []byte) (*models.WorkflowEvent, error)

	SetScanJob(key, jobID string) error
	IncrementScanAttempts(key string, nextScanAt time.Time) (int, error)

	// ListScanRetryCandidates — FAILED ainda dentro do orçamento de tentativas.
	ListScanRetryCandidates(now time.Time, maxAttempts, limit int) ([]*models.UploadObject, error)
}

type uploadRepository struct {
	DB *sql.DB
}

func NewUploadRepository(db *sql.DB) UploadRepository {
	return &uploadRepository{DB: db}
}

const uploadColumns = `object_key, user_id, kind, content_type, size_bytes, status, presign_url, presign_expires_at, scan_job_id, scan_attempts, created_at, updated_at`

func (r *uploadRepository) Create(obj *models.UploadObject) (*models.WorkflowEvent, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("create upload: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	obj.Status = models.UploadPresigned
	obj.CreatedAt = now
	obj.UpdatedAt = now
	if _, err := tx.Exec(`
		INSERT INTO upload_objects (object_key, user_id, kind, content_type, size_bytes, status, presign_url, presign_expires_at, scan_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $9)
	`, obj.ObjectKey, obj.UserID, obj.Kind, obj.ContentType, obj.SizeBytes,
		obj.Status, obj.PresignURL, obj.PresignExpiresAt, now,
	); err != nil {
		return nil, fmt.Errorf("insert upload: %w", err)
	}

	ev := &models.WorkflowEvent{
		UserID:     obj.UserID,
		EntityType: models.EntityUpload,
		EntityID:   obj.ObjectKey,
		ToStatus:   models.UploadPresigned,
		Actor:      "user",
	}
	if err := appendEventTx(tx, ev); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create upload: commit: %w", err)
	}
	return ev, nil
}

func (r *uploadRepository) GetByKey(key string) (*models.UploadObject, error) {
	q := `SELECT ` + uploadColumns + ` FROM upload_objects WHERE object_key = $1`
	var o models.UploadObject
	if err := r.DB.QueryRow(q, key).Scan(
		&o.ObjectKey, &o.UserID, &o.Kind, &o.ContentType, &o.SizeBytes, &o.Status,
		&o.PresignURL, &o.PresignExpiresAt, &o.ScanJobID, &o.ScanAttempts,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return &o, nil
}

func (r *uploadRepository) GetByScanJob(jobID string) (*models.UploadObject, error) {
	q := `SELECT ` + uploadColumns + ` FROM upload_objects WHERE scan_job_id = $1`
	var o models.UploadObject
	if err := r.DB.QueryRow(q, jobID).Scan(
		&o.ObjectKey, &o.UserID, &o.Kind, &o.ContentType, &o.SizeBytes, &o.Status,
		&o.PresignURL, &o.PresignExpiresAt, &o.ScanJobID, &o.ScanAttempts,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get upload by scan job: %w", err)
	}
	return &o, nil
}

func (r *uploadRepository) Transition(key, from, to, actor string, payload []byte) (*models.WorkflowEvent, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("upload transition: begin: %w", err)
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRow(`
		UPDATE upload_objects
		SET status = $1, updated_at = $2
		WHERE object_key = $3 AND status = $4
		RETURNING user_id
	`, to, time.Now(), key, from).Scan(&userID)
	if err == sql.ErrNoRows {
		return nil, ErrNoTransition
	}
	if err != nil {
		return nil, fmt.Errorf("upload transition: %w", err)
	}

	ev := &models.WorkflowEvent{
		UserID:     userID,
		EntityType: models.EntityUpload,
		EntityID:   key,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Payload:    payload,
	}
	if err := appendEventTx(tx, ev); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("upload transition: commit: %w", err)
	}
	return ev, nil
}

func (r *uploadRepository) SetScanJob(key, jobID string) error {
	const q = `UPDATE upload_objects SET scan_job_id = $1, updated_at = $2 WHERE object_key = $3`
	if _, err := r.DB.Exec(q, jobID, time.Now(), key); err != nil {
		return fmt.Errorf("set scan job: %w", err)
	}
	return nil
}

func (r *uploadRepository) IncrementScanAttempts(key string, nextScanAt time.Time) (int, error) {
	const q = `
		UPDATE upload_objects
		SET scan_attempts = scan_attempts + 1, next_scan_at = $1, updated_at = $2
		WHERE object_key = $3
		RETURNING scan_attempts
	`
	var attempts int
	if err := r.DB.QueryRow(q, nextScanAt, time.Now(), key).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("increment scan attempts: %w", err)
	}
	return attempts, nil
}

func (r *uploadRepository) ListScanRetryCandidates(now time.Time, maxAttempts, limit int) ([]*models.UploadObject, error) {
	q := `
		SELECT ` + uploadColumns + `
		FROM upload_objects
		WHERE status = $1 AND scan_attempts < $2 AND next_scan_at <= $3
		ORDER BY next_scan_at ASC
		LIMIT $4
	`
	rows, err := r.DB.Query(q, models.UploadFailed, maxAttempts, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list scan retries: %w", err)
	}
	defer rows.Close()

	var out []*models.UploadObject
	for rows.Next() {
		var o models.UploadObject
		if err := rows.Scan(
			&o.ObjectKey, &o.UserID, &o.Kind, &o.ContentType, &o.SizeBytes, &o.Status,
			&o.PresignURL, &o.PresignExpiresAt, &o.ScanJobID, &o.ScanAttempts,
			&o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan upload row: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}
