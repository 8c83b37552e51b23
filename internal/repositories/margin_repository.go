package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"lifedigital/internal/models"
)

type MarginRepository interface {
	GetCurrent(userID int64) (*models.MarginSnapshot, error)
	GetByID(id int64) (*models.MarginSnapshot, error)
	History(userID int64, limit int) ([]models.MarginHistoryEntry, error)

	// Swap — troca atômica do snapshot corrente: CAS na versão anterior,
	// snapshot antigo vai para o histórico, evento na mesma tx.
	// prevVersion = 0 quando não há snapshot anterior.
	Swap(userID int64, next *models.MarginSnapshot, prevVersion int64) (*models.WorkflowEvent, error)
}

type marginRepository struct {
	DB *sql.DB
}

func NewMarginRepository(db *sql.DB) MarginRepository {
	return &marginRepository{DB: db}
}

const marginColumns = `id, user_id, bruto, utilizado, total_disponivel, version, atualizado_em`

func (r *marginRepository) scanSnapshot(row *sql.Row) (*models.MarginSnapshot, error) {
	var m models.MarginSnapshot
	if err := row.Scan(
		&m.ID, &m.UserID, &m.Bruto, &m.Utilizado, &m.TotalDisponivel, &m.Version, &m.AtualizadoEm,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan margin snapshot: %w", err)
	}
	return &m, nil
}

func (r *marginRepository) GetCurrent(userID int64) (*models.MarginSnapshot, error) {
	q := `SELECT ` + marginColumns + ` FROM margin_snapshots WHERE user_id = $1 AND is_current`
	return r.scanSnapshot(r.DB.QueryRow(q, userID))
}

func (r *marginRepository) GetByID(id int64) (*models.MarginSnapshot, error) {
	q := `SELECT ` + marginColumns + ` FROM margin_snapshots WHERE id = $1`
	return r.scanSnapshot(r.DB.QueryRow(q, id))
}

func (r *marginRepository) History(userID int64, limit int) ([]models.MarginHistoryEntry, error) {
	const q = `
		SELECT mes, valor
		FROM margin_history
		WHERE user_id = $1
		ORDER BY mes ASC
		LIMIT $2
	`
	rows, err := r.DB.Query(q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("margin history: %w", err)
	}
	defer rows.Close()

	var out []models.MarginHistoryEntry
	for rows.Next() {
		var e models.MarginHistoryEntry
		if err := rows.Scan(&e.Mes, &e.Valor); err != nil {
			return nil, fmt.Errorf("scan margin history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *marginRepository) Swap(userID int64, next *models.MarginSnapshot, prevVersion int64) (*models.WorkflowEvent, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("margin swap: begin: %w", err)
	}
	defer tx.Rollback()

	if prevVersion > 0 {
		// CAS: só desativa o snapshot que vimos; refresh concorrente perde.
		var prev models.MarginSnapshot
		err := tx.QueryRow(`
			UPDATE margin_snapshots
			SET is_current = FALSE
			WHERE user_id = $1 AND is_current AND version = $2
			RETURNING id, bruto, utilizado, total_disponivel, atualizado_em
		`, userID, prevVersion).Scan(&prev.ID, &prev.Bruto, &prev.Utilizado, &prev.TotalDisponivel, &prev.AtualizadoEm)
		if err == sql.ErrNoRows {
			return nil, ErrNoTransition
		}
		if err != nil {
			return nil, fmt.Errorf("margin swap: retire current: %w", err)
		}

		// Histórico mensal append-only; o mês do snapshot anterior é consolidado.
		mes := prev.AtualizadoEm.Format("2006-01")
		if _, err := tx.Exec(`
			INSERT INTO margin_history (user_id, mes, valor, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, mes) DO UPDATE SET valor = EXCLUDED.valor
		`, userID, mes, prev.TotalDisponivel, time.Now()); err != nil {
			return nil, fmt.Errorf("margin swap: history: %w", err)
		}
	}

	next.UserID = userID
	next.Version = prevVersion + 1
	next.TotalDisponivel = next.Bruto - next.Utilizado
	if next.AtualizadoEm.IsZero() {
		next.AtualizadoEm = time.Now()
	}
	if err := tx.QueryRow(`
		INSERT INTO margin_snapshots (user_id, bruto, utilizado, total_disponivel, version, atualizado_em, is_current)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id
	`, userID, next.Bruto, next.Utilizado, next.TotalDisponivel, next.Version, next.AtualizadoEm).Scan(&next.ID); err != nil {
		return nil, fmt.Errorf("margin swap: insert: %w", err)
	}

	ev := &models.WorkflowEvent{
		UserID:     userID,
		EntityType: models.EntityMargin,
		EntityID:   fmt.Sprintf("%d", userID),
		FromStatus: fmt.Sprintf("v%d", prevVersion),
		ToStatus:   fmt.Sprintf("v%d", next.Version),
		Actor:      "system:refresh",
	}
	if err := appendEventTx(tx, ev); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("margin swap: commit: %w", err)
	}
	return ev, nil
}
