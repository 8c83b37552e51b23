package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"lifedigital/internal/models"

	"github.com/lib/pq"
)

// SimulationUpdate — campos opcionais gravados junto com a transição.
type SimulationUpdate struct {
	Resultado *models.SimulationResult
	Motivo    string
	ExpiraEm  *time.Time
	AceiteEm  *time.Time
	TermoPath string
}

type SimulationRepository interface {
	// Create — insere em CRIADA com o evento de criação na mesma tx.
	Create(sim *models.Simulation) (*models.WorkflowEvent, error)

	GetByID(id string) (*models.Simulation, error)
	ListActiveByUser(userID int64) ([]*models.Simulation, error)
	ListActiveByDocument(objectKey string) ([]*models.Simulation, error)
	ListApprovedExpired(now time.Time, limit int) ([]*models.Simulation, error)

	// Transition — CAS sobre o status + evento na mesma tx.
	Transition(id, from, to string, upd SimulationUpdate, actor string) (*models.WorkflowEvent, error)
}

type simulationRepository struct {
	DB *sql.DB
}

func NewSimulationRepository(db *sql.DB) SimulationRepository {
	return &simulationRepository{DB: db}
}

const simulationColumns = `id, user_id, produto, parametros, margin_snapshot_id, documentos, status, resultado, motivo, expira_em, aceite_em, termo_path, created_at, updated_at`

var simTerminalStates = []string{
	models.SimReprovada, models.SimAceiteRecebido, models.SimExpirada, models.SimRejeitada,
}

func (r *simulationRepository) Create(sim *models.Simulation) (*models.WorkflowEvent, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("create simulation: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	sim.Status = models.SimCriada
	sim.CreatedAt = now
	sim.UpdatedAt = now
	if _, err := tx.Exec(`
		INSERT INTO simulations (id, user_id, produto, parametros, margin_snapshot_id, documentos, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, sim.ID, sim.UserID, sim.Produto, []byte(sim.Parametros), sim.MarginSnapshotID,
		pq.Array(sim.Documentos), sim.Status, now,
	); err != nil {
		return nil, fmt.Errorf("insert simulation: %w", err)
	}

	ev := &models.WorkflowEvent{
		UserID:     sim.UserID,
		EntityType: models.EntitySimulation,
		EntityID:   sim.ID,
		ToStatus:   models.SimCriada,
		Actor:      "user",
	}
	if err := appendEventTx(tx, ev); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create simulation: commit: %w", err)
	}
	return ev, nil
}

func scanSimulation(row interface{ Scan(...interface{}) error }) (*models.Simulation, error) {
	var s models.Simulation
	var parametros, resultado []byte
	var motivo, termoPath sql.NullString
	if err := row.Scan(
		&s.ID, &s.UserID, &s.Produto, &parametros, &s.MarginSnapshotID,
		pq.Array(&s.Documentos), &s.Status, &resultado, &motivo,
		&s.ExpiraEm, &s.AceiteEm, &termoPath, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Parametros = parametros
	s.Motivo = motivo.String
	s.TermoPath = termoPath.String
	if len(resultado) > 0 {
		var res models.SimulationResult
		if err := json.Unmarshal(resultado, &res); err != nil {
			return nil, fmt.Errorf("decode resultado: %w", err)
		}
		s.Resultado = &res
	}
	return &s, nil
}

func (r *simulationRepository) GetByID(id string) (*models.Simulation, error) {
	q := `SELECT ` + simulationColumns + ` FROM simulations WHERE id = $1`
	sim, err := scanSimulation(r.DB.QueryRow(q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get simulation: %w", err)
	}
	return sim, nil
}

func (r *simulationRepository) listWhere(where string, args ...interface{}) ([]*models.Simulation, error) {
	q := `SELECT ` + simulationColumns + ` FROM simulations WHERE ` + where + ` ORDER BY created_at ASC`
	rows, err := r.DB.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list simulations: %w", err)
	}
	defer rows.Close()

	var out []*models.Simulation
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulation: %w", err)
		}
		out = append(out, sim)
	}
	return out, rows.Err()
}

func (r *simulationRepository) ListActiveByUser(userID int64) ([]*models.Simulation, error) {
	return r.listWhere(`user_id = $1 AND NOT (status = ANY($2))`, userID, pq.Array(simTerminalStates))
}

func (r *simulationRepository) ListActiveByDocument(objectKey string) ([]*models.Simulation, error) {
	return r.listWhere(`$1 = ANY(documentos) AND NOT (status = ANY($2))`, objectKey, pq.Array(simTerminalStates))
}

func (r *simulationRepository) ListApprovedExpired(now time.Time, limit int) ([]*models.Simulation, error) {
	q := `
		SELECT ` + simulationColumns + `
		FROM simulations
		WHERE status = $1 AND expira_em IS NOT NULL AND expira_em < $2
		ORDER BY expira_em ASC
		LIMIT $3
	`
	rows, err := r.DB.Query(q, models.SimAprovada, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list approved expired: %w", err)
	}
	defer rows.Close()

	var out []*models.Simulation
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulation: %w", err)
		}
		out = append(out, sim)
	}
	return out, rows.Err()
}

func (r *simulationRepository) Transition(id, from, to string, upd SimulationUpdate, actor string) (*models.WorkflowEvent, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("simulation transition: begin: %w", err)
	}
	defer tx.Rollback()

	var resultado []byte
	if upd.Resultado != nil {
		resultado, err = json.Marshal(upd.Resultado)
		if err != nil {
			return nil, fmt.Errorf("encode resultado: %w", err)
		}
	}

	var userID int64
	err = tx.QueryRow(`
		UPDATE simulations
		SET status = $1,
		    resultado = COALESCE($2, resultado),
		    motivo = COALESCE(NULLIF($3, ''), motivo),
		    expira_em = COALESCE($4, expira_em),
		    aceite_em = COALESCE($5, aceite_em),
		    termo_path = COALESCE(NULLIF($6, ''), termo_path),
		    updated_at = $7
		WHERE id = $8 AND status = $9
		RETURNING user_id
	`, to, resultado, upd.Motivo, upd.ExpiraEm, upd.AceiteEm, upd.TermoPath, time.Now(), id, from).Scan(&userID)
	if err == sql.ErrNoRows {
		return nil, ErrNoTransition
	}
	if err != nil {
		return nil, fmt.Errorf("simulation transition: %w", err)
	}

	var payload []byte
	if upd.Resultado != nil || upd.Motivo != "" {
		payload, _ = json.Marshal(map[string]interface{}{
			"resultado": upd.Resultado,
			"motivo":    upd.Motivo,
		})
	}
	ev := &models.WorkflowEvent{
		UserID:     userID,
		EntityType: models.EntitySimulation,
		EntityID:   id,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Payload:    payload,
	}
	if err := appendEventTx(tx, ev); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("simulation transition: commit: %w", err)
	}
	return ev, nil
}
