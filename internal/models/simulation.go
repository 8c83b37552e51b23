package models

import (
	"encoding/json"
	"time"
)

// Estados da simulação. CRIADA é o estado inicial antes do score chegar.
const (
	SimCriada         = "CRIADA"
	SimEmAnalise      = "EM_ANALISE"
	SimAprovada       = "APROVADA"
	SimReprovada      = "REPROVADA"
	SimAceiteRecebido = "ACEITE_RECEBIDO"
	SimExpirada       = "EXPIRADA"
	SimRejeitada      = "REJEITADA"
)

// Motivos de estado terminal.
const (
	ReasonInfectedDocument   = "INFECTED_DOCUMENT"
	ReasonScanFailed         = "SCAN_FAILED"
	ReasonVerificationFailed = "VERIFICATION_EXHAUSTED"
	ReasonMargemInsuficiente = "MARGEM_INSUFICIENTE"
	ReasonScoreReprovado     = "SCORE_REPROVADO"
	ReasonScoreIndisponivel  = "SCORE_INDISPONIVEL"
)

type SimulationResult struct {
	CET     float64 `json:"cet"`
	Parcela float64 `json:"parcela"`
	Total   float64 `json:"total"`
}

type Simulation struct {
	ID      string `json:"id"`
	UserID  int64  `json:"user_id"`
	Produto string `json:"produto"`

	// Parâmetros opacos do produto, persistidos como JSONB.
	Parametros json.RawMessage `json:"parametros"`

	// Snapshot de margem fixado na criação; refreshes posteriores não o alteram.
	MarginSnapshotID int64 `json:"marginSnapshotId"`

	// Uploads referenciados (object keys); todos precisam chegar a CLEAN.
	Documentos []string `json:"documentos,omitempty"`

	Status    string            `json:"status"`
	Resultado *SimulationResult `json:"resultado,omitempty"`
	Motivo    string            `json:"motivo,omitempty"`

	// Janela de aceite: APROVADA expira para EXPIRADA depois de ExpiraEm.
	ExpiraEm  *time.Time `json:"expiraEm,omitempty"`
	AceiteEm  *time.Time `json:"aceiteEm,omitempty"`
	TermoPath string     `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal diz se o estado não admite mais transições.
func (s *Simulation) Terminal() bool {
	switch s.Status {
	case SimReprovada, SimAceiteRecebido, SimExpirada, SimRejeitada:
		return true
	}
	return false
}
