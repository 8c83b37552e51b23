package models

import "time"

// MarginSnapshot — visão corrente da margem consignável do usuário.
// Invariante: Utilizado <= Bruto; TotalDisponivel = Bruto - Utilizado.
// Valores em centavos.
type MarginSnapshot struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Bruto           int64     `json:"bruto"`
	Utilizado       int64     `json:"utilizado"`
	TotalDisponivel int64     `json:"totalDisponivel"`
	Version         int64     `json:"version"`
	AtualizadoEm    time.Time `json:"atualizadoEm"`

	// Preenchido pelo serviço quando devolvemos dado vencido por indisponibilidade da fonte.
	Stale bool `json:"stale,omitempty"`
}

// Entrada do histórico mensal (append-only, ordenado por período).
type MarginHistoryEntry struct {
	Mes   string `json:"mes"` // "2025-10"
	Valor int64  `json:"valor"`
}
