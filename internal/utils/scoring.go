package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"lifedigital/internal/models"
)

// ScoreDecision — veredito do motor de crédito externo.
type ScoreDecision struct {
	Approved  bool                     `json:"approved"`
	Resultado *models.SimulationResult `json:"resultado,omitempty"`
	Motivo    string                   `json:"motivo,omitempty"`
}

// ScoringClient — motor de score externo; em dry-run aplica tabela Price com
// CET fixo para ter resultados determinísticos em desenvolvimento.
type ScoringClient struct {
	Endpoint string
	DryRun   bool
	client   *http.Client
}

func NewScoringClient(endpoint string, dryRun bool) *ScoringClient {
	return &ScoringClient{Endpoint: endpoint, DryRun: dryRun, client: &http.Client{}}
}

func (c *ScoringClient) Score(ctx context.Context, produto string, parametros json.RawMessage, snapshot *models.MarginSnapshot) (*ScoreDecision, error) {
	if c.DryRun {
		return c.scoreDryRun(parametros)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"produto":    produto,
		"parametros": parametros,
		"margem": map[string]int64{
			"bruto":     snapshot.Bruto,
			"utilizado": snapshot.Utilizado,
		},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("score request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("score: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out ScoreDecision
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("score: parse: %w", err)
	}
	return &out, nil
}

func (c *ScoringClient) scoreDryRun(parametros json.RawMessage) (*ScoreDecision, error) {
	var p struct {
		Valor float64 `json:"valor"`
		Prazo int     `json:"prazo"`
	}
	if err := json.Unmarshal(parametros, &p); err != nil || p.Valor <= 0 || p.Prazo <= 0 {
		return &ScoreDecision{Approved: false, Motivo: models.ReasonScoreReprovado}, nil
	}

	const cet = 0.023
	fator := cet / (1 - math.Pow(1+cet, -float64(p.Prazo)))
	parcela := math.Round(p.Valor*fator*100) / 100
	total := math.Round(parcela*float64(p.Prazo)*100) / 100

	return &ScoreDecision{
		Approved: true,
		Resultado: &models.SimulationResult{
			CET:     cet,
			Parcela: parcela,
			Total:   total,
		},
	}, nil
}
