package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"lifedigital/internal/models"
)

// MarginFigures — números autoritativos da fonte de margem (averbadora).
type MarginFigures struct {
	Bruto     int64                       `json:"bruto"`
	Utilizado int64                       `json:"utilizado"`
	Historico []models.MarginHistoryEntry `json:"historico,omitempty"`
}

type MarginSourceClient struct {
	Endpoint string
	APIKey   string
	DryRun   bool
	client   *http.Client
}

func NewMarginSourceClient(endpoint, apiKey string, dryRun bool) *MarginSourceClient {
	return &MarginSourceClient{Endpoint: endpoint, APIKey: apiKey, DryRun: dryRun, client: &http.Client{}}
}

func (c *MarginSourceClient) FetchMargin(ctx context.Context, userID int64, cpf string) (*MarginFigures, error) {
	if c.DryRun {
		return &MarginFigures{Bruto: 600000, Utilizado: 76000}, nil
	}

	url := fmt.Sprintf("%s/margens?cpf=%s", c.Endpoint, cpf)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch margin: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch margin: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out MarginFigures
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("fetch margin: parse: %w", err)
	}
	return &out, nil
}
