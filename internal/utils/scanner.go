package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ScannerClient — antivírus externo. O resultado chega depois via webhook
// (/webhooks/scan); aqui só submetemos o job.
type ScannerClient struct {
	Endpoint    string
	CallbackURL string
	DryRun      bool
	client      *http.Client
}

func NewScannerClient(endpoint, callbackURL string, dryRun bool) *ScannerClient {
	return &ScannerClient{
		Endpoint:    endpoint,
		CallbackURL: callbackURL,
		DryRun:      dryRun,
		client:      &http.Client{},
	}
}

// Submit — agenda a varredura e devolve o jobId do scanner.
func (c *ScannerClient) Submit(objectKey string) (string, error) {
	if c.DryRun {
		jobID := "scan-" + objectKey
		fmt.Printf("[scanner][dry-run] submit key=%s job=%s\n", objectKey, jobID)
		return jobID, nil
	}

	body, _ := json.Marshal(map[string]string{
		"objectKey": objectKey,
		"callback":  c.CallbackURL,
	})
	resp, err := c.client.Post(c.Endpoint+"/scan", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("submit scan: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("submit scan: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("submit scan: parse: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("submit scan: resposta sem jobId")
	}
	return out.JobID, nil
}
