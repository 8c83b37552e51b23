package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// WhatsAppClient — gateway externo de entrega de OTP (WhatsApp/SMS).
type WhatsAppClient struct {
	ApiKey  string
	Sender  string // opcional
	BaseURL string
	DryRun  bool
}

type SendCodeResponse struct {
	Code int `json:"code"`
	Data struct {
		MessageID string `json:"messageId"`
	} `json:"data"`
}

func NewWhatsAppClient(apiKey, sender, baseURL string, dryRun bool) *WhatsAppClient {
	if baseURL == "" {
		baseURL = "https://gateway.lifedigital.com.br/v1/messages/send"
	}
	return &WhatsAppClient{ApiKey: apiKey, Sender: sender, BaseURL: baseURL, DryRun: dryRun}
}

// SendCode — envia o código de verificação (ou simula em dry-run).
func (c *WhatsAppClient) SendCode(to, channel, code string) error {
	if c.DryRun || c.ApiKey == "" || c.ApiKey == "dry-run" {
		fmt.Printf("[whatsapp][dry-run] to=%s channel=%s code=%s\n", to, channel, code)
		return nil
	}

	text := fmt.Sprintf("Life Digital: seu código de verificação é %s. Não compartilhe.", code)

	form := url.Values{
		"apiKey":    {c.ApiKey},
		"recipient": {to},
		"channel":   {channel},
		"text":      {text},
	}
	if c.Sender != "" {
		form.Set("from", c.Sender)
	}

	resp, err := http.PostForm(c.BaseURL, form)
	if err != nil {
		return fmt.Errorf("send code request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var result SendCodeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("gateway returned error code: %d", result.Code)
	}
	return nil
}
