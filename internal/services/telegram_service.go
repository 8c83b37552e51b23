package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

// TelegramService — canal de alerta operacional (quarentena de malware,
// webhooks mortos). Sem token ou chat configurado vira no-op.
type TelegramService struct {
	token   string
	chatID  int64
	baseURL string
	client  *http.Client
}

func NewTelegramService(botToken string, chatID int64) *TelegramService {
	return &TelegramService{
		token:   botToken,
		chatID:  chatID,
		baseURL: fmt.Sprintf("https://api.telegram.org/bot%s", botToken),
		client:  &http.Client{},
	}
}

type tgResp struct {
	Ok          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Alert implementa Alerter.
func (t *TelegramService) Alert(text string) {
	if err := t.sendMessage(t.chatID, text); err != nil {
		log.Printf("[tg][alert][err] %v", err)
	}
}

func (t *TelegramService) sendMessage(chatID int64, text string) error {
	if t == nil || t.token == "" || chatID == 0 {
		log.Printf("[tg][skip] token ou chatID vazio (token? %v chatID=%d)", t != nil && t.token != "", chatID)
		return nil
	}
	body := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	b, _ := json.Marshal(body)
	url := t.baseURL + "/sendMessage"
	req, _ := http.NewRequest("POST", url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	var api tgResp
	_ = json.Unmarshal(respBody, &api)
	if resp.StatusCode != 200 || !api.Ok {
		return fmt.Errorf("telegram sendMessage failed: status=%d ok=%v desc=%s", resp.StatusCode, api.Ok, api.Description)
	}
	return nil
}
