package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carrega o HMAC do corpo em todas as chamadas de webhook.
const SignatureHeader = "X-Lifedigital-Signature"

// SignPayload — HMAC-SHA256 em hex; usado na saída (X-Lifedigital-Signature)
// e na validação dos webhooks de entrada.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(secret string, body []byte, signature string) bool {
	expected := SignPayload(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
