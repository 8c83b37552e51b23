package utils

import "testing"

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"entity_type":"simulation","to_status":"APROVADA"}`)
	sig := SignPayload("segredo", body)

	if !VerifySignature("segredo", body, sig) {
		t.Fatal("assinatura válida deveria passar")
	}
	if VerifySignature("outro-segredo", body, sig) {
		t.Fatal("segredo errado não pode validar")
	}
	if VerifySignature("segredo", []byte(`{"alterado":true}`), sig) {
		t.Fatal("corpo adulterado não pode validar")
	}
	if VerifySignature("segredo", body, "") {
		t.Fatal("assinatura vazia não pode validar")
	}
}
