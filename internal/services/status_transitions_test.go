package services

import (
	"testing"

	"lifedigital/internal/models"
)

func TestTransicoesDeSimulacao(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{models.SimCriada, models.SimEmAnalise, true},
		{models.SimCriada, models.SimReprovada, true},
		{models.SimCriada, models.SimRejeitada, true},
		{models.SimCriada, models.SimAprovada, false},
		{models.SimEmAnalise, models.SimAprovada, true},
		{models.SimEmAnalise, models.SimCriada, false},
		{models.SimAprovada, models.SimAceiteRecebido, true},
		{models.SimAprovada, models.SimExpirada, true},
		{models.SimAceiteRecebido, models.SimExpirada, false},
		{models.SimExpirada, models.SimAprovada, false},
		{models.SimRejeitada, models.SimEmAnalise, false},
		{"DESCONHECIDO", models.SimAprovada, false},
	}
	for _, c := range cases {
		if got := canTransition(c.from, c.to, SimulationTransitions); got != c.ok {
			t.Errorf("simulação %s -> %s: esperado %v, veio %v", c.from, c.to, c.ok, got)
		}
	}
}

func TestTransicoesDeUpload(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{models.UploadPresigned, models.UploadUploaded, true},
		{models.UploadPresigned, models.UploadScanning, false},
		{models.UploadUploaded, models.UploadScanning, true},
		{models.UploadScanning, models.UploadClean, true},
		{models.UploadScanning, models.UploadInfected, true},
		{models.UploadScanning, models.UploadFailed, true},
		{models.UploadFailed, models.UploadScanning, true},
		{models.UploadClean, models.UploadScanning, false},
		{models.UploadInfected, models.UploadClean, false},
	}
	for _, c := range cases {
		if got := canTransition(c.from, c.to, UploadTransitions); got != c.ok {
			t.Errorf("upload %s -> %s: esperado %v, veio %v", c.from, c.to, c.ok, got)
		}
	}
}

func TestTransicoesDeDesafio(t *testing.T) {
	terminais := []string{models.ChallengeVerified, models.ChallengeExpired, models.ChallengeExhausted}
	for _, to := range terminais {
		if !canTransition(models.ChallengeIssued, to, ChallengeTransitions) {
			t.Errorf("desafio ISSUED -> %s deveria ser permitido", to)
		}
	}
	for _, from := range terminais {
		for _, to := range append(terminais, models.ChallengeIssued) {
			if canTransition(from, to, ChallengeTransitions) {
				t.Errorf("desafio %s -> %s não deveria ser permitido", from, to)
			}
		}
	}
}
