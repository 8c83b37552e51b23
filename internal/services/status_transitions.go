package services

import "lifedigital/internal/models"

// Transições permitidas por máquina de estados.
// NB: REJEITADA pode ser atingida de qualquer estado não terminal
// (documento infectado / verificação esgotada).

var SimulationTransitions = map[string]map[string]bool{
	models.SimCriada: {
		models.SimEmAnalise: true,
		models.SimReprovada: true,
		models.SimRejeitada: true,
	},
	models.SimEmAnalise: {
		models.SimAprovada:  true,
		models.SimReprovada: true,
		models.SimRejeitada: true,
	},
	models.SimAprovada: {
		models.SimAceiteRecebido: true,
		models.SimExpirada:       true,
		models.SimRejeitada:      true,
	},
	models.SimReprovada:      {},
	models.SimAceiteRecebido: {},
	models.SimExpirada:       {},
	models.SimRejeitada:      {},
}

var UploadTransitions = map[string]map[string]bool{
	models.UploadPresigned: {models.UploadUploaded: true},
	models.UploadUploaded:  {models.UploadScanning: true},
	models.UploadScanning: {
		models.UploadClean:    true,
		models.UploadInfected: true,
		models.UploadFailed:   true,
	},
	// FAILED volta para SCANNING enquanto houver orçamento de retry.
	models.UploadFailed:   {models.UploadScanning: true},
	models.UploadClean:    {},
	models.UploadInfected: {},
}

var ChallengeTransitions = map[string]map[string]bool{
	models.ChallengeIssued: {
		models.ChallengeVerified:  true,
		models.ChallengeExpired:   true,
		models.ChallengeExhausted: true,
	},
	models.ChallengeVerified:  {},
	models.ChallengeExpired:   {},
	models.ChallengeExhausted: {},
}

func canTransition(current, to string, table map[string]map[string]bool) bool {
	nexts, ok := table[current]
	if !ok {
		return false
	}
	return nexts[to]
}
