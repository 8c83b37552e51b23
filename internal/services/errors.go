package services

import "errors"

// Taxonomia estável de erros — os handlers mapeiam cada um para um status HTTP.
var (
	ErrValidation           = errors.New("entrada inválida")
	ErrNotFound             = errors.New("não encontrado")
	ErrInvalidState         = errors.New("operação inválida para o estado atual")
	ErrInvalidCode          = errors.New("código inválido")
	ErrCodeExpired          = errors.New("código expirado")
	ErrTooManyAttempts      = errors.New("tentativas esgotadas")
	ErrResendThrottled      = errors.New("reenvio limitado, aguarde")
	ErrUnsupportedMediaType = errors.New("content-type não permitido para este kind")
	ErrPayloadTooLarge      = errors.New("arquivo acima do limite do kind")
	ErrPresignExpired       = errors.New("capability de upload expirada")
	ErrSourceUnavailable    = errors.New("fonte externa indisponível")
)
