package models

import "time"

// Estados do objeto de upload.
const (
	UploadPresigned = "PRESIGNED"
	UploadUploaded  = "UPLOADED"
	UploadScanning  = "SCANNING"
	UploadClean     = "CLEAN"
	UploadInfected  = "INFECTED"
	UploadFailed    = "FAILED"
)

type UploadObject struct {
	ObjectKey   string    `json:"objectKey"`
	UserID      int64     `json:"user_id"`
	Kind        string    `json:"kind"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"size"`
	Status      string    `json:"status"`

	// Capability de escrita expira; depois disso finalize falha com PresignExpired.
	PresignURL       string    `json:"urlPut,omitempty"`
	PresignExpiresAt time.Time `json:"presignExpiresAt"`

	ScanJobID    string `json:"scanJobId,omitempty"`
	ScanAttempts int    `json:"scanAttempts"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
