package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func RandomHex(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 16
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewObjectKey — chave de objeto por kind, ex.: "contracheques/2026/08/ab12...jpg".
func NewObjectKey(kind, ext string) (string, error) {
	suffix, err := RandomHex(12)
	if err != nil {
		return "", err
	}
	now := time.Now()
	return fmt.Sprintf("%ss/%04d/%02d/%s%s", kind, now.Year(), int(now.Month()), suffix, ext), nil
}

// NewSimulationID — ids curtos no formato "sim-<hex>".
func NewSimulationID() (string, error) {
	suffix, err := RandomHex(8)
	if err != nil {
		return "", err
	}
	return "sim-" + suffix, nil
}
