package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// StorageHead — metadados do objeto como realmente armazenado.
type StorageHead struct {
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// StorageClient — emissor de capabilities de escrita (URL pré-assinada) contra
// o gateway de object storage. Em dry-run devolve URLs determinísticas e
// confirma o HEAD com os valores declarados.
type StorageClient struct {
	Endpoint  string
	Bucket    string
	SecretKey string
	DryRun    bool

	// Guardado só em dry-run para responder HeadObject com o que foi declarado.
	// Presign e finalize chegam de handlers concorrentes.
	mu       sync.Mutex
	declared map[string]StorageHead
}

func NewStorageClient(endpoint, bucket, secretKey string, dryRun bool) *StorageClient {
	return &StorageClient{
		Endpoint:  endpoint,
		Bucket:    bucket,
		SecretKey: secretKey,
		DryRun:    dryRun,
		declared:  make(map[string]StorageHead),
	}
}

// IssueWriteCapability — URL PUT assinada e limitada no tempo.
func (c *StorageClient) IssueWriteCapability(key, contentType string, size int64, ttl time.Duration) (string, error) {
	expires := time.Now().Add(ttl).Unix()
	base := fmt.Sprintf("%s/%s/%s", c.Endpoint, c.Bucket, key)

	mac := hmac.New(sha256.New, []byte(c.SecretKey))
	fmt.Fprintf(mac, "PUT\n%s\n%s\n%d\n%d", key, contentType, size, expires)
	sig := hex.EncodeToString(mac.Sum(nil))

	q := url.Values{
		"X-Ld-Expires":   {fmt.Sprintf("%d", expires)},
		"X-Ld-Signature": {sig},
	}
	u := base + "?" + q.Encode()

	if c.DryRun {
		c.mu.Lock()
		c.declared[key] = StorageHead{ContentType: contentType, Size: size}
		c.mu.Unlock()
	}
	return u, nil
}

// HeadObject — o que o storage de fato guardou; nil se o objeto não existe.
func (c *StorageClient) HeadObject(key string) (*StorageHead, error) {
	if c.DryRun {
		c.mu.Lock()
		h, ok := c.declared[key]
		c.mu.Unlock()
		if ok {
			return &h, nil
		}
		return nil, nil
	}

	resp, err := http.Head(fmt.Sprintf("%s/%s/%s", c.Endpoint, c.Bucket, key))
	if err != nil {
		return nil, fmt.Errorf("head object: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("head object: status=%d", resp.StatusCode)
	}
	return &StorageHead{
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}, nil
}
