package utils

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestDryRunHeadDevolveODeclarado(t *testing.T) {
	c := NewStorageClient("https://storage.test", "uploads", "chave", true)

	url, err := c.IssueWriteCapability("contracheques/2026/08/ab12.jpg", "image/jpeg", 1024, time.Minute)
	if err != nil {
		t.Fatalf("emissão da capability falhou: %v", err)
	}
	if url == "" {
		t.Fatal("capability deveria vir com a URL assinada")
	}

	head, err := c.HeadObject("contracheques/2026/08/ab12.jpg")
	if err != nil {
		t.Fatalf("head falhou: %v", err)
	}
	if head == nil || head.ContentType != "image/jpeg" || head.Size != 1024 {
		t.Fatalf("head em dry-run deveria espelhar o declarado, veio %+v", head)
	}

	missing, err := c.HeadObject("contracheques/2026/08/outro.jpg")
	if err != nil || missing != nil {
		t.Fatalf("objeto nunca declarado deveria ser nil, veio %+v (err=%v)", missing, err)
	}
}

func TestDryRunConcorrente(t *testing.T) {
	c := NewStorageClient("https://storage.test", "uploads", "chave", true)

	// presign e finalize chegam de requisições paralelas
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("contracheques/2026/08/%02d.jpg", n)
			if _, err := c.IssueWriteCapability(key, "image/jpeg", int64(n+1), time.Minute); err != nil {
				t.Errorf("capability %d falhou: %v", n, err)
				return
			}
			head, err := c.HeadObject(key)
			if err != nil || head == nil || head.Size != int64(n+1) {
				t.Errorf("head %d divergente: %+v (err=%v)", n, head, err)
			}
		}(i)
	}
	wg.Wait()
}
