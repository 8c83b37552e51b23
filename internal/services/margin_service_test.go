package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"lifedigital/internal/models"
	"lifedigital/internal/utils"
)

func newMarginEnv(t *testing.T) (*MarginService, *fakeMarginRepo, *fakeMarginSource, *models.User) {
	t.Helper()
	users := newFakeUserRepo()
	repo := newFakeMarginRepo()
	source := &fakeMarginSource{figures: &utils.MarginFigures{Bruto: 600000, Utilizado: 76000}}
	user := &models.User{Email: "ana@example.com", Name: "Ana", CPF: "52998224725"}
	if err := users.Create(user); err != nil {
		t.Fatalf("criação do usuário falhou: %v", err)
	}
	return NewMarginService(repo, users, source), repo, source, user
}

func TestGetCurrentFazRefreshInicial(t *testing.T) {
	svc, _, _, user := newMarginEnv(t)

	snap, err := svc.GetCurrent(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("primeira consulta deveria buscar na fonte: %v", err)
	}
	if snap.Version != 1 {
		t.Fatalf("primeiro snapshot deveria ser v1, veio v%d", snap.Version)
	}
	if snap.TotalDisponivel != 524000 {
		t.Fatalf("total disponível = bruto - utilizado: esperado 524000, veio %d", snap.TotalDisponivel)
	}
	if snap.Stale {
		t.Fatal("snapshot recém buscado não pode estar stale")
	}
}

func TestRefreshRejeitaMargemInconsistente(t *testing.T) {
	svc, repo, source, user := newMarginEnv(t)

	if _, err := svc.Refresh(context.Background(), user.ID); err != nil {
		t.Fatalf("refresh inicial falhou: %v", err)
	}
	antes := repo.current[user.ID]

	// utilizado > bruto viola o invariante; o snapshot anterior permanece
	source.figures = &utils.MarginFigures{Bruto: 100000, Utilizado: 150000}
	if _, err := svc.Refresh(context.Background(), user.ID); !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("esperado ErrSourceUnavailable, veio %v", err)
	}
	if repo.current[user.ID] != antes {
		t.Fatal("falha da fonte não pode trocar o snapshot corrente")
	}
}

func TestGetCurrentDevolveVencidoComStale(t *testing.T) {
	svc, repo, source, user := newMarginEnv(t)

	if _, err := svc.Refresh(context.Background(), user.ID); err != nil {
		t.Fatalf("refresh inicial falhou: %v", err)
	}
	// envelhece o snapshot e derruba a fonte
	repo.current[user.ID].AtualizadoEm = time.Now().Add(-48 * time.Hour)
	source.err = errors.New("averbadora fora do ar")

	snap, err := svc.GetCurrent(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("consulta com fonte fora do ar deveria degradar, não falhar: %v", err)
	}
	if !snap.Stale {
		t.Fatal("dado vencido servido por indisponibilidade precisa vir marcado como stale")
	}
	if snap.Version != 1 {
		t.Fatalf("deveria devolver o snapshot anterior (v1), veio v%d", snap.Version)
	}
}

func TestRefreshConsolidaHistorico(t *testing.T) {
	svc, repo, source, user := newMarginEnv(t)

	if _, err := svc.Refresh(context.Background(), user.ID); err != nil {
		t.Fatalf("refresh v1 falhou: %v", err)
	}
	source.figures = &utils.MarginFigures{Bruto: 600000, Utilizado: 100000}
	snap, err := svc.Refresh(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("refresh v2 falhou: %v", err)
	}
	if snap.Version != 2 {
		t.Fatalf("segunda troca deveria ser v2, veio v%d", snap.Version)
	}

	hist, err := svc.History(user.ID)
	if err != nil {
		t.Fatalf("histórico falhou: %v", err)
	}
	if len(hist) != 1 || hist[0].Valor != 524000 {
		t.Fatalf("o snapshot anterior deveria ter ido para o histórico, veio %+v", hist)
	}
	_ = repo
}
