package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"lifedigital/internal/models"
	"lifedigital/internal/repositories"
	"lifedigital/internal/utils"
)

const (
	defaultStaleness      = 6 * time.Hour
	defaultRefreshTimeout = 3 * time.Second
)

type MarginSourcePort interface {
	FetchMargin(ctx context.Context, userID int64, cpf string) (*utils.MarginFigures, error)
}

// MarginService — visão de leitura da margem com refresh sob demanda.
// Refreshes do mesmo usuário serializam; usuários diferentes são independentes.
type MarginService struct {
	Repo           repositories.MarginRepository
	Users          repositories.UserRepository
	Source         MarginSourcePort
	Staleness      time.Duration
	RefreshTimeout time.Duration

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewMarginService(repo repositories.MarginRepository, users repositories.UserRepository, source MarginSourcePort) *MarginService {
	return &MarginService{
		Repo:           repo,
		Users:          users,
		Source:         source,
		Staleness:      defaultStaleness,
		RefreshTimeout: defaultRefreshTimeout,
		locks:          make(map[int64]*sync.Mutex),
	}
}

func (s *MarginService) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func (s *MarginService) staleness() time.Duration {
	if s.Staleness <= 0 {
		return defaultStaleness
	}
	return s.Staleness
}

// GetCurrent — snapshot mais fresco. Vencido dispara refresh síncrono com
// timeout limitado; se a fonte falhar devolvemos o vencido com stale=true em
// vez de quebrar o chamador.
func (s *MarginService) GetCurrent(ctx context.Context, userID int64) (*models.MarginSnapshot, error) {
	snap, err := s.Repo.GetCurrent(userID)
	if err != nil {
		return nil, err
	}
	if snap != nil && time.Since(snap.AtualizadoEm) < s.staleness() {
		return snap, nil
	}

	timeout := s.RefreshTimeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fresh, err := s.Refresh(rctx, userID)
	if err != nil {
		if snap == nil {
			return nil, err
		}
		log.Printf("[margin][get] refresh falhou, devolvendo vencido user_id=%d err=%v", userID, err)
		snap.Stale = true
		return snap, nil
	}
	return fresh, nil
}

// Refresh — busca números autoritativos e troca o snapshot corrente de forma
// atômica. Em falha da fonte o snapshot anterior permanece corrente.
func (s *MarginService) Refresh(ctx context.Context, userID int64) (*models.MarginSnapshot, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	user, err := s.Users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}

	figures, err := s.Source.FetchMargin(ctx, userID, user.CPF)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if figures.Bruto < 0 || figures.Utilizado < 0 || figures.Utilizado > figures.Bruto {
		return nil, fmt.Errorf("%w: margem inconsistente (bruto=%d utilizado=%d)",
			ErrSourceUnavailable, figures.Bruto, figures.Utilizado)
	}

	var prevVersion int64
	prev, err := s.Repo.GetCurrent(userID)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		prevVersion = prev.Version
	}

	next := &models.MarginSnapshot{
		Bruto:        figures.Bruto,
		Utilizado:    figures.Utilizado,
		AtualizadoEm: time.Now(),
	}
	if _, err := s.Repo.Swap(userID, next, prevVersion); err != nil {
		if err == repositories.ErrNoTransition {
			// refresh concorrente chegou primeiro; o dele vale
			return s.Repo.GetCurrent(userID)
		}
		return nil, err
	}
	log.Printf("[margin][refresh] ok user_id=%d v%d disponivel=%d", userID, next.Version, next.TotalDisponivel)
	return next, nil
}

func (s *MarginService) History(userID int64) ([]models.MarginHistoryEntry, error) {
	return s.Repo.History(userID, 24)
}
