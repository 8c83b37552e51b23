package services

import (
	"context"
	"log"
	"time"

	"lifedigital/internal/models"
	"lifedigital/internal/realtime"
	"lifedigital/internal/repositories"
)

const (
	defaultDispatchInterval = time.Second
	dispatchBatchSize       = 100
)

// EventConsumer — assinante interno do despachante (ex.: reavaliação de
// prontidão da simulação).
type EventConsumer func(ev *models.WorkflowEvent) error

// EventService — despachante do outbox: drena workflow_events não despachados
// em ordem de ID, entrega aos consumidores internos, publica no hub SSE e
// enfileira as entregas de webhook. Só então marca dispatched_at.
type EventService struct {
	Events   repositories.EventRepository
	Webhooks repositories.WebhookRepository
	Hub      *realtime.EventHub
	Targets  []string

	consumers []EventConsumer
}

func NewEventService(events repositories.EventRepository, webhooks repositories.WebhookRepository, hub *realtime.EventHub, targets []string) *EventService {
	return &EventService{
		Events:   events,
		Webhooks: webhooks,
		Hub:      hub,
		Targets:  targets,
	}
}

// Subscribe — registra um consumidor interno. Chamar antes do Start.
func (s *EventService) Subscribe(c EventConsumer) {
	s.consumers = append(s.consumers, c)
}

// Start — loop de polling do outbox; bloqueia até o ctx encerrar.
func (s *EventService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultDispatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.DispatchPending(); err != nil {
				log.Printf("[events][dispatch] falhou: %v", err)
			}
		}
	}
}

// DispatchPending — uma passada de despacho. Evento cujo consumidor falhar
// fica para a próxima passada (at-least-once; consumidores são idempotentes).
// Os eventos seguintes da MESMA entidade também ficam retidos: assinantes
// recebem cada entidade na ordem do log, nunca com buracos.
func (s *EventService) DispatchPending() error {
	events, err := s.Events.ListUndispatched(dispatchBatchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	var done []int64
	held := make(map[string]bool)
	for _, ev := range events {
		entity := ev.EntityType + "/" + ev.EntityID
		if held[entity] {
			continue
		}
		ok := true
		for _, consume := range s.consumers {
			if err := consume(ev); err != nil {
				log.Printf("[events][dispatch] consumidor falhou id=%d entity=%s err=%v",
					ev.ID, entity, err)
				ok = false
				break
			}
		}
		if !ok {
			held[entity] = true
			continue
		}

		if s.Hub != nil {
			s.Hub.Publish(ev)
		}
		for _, target := range s.Targets {
			if err := s.Webhooks.Enqueue(ev.ID, target, time.Now()); err != nil {
				log.Printf("[events][dispatch] enqueue webhook falhou id=%d target=%s err=%v", ev.ID, target, err)
			}
		}
		done = append(done, ev.ID)
	}

	if len(done) > 0 {
		if err := s.Events.MarkDispatched(done); err != nil {
			return err
		}
		log.Printf("[events][dispatch] despachados=%d", len(done))
	}
	return nil
}

// Replay — eventos do usuário depois do cursor, para o catch-up do SSE.
func (s *EventService) Replay(userID, afterID int64, limit int) ([]*models.WorkflowEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	return s.Events.ListByUserAfter(userID, afterID, limit)
}
