package realtime

import (
	"sync"

	"lifedigital/internal/models"
)

// EventHub — fan-out em memória de WorkflowEvents por usuário.
// O despachante do outbox publica na ordem do log; assinantes lentos têm
// eventos descartados do buffer e recuperam pelo cursor na reconexão.
type EventHub struct {
	mu   sync.RWMutex
	subs map[int64]map[*Subscriber]struct{}
}

type Subscriber struct {
	C chan *models.WorkflowEvent
}

func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[int64]map[*Subscriber]struct{}),
	}
}

func (h *EventHub) Subscribe(userID int64) *Subscriber {
	sub := &Subscriber{C: make(chan *models.WorkflowEvent, 64)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	return sub
}

func (h *EventHub) Unsubscribe(userID int64, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[userID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, userID)
		}
	}
	close(sub.C)
}

// Publish — entrega não bloqueante; buffer cheio = evento descartado para
// aquele assinante (o cursor garante a releitura).
func (h *EventHub) Publish(ev *models.WorkflowEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.UserID] {
		select {
		case sub.C <- ev:
		default:
		}
	}
}
