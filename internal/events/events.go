// Package events carries the "product created" notification from the content
// repository to whoever needs to react to it. Listeners are registered
// explicitly at startup; there is no global hook registry.
package events

import (
	"context"
	"sync"
	"time"

	"catalog/internal/logger"
	"catalog/internal/models"

	"github.com/google/uuid"
)

const TypeProductCreated = "product.created"

// ProductCreated is emitted once, when a content record is first inserted.
type ProductCreated struct {
	EventID   string         `json:"event_id"`
	Type      string         `json:"type"`
	RecordID  uint           `json:"record_id"`
	Product   models.Product `json:"product"`
	CreatedAt time.Time      `json:"created_at"`
}

func NewProductCreated(recordID uint, product models.Product, at time.Time) ProductCreated {
	return ProductCreated{
		EventID:   uuid.New().String(),
		Type:      TypeProductCreated,
		RecordID:  recordID,
		Product:   product,
		CreatedAt: at,
	}
}

type Listener interface {
	OnProductCreated(ctx context.Context, event ProductCreated) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, event ProductCreated) error

func (f ListenerFunc) OnProductCreated(ctx context.Context, event ProductCreated) error {
	return f(ctx, event)
}

// Dispatcher calls every registered listener in registration order. A
// listener error is logged and does not stop the others or the caller.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *logger.Logger
}

func NewDispatcher(logger *logger.Logger, listeners ...Listener) *Dispatcher {
	return &Dispatcher{listeners: listeners, logger: logger}
}

func (d *Dispatcher) Register(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

func (d *Dispatcher) Dispatch(ctx context.Context, event ProductCreated) {
	d.mu.RLock()
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	for _, l := range listeners {
		if err := l.OnProductCreated(ctx, event); err != nil {
			d.logger.Error("Listener failed for %s (record %d): %v", event.Type, event.RecordID, err)
		}
	}
}
