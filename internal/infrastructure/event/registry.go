package event

import (
	"sync"

	"github.com/khata/backend/internal/domain/shared"
)

// subscription is one handler registration. Async subscriptions run on the
// bus workers instead of the publishing goroutine.
type subscription struct {
	handler shared.EventHandler
	async   bool
}

// HandlerRegistry maps event types to subscriptions
type HandlerRegistry struct {
	mu       sync.RWMutex
	byType   map[string][]subscription
	wildcard []subscription
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{byType: make(map[string][]subscription)}
}

// Register adds a subscription for the given event types.
// With no event types the handler receives every event.
func (r *HandlerRegistry) Register(handler shared.EventHandler, async bool, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := subscription{handler: handler, async: async}
	if len(eventTypes) == 0 {
		r.wildcard = append(r.wildcard, sub)
		return
	}
	for _, eventType := range eventTypes {
		r.byType[eventType] = append(r.byType[eventType], sub)
	}
}

// Unregister removes every subscription of handler
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = without(r.wildcard, handler)
	for eventType, subs := range r.byType {
		if remaining := without(subs, handler); len(remaining) > 0 {
			r.byType[eventType] = remaining
		} else {
			delete(r.byType, eventType)
		}
	}
}

// subscriptionsFor returns the type-specific subscriptions followed by the
// wildcard ones
func (r *HandlerRegistry) subscriptionsFor(eventType string) []subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typed := r.byType[eventType]
	result := make([]subscription, 0, len(typed)+len(r.wildcard))
	result = append(result, typed...)
	return append(result, r.wildcard...)
}

// GetHandlers returns the handlers that receive eventType
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	subs := r.subscriptionsFor(eventType)
	handlers := make([]shared.EventHandler, len(subs))
	for i, s := range subs {
		handlers[i] = s.handler
	}
	return handlers
}

// Len returns the number of distinct registered handlers
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[shared.EventHandler]struct{})
	for _, s := range r.wildcard {
		seen[s.handler] = struct{}{}
	}
	for _, subs := range r.byType {
		for _, s := range subs {
			seen[s.handler] = struct{}{}
		}
	}
	return len(seen)
}

func without(subs []subscription, target shared.EventHandler) []subscription {
	result := subs[:0:0]
	for _, s := range subs {
		if s.handler != target {
			result = append(result, s)
		}
	}
	return result
}
