// Package event delivers ledger domain events to in-process handlers
// after the aggregate that raised them has been saved.
package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/khata/backend/internal/domain/shared"
	"github.com/khata/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config sizes the async side of the bus
type Config struct {
	Workers   int // goroutines running async handlers
	QueueSize int // pending async deliveries before publishers run them inline
}

// DefaultConfig returns the bus sizing used by the server
func DefaultConfig() Config {
	return Config{Workers: 2, QueueSize: 256}
}

type delivery struct {
	ctx     context.Context
	handler shared.EventHandler
	event   shared.DomainEvent
}

// InMemoryEventBus implements shared.EventBus with in-process delivery.
//
// Synchronous subscribers run on the publishing goroutine before Publish
// returns. Async subscribers are queued for the worker pool; when the bus
// is stopped or the queue is full they run inline instead, so no delivery
// is dropped. Handler errors and panics are logged and never reach the
// publisher.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	cfg      Config

	queue   chan delivery
	running atomic.Bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, cfg Config) *InMemoryEventBus {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
		cfg:      cfg,
	}
}

// Publish delivers events to every subscribed handler. It always returns nil.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		for _, sub := range b.registry.subscriptionsFor(event.EventType()) {
			if sub.async && b.enqueue(delivery{ctx: context.WithoutCancel(ctx), handler: sub.handler, event: event}) {
				continue
			}
			b.dispatch(ctx, sub.handler, event)
		}
	}
	return nil
}

// Subscribe registers a synchronous handler. With no event types given the
// handler's own EventTypes are used.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	b.subscribe(handler, false, eventTypes)
}

// SubscribeAsync registers a handler that runs on the bus workers
func (b *InMemoryEventBus) SubscribeAsync(handler shared.EventHandler, eventTypes ...string) {
	b.subscribe(handler, true, eventTypes)
}

func (b *InMemoryEventBus) subscribe(handler shared.EventHandler, async bool, eventTypes []string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, async, eventTypes...)
	b.logger.Debug("handler subscribed",
		zap.String("handler", fmt.Sprintf("%T", handler)),
		zap.Strings("event_types", eventTypes),
		zap.Bool("async", async),
	)
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start launches the async workers
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running.Load() {
		return nil
	}

	b.queue = make(chan delivery, b.cfg.QueueSize)
	for i := 0; i < b.cfg.Workers; i++ {
		b.wg.Add(1)
		go b.worker(b.queue)
	}
	b.running.Store(true)
	b.logger.Info("event bus started", zap.Int("workers", b.cfg.Workers))
	return nil
}

// Stop stops accepting async work and waits for queued deliveries to
// finish, or for ctx to end.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running.Load() {
		b.mu.Unlock()
		return nil
	}
	b.running.Store(false)
	close(b.queue)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event bus stop: %w", ctx.Err())
	}
}

func (b *InMemoryEventBus) enqueue(d delivery) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running.Load() {
		return false
	}
	select {
	case b.queue <- d:
		return true
	default:
		b.logger.Warn("event queue full, delivering inline",
			zap.String("event_type", d.event.EventType()))
		return false
	}
}

func (b *InMemoryEventBus) worker(queue <-chan delivery) {
	defer b.wg.Done()
	for d := range queue {
		b.dispatch(d.ctx, d.handler, d.event)
	}
}

// dispatch runs one handler under its own span, containing panics
func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) {
	ctx, span := telemetry.StartSpan(ctx, "event."+event.EventType(),
		telemetry.WithAttribute("event.handler", fmt.Sprintf("%T", handler)),
		telemetry.WithAttribute("event.id", event.EventID().String()),
		telemetry.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("handler panicked: %v", r)
			telemetry.RecordError(span, err)
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Any("panic", r),
			)
		}
	}()

	if err := handler.Handle(ctx, event); err != nil {
		telemetry.RecordError(span, err)
		b.logger.Error("handler failed to process event",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.String("tenant_id", event.TenantID().String()),
			zap.Error(err),
		)
	}
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
