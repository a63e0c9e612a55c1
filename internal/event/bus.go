// Package event provides the engine's typed publish/subscribe surface.
// Events are fire-and-forget: publishing never blocks on subscribers and
// subscriber errors cannot reach the publisher.
package event

import (
	"sync"

	"github.com/tacband/skirmish/pkg/core"
)

// Handler consumes one event value.
type Handler[T any] func(T)

// Feed is a multi-subscriber event stream for a single payload type.
type Feed[T any] struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler[T]
}

// Subscribe registers a handler and returns a function that removes it.
func (f *Feed[T]) Subscribe(h Handler[T]) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[int]Handler[T])
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// Publish delivers the value to every subscriber in unspecified order.
func (f *Feed[T]) Publish(v T) {
	f.mu.RLock()
	handlers := make([]Handler[T], 0, len(f.subs))
	for _, h := range f.subs {
		handlers = append(handlers, h)
	}
	f.mu.RUnlock()
	for _, h := range handlers {
		h(v)
	}
}

// Len returns the current subscriber count.
func (f *Feed[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Bus aggregates every event stream the engine emits. One Bus exists per
// engine instance; the visual/audio/UI layer subscribes here.
type Bus struct {
	MovementStarted   Feed[core.MovementStartedEvent]
	MovementCompleted Feed[core.MovementCompletedEvent]
	MovementFailed    Feed[core.MovementFailedEvent]
	MovementCancelled Feed[core.MovementCancelledEvent]
	AttackCompleted   Feed[core.AttackCompletedEvent]
	UnitDamaged       Feed[core.UnitDamagedEvent]
	UnitHealed        Feed[core.UnitHealedEvent]
	UnitDied          Feed[core.UnitDiedEvent]
	TeamEliminated    Feed[core.TeamEliminatedEvent]
	WinConditionMet   Feed[core.WinConditionMetEvent]
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}
