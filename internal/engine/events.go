package engine

import (
	"time"

	"github.com/KevinGoltermann/moneyline-sub000/internal/contracts"
)

// EventType names a pick lifecycle transition
type EventType string

const (
	EventGenerated EventType = "generated"
	EventReplaced  EventType = "replaced"
	EventDeleted   EventType = "deleted"
	EventSettled   EventType = "settled"
)

// PickEvent is emitted after a transition has been committed
type PickEvent struct {
	Type   EventType         `json:"type"`
	Date   contracts.Date    `json:"date"`
	Pick   *contracts.Pick   `json:"pick,omitempty"`
	Result *contracts.Result `json:"result,omitempty"`
	At     time.Time         `json:"at"`
}

// Listener receives committed pick events. It runs on the caller's
// goroutine and must return promptly: hand work off, or bound any I/O with
// a short timeout.
type Listener func(PickEvent)

// Subscribe registers l for every future event
func (e *Engine) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *Engine) emit(ev PickEvent) {
	ev.At = e.now().UTC()

	e.mu.RLock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}
