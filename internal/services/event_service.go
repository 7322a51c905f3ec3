package services

import (
	"sync"

	"github.com/profilehub/backend/internal/models"
)

// EventSink receives registry events fire-and-forget. Emission happens only
// after an operation's storage writes have committed; a failed operation
// emits nothing.
type EventSink interface {
	Emit(event models.Event)
}

// EventLog is the in-memory append-only sink backing the events API.
type EventLog struct {
	mu     sync.RWMutex
	events []models.Event
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) Emit(event models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// All returns a copy of the full log in emission order.
func (l *EventLog) All() []models.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Event, len(l.events))
	copy(out, l.events)
	return out
}

// ByProfile returns events for one profile in emission order.
func (l *EventLog) ByProfile(profileID uint64) []models.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.Event
	for _, e := range l.events {
		if e.ProfileID == profileID {
			out = append(out, e)
		}
	}
	return out
}
