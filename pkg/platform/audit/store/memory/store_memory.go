// Package memory keeps audit events in process. It backs single-instance
// deployments without PostgreSQL and the tests.
package memory

import (
	"context"
	"sync"

	id "entrypass/pkg/domain"
	audit "entrypass/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
	byUser map[id.UserID][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byUser: make(map[id.UserID][]int)}
}

// Append records event with its category derived from the action.
func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.Category = audit.AuditEvent(event.Action).Category()
	s.byUser[event.UserID] = append(s.byUser[event.UserID], len(s.events))
	s.events = append(s.events, event)
	return nil
}

// ListByUser returns a user's events in append order.
func (s *InMemoryStore) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return s.ListFor(ctx, userID, "", "")
}

// ListFor narrows a user's events to one destination and one action. Empty
// filters match everything.
func (s *InMemoryStore) ListFor(_ context.Context, userID id.UserID, destination id.DestinationID, action audit.AuditEvent) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []audit.Event{}
	for _, i := range s.byUser[userID] {
		e := s.events[i]
		if destination != "" && e.Destination != destination {
			continue
		}
		if action != "" && e.Action != string(action) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Len is the number of events across all users.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
