package snapshot

import (
	"context"
	"slices"
	"sort"
	"sync"

	id "entrypass/pkg/domain"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots []*EntrySnapshot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Replace(_ context.Context, snap *EntrySnapshot) (*EntrySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prior *EntrySnapshot
	for _, existing := range s.snapshots {
		if existing.UserID == snap.UserID && existing.Destination == snap.Destination && existing.Status == StatusActive {
			at := snap.SubmittedAt
			by := snap.ID
			existing.Status = StatusSuperseded
			existing.SupersededAt = &at
			existing.SupersededBy = &by
			prior = clone(existing)
		}
	}
	s.snapshots = append(s.snapshots, clone(snap))
	return prior, nil
}

func (s *InMemoryStore) List(_ context.Context, userID id.UserID, destination id.DestinationID, statuses ...Status) ([]*EntrySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*EntrySnapshot
	for _, snap := range s.snapshots {
		if snap.UserID != userID || snap.Destination != destination {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, snap.Status) {
			continue
		}
		out = append(out, clone(snap))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}
