package store

import (
	"context"
	"sort"
	"sync"

	"entrypass/internal/profile/models"
	id "entrypass/pkg/domain"
	"entrypass/pkg/platform/sentinel"
)

// InMemoryBackend keeps records in process. Payloads are copied on the way in
// and out so callers never share buffers with the store.
type InMemoryBackend struct {
	mu     sync.RWMutex
	tables map[models.Kind]map[id.EntityID]Record
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{tables: make(map[models.Kind]map[id.EntityID]Record)}
}

func (b *InMemoryBackend) Upsert(_ context.Context, rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	table, ok := b.tables[rec.Table]
	if !ok {
		table = make(map[id.EntityID]Record)
		b.tables[rec.Table] = table
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	table[rec.ID] = rec
	return nil
}

func (b *InMemoryBackend) Get(_ context.Context, table models.Kind, entityID id.EntityID) (*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.tables[table][entityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	return &rec, nil
}

// Query returns matching records ordered by table, then creation time.
func (b *InMemoryBackend) Query(_ context.Context, q Query) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Record
	for _, table := range q.tables() {
		var rows []Record
		for _, rec := range b.tables[table] {
			if !q.matches(rec) {
				continue
			}
			rec.Payload = append([]byte(nil), rec.Payload...)
			rows = append(rows, rec)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
		out = append(out, rows...)
	}
	return out, nil
}

func (b *InMemoryBackend) Delete(_ context.Context, table models.Kind, entityID id.EntityID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tables[table][entityID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(b.tables[table], entityID)
	return nil
}
