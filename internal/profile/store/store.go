// Package store is the table-per-kind persistence contract behind the entity
// store, with memory and PostgreSQL backends. Backends move opaque payloads;
// encoding lives in codec.go.
package store

import (
	"context"
	"time"

	"entrypass/internal/profile/models"
	id "entrypass/pkg/domain"
)

// Record is one stored entity. Payload is the JSON document of the entity.
type Record struct {
	Table       models.Kind
	ID          id.EntityID
	UserID      id.UserID
	Destination id.DestinationID
	Payload     []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Query selects a user's records. Empty Tables means every kind. When
// Destination is set, records scoped to another destination are skipped;
// records without a destination always match.
type Query struct {
	UserID      id.UserID
	Tables      []models.Kind
	Destination id.DestinationID
}

// Backend persists records. Get and Delete return sentinel.ErrNotFound for
// unknown IDs. Upsert replaces the whole record keyed by (Table, ID).
type Backend interface {
	Upsert(ctx context.Context, rec Record) error
	Get(ctx context.Context, table models.Kind, entityID id.EntityID) (*Record, error)
	Query(ctx context.Context, q Query) ([]Record, error)
	Delete(ctx context.Context, table models.Kind, entityID id.EntityID) error
}

func (q Query) tables() []models.Kind {
	if len(q.Tables) == 0 {
		return models.Kinds
	}
	return q.Tables
}

func (q Query) matches(rec Record) bool {
	if rec.UserID != q.UserID {
		return false
	}
	return q.Destination == "" || rec.Destination == "" || rec.Destination == q.Destination
}
