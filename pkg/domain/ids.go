// Package domain holds the primitive identifier types shared by every bounded
// context. IDs are parsed once at trust boundaries (HTTP, storage) and passed
// around typed so a user ID can never be handed to a function expecting an
// entity ID.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "entrypass/pkg/domain-errors"
)

// UserID identifies the traveler that owns profile records and snapshots.
type UserID uuid.UUID

// EntityID identifies a single profile record (passport, personal info,
// travel info or fund item).
type EntityID uuid.UUID

// SnapshotID identifies an immutable submission snapshot.
type SnapshotID uuid.UUID

// DestinationID is the lowercase code of a configured destination, e.g. "th".
type DestinationID string

var destinationPattern = regexp.MustCompile(`^[a-z]{2,3}$`)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return parsed, nil
}

// ParseUserID parses and validates a user ID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

// ParseEntityID parses and validates a profile record ID.
func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID("entity id", s)
	return EntityID(u), err
}

// ParseSnapshotID parses and validates a snapshot ID.
func ParseSnapshotID(s string) (SnapshotID, error) {
	u, err := parseUUID("snapshot id", s)
	return SnapshotID(u), err
}

// ParseDestinationID normalizes and validates a destination code.
func ParseDestinationID(s string) (DestinationID, error) {
	code := strings.ToLower(strings.TrimSpace(s))
	if code == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "destination is required")
	}
	if !destinationPattern.MatchString(code) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid destination")
	}
	return DestinationID(code), nil
}

func NewEntityID() EntityID     { return EntityID(uuid.New()) }
func NewSnapshotID() SnapshotID { return SnapshotID(uuid.New()) }

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id EntityID) String() string   { return uuid.UUID(id).String() }
func (id SnapshotID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EntityID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SnapshotID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id DestinationID) String() string { return string(id) }

// MarshalText keeps IDs readable in JSON documents.
func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id EntityID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *EntityID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id SnapshotID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *SnapshotID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
