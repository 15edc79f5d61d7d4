// Package snapshot keeps the write-once record of every accepted arrival
// card. A resubmission supersedes the previous snapshot; nothing is deleted.
package snapshot

import (
	"context"
	"time"

	id "entrypass/pkg/domain"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
)

// EntrySnapshot is the exact payload sent and what the remote answered.
// Only the status fields change after insert, and only once.
type EntrySnapshot struct {
	ID             id.SnapshotID    `json:"id"`
	UserID         id.UserID        `json:"user_id"`
	Destination    id.DestinationID `json:"destination"`
	Status         Status           `json:"status"`
	Payload        []byte           `json:"payload"`
	ConfirmationID string           `json:"confirmation_id"`
	// ArtifactRef is the document URI (PDF or page) returned by the remote.
	ArtifactRef string `json:"artifact_ref,omitempty"`
	// QRCodeRef is set only when the remote returned a distinct QR code.
	QRCodeRef    string         `json:"qr_code_ref,omitempty"`
	Attempts     int            `json:"attempts"`
	Device       string         `json:"device,omitempty"`
	SubmittedAt  time.Time      `json:"submitted_at"`
	SupersededAt *time.Time     `json:"superseded_at,omitempty"`
	SupersededBy *id.SnapshotID `json:"superseded_by,omitempty"`
}

// Store persists snapshots.
type Store interface {
	// Replace atomically marks the active snapshot of snap's user and
	// destination as superseded by snap and inserts snap. It returns the
	// superseded snapshot, or nil when there was none.
	Replace(ctx context.Context, snap *EntrySnapshot) (*EntrySnapshot, error)
	// List returns snapshots newest first. No statuses means all.
	List(ctx context.Context, userID id.UserID, destination id.DestinationID, statuses ...Status) ([]*EntrySnapshot, error)
}

func clone(s *EntrySnapshot) *EntrySnapshot {
	c := *s
	c.Payload = append([]byte(nil), s.Payload...)
	if s.SupersededAt != nil {
		at := *s.SupersededAt
		c.SupersededAt = &at
	}
	if s.SupersededBy != nil {
		by := *s.SupersededBy
		c.SupersededBy = &by
	}
	return &c
}
