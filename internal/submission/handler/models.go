package handler

import (
	"encoding/json"
	"time"

	"entrypass/internal/submission/snapshot"
)

// SnapshotResponse renders the stored payload as the JSON document it is.
type SnapshotResponse struct {
	ID             string          `json:"id"`
	Destination    string          `json:"destination"`
	Status         string          `json:"status"`
	ConfirmationID string          `json:"confirmation_id"`
	ArtifactRef    string          `json:"artifact_ref,omitempty"`
	QRCodeRef      string          `json:"qr_code_ref,omitempty"`
	Attempts       int             `json:"attempts"`
	Device         string          `json:"device,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	SupersededAt   *time.Time      `json:"superseded_at,omitempty"`
	SupersededBy   string          `json:"superseded_by,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

type SnapshotsResponse struct {
	Snapshots []*SnapshotResponse `json:"snapshots"`
}

func toSnapshotResponse(s *snapshot.EntrySnapshot) *SnapshotResponse {
	resp := &SnapshotResponse{
		ID:             s.ID.String(),
		Destination:    string(s.Destination),
		Status:         string(s.Status),
		ConfirmationID: s.ConfirmationID,
		ArtifactRef:    s.ArtifactRef,
		QRCodeRef:      s.QRCodeRef,
		Attempts:       s.Attempts,
		Device:         s.Device,
		SubmittedAt:    s.SubmittedAt,
		SupersededAt:   s.SupersededAt,
	}
	if s.SupersededBy != nil {
		resp.SupersededBy = s.SupersededBy.String()
	}
	if json.Valid(s.Payload) {
		resp.Payload = json.RawMessage(s.Payload)
	}
	return resp
}
