package snapshot

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "entrypass/pkg/domain"
	txcontext "entrypass/pkg/platform/tx"
)

// PostgresStore keeps snapshots in entry_snapshots. The partial unique index
// on active rows backs the one-active-snapshot rule.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const snapshotColumns = `id, user_id, destination, status, payload, confirmation_id,
	artifact_ref, qr_code_ref, attempts, device, submitted_at, superseded_at, superseded_by`

func (s *PostgresStore) Replace(ctx context.Context, snap *EntrySnapshot) (*EntrySnapshot, error) {
	var prior *EntrySnapshot
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.Exec(ctx, s.db)

		rows, err := exec.QueryContext(ctx, `
			UPDATE entry_snapshots
			SET status = $1, superseded_at = $2, superseded_by = $3
			WHERE user_id = $4 AND destination = $5 AND status = $6
			RETURNING `+snapshotColumns,
			string(StatusSuperseded),
			snap.SubmittedAt,
			uuid.UUID(snap.ID),
			uuid.UUID(snap.UserID),
			string(snap.Destination),
			string(StatusActive),
		)
		if err != nil {
			return fmt.Errorf("supersede snapshot: %w", err)
		}
		superseded, err := scanSnapshots(rows)
		if err != nil {
			return err
		}
		if len(superseded) > 0 {
			prior = superseded[0]
		}

		_, err = exec.ExecContext(ctx, `
			INSERT INTO entry_snapshots (`+snapshotColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL, NULL)`,
			uuid.UUID(snap.ID),
			uuid.UUID(snap.UserID),
			string(snap.Destination),
			string(snap.Status),
			snap.Payload,
			snap.ConfirmationID,
			snap.ArtifactRef,
			snap.QRCodeRef,
			snap.Attempts,
			snap.Device,
			snap.SubmittedAt,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prior, nil
}

func (s *PostgresStore) List(ctx context.Context, userID id.UserID, destination id.DestinationID, statuses ...Status) ([]*EntrySnapshot, error) {
	if len(statuses) == 0 {
		statuses = []Status{StatusActive, StatusSuperseded}
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM entry_snapshots
		WHERE user_id = $1 AND destination = $2 AND status = ANY($3)
		ORDER BY submitted_at DESC`,
		uuid.UUID(userID), string(destination), pq.Array(names),
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	return scanSnapshots(rows)
}

func scanSnapshots(rows *sql.Rows) ([]*EntrySnapshot, error) {
	defer rows.Close()
	var out []*EntrySnapshot
	for rows.Next() {
		var (
			snap         EntrySnapshot
			snapID       uuid.UUID
			userID       uuid.UUID
			destination  string
			status       string
			supersededAt sql.NullTime
			supersededBy uuid.NullUUID
		)
		if err := rows.Scan(
			&snapID, &userID, &destination, &status, &snap.Payload, &snap.ConfirmationID,
			&snap.ArtifactRef, &snap.QRCodeRef, &snap.Attempts, &snap.Device, &snap.SubmittedAt,
			&supersededAt, &supersededBy,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.ID = id.SnapshotID(snapID)
		snap.UserID = id.UserID(userID)
		snap.Destination = id.DestinationID(destination)
		snap.Status = Status(status)
		if supersededAt.Valid {
			at := supersededAt.Time.UTC()
			snap.SupersededAt = &at
		}
		if supersededBy.Valid {
			by := id.SnapshotID(supersededBy.UUID)
			snap.SupersededBy = &by
		}
		out = append(out, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
