package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"entrypass/internal/profile/models"
	id "entrypass/pkg/domain"
	"entrypass/pkg/platform/sentinel"
	txcontext "entrypass/pkg/platform/tx"
)

var tableNames = map[models.Kind]string{
	models.KindPassport:     "passports",
	models.KindPersonalInfo: "personal_infos",
	models.KindTravelInfo:   "travel_infos",
	models.KindFundItem:     "fund_items",
}

// PostgresBackend stores one table per entity kind. With a Sealer, payloads
// are encrypted before they reach the database.
type PostgresBackend struct {
	db     *sql.DB
	sealer *Sealer
}

// PostgresOption configures a PostgresBackend.
type PostgresOption func(*PostgresBackend)

// WithSealer encrypts payloads at rest.
func WithSealer(s *Sealer) PostgresOption {
	return func(b *PostgresBackend) {
		b.sealer = s
	}
}

func NewPostgresBackend(db *sql.DB, opts ...PostgresOption) *PostgresBackend {
	b := &PostgresBackend{db: db}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func tableName(k models.Kind) (string, error) {
	name, ok := tableNames[k]
	if !ok {
		return "", fmt.Errorf("unknown table %q", k)
	}
	return name, nil
}

func (b *PostgresBackend) Upsert(ctx context.Context, rec Record) error {
	table, err := tableName(rec.Table)
	if err != nil {
		return err
	}
	payload, sealed, err := b.seal(rec)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, destination, payload, sealed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			destination = EXCLUDED.destination,
			payload = EXCLUDED.payload,
			sealed = EXCLUDED.sealed,
			updated_at = EXCLUDED.updated_at
		WHERE %s.user_id = EXCLUDED.user_id
	`, table, table)
	res, err := txcontext.Exec(ctx, b.db).ExecContext(ctx, query,
		uuid.UUID(rec.ID),
		uuid.UUID(rec.UserID),
		string(rec.Destination),
		payload,
		sealed,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("upsert %s: %w", table, sentinel.ErrConflict)
	}
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, k models.Kind, entityID id.EntityID) (*Record, error) {
	table, err := tableName(k)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, user_id, destination, payload, sealed, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, table)
	row := txcontext.Exec(ctx, b.db).QueryRowContext(ctx, query, uuid.UUID(entityID))
	rec, err := b.scan(k, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	return rec, nil
}

// Query issues one statement per table. The destination filter is an ANY over
// {"", destination} so unscoped records are always included.
func (b *PostgresBackend) Query(ctx context.Context, q Query) ([]Record, error) {
	var out []Record
	for _, k := range q.tables() {
		table, err := tableName(k)
		if err != nil {
			return nil, err
		}
		query := fmt.Sprintf(`
			SELECT id, user_id, destination, payload, sealed, created_at, updated_at
			FROM %s
			WHERE user_id = $1
		`, table)
		args := []any{uuid.UUID(q.UserID)}
		if q.Destination != "" {
			query += ` AND destination = ANY($2)`
			args = append(args, pq.Array([]string{"", string(q.Destination)}))
		}
		query += ` ORDER BY created_at`

		rows, err := txcontext.Exec(ctx, b.db).QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", table, err)
		}
		for rows.Next() {
			rec, err := b.scan(k, rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s: %w", table, err)
			}
			out = append(out, *rec)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterate %s: %w", table, err)
		}
	}
	return out, nil
}

func (b *PostgresBackend) Delete(ctx context.Context, k models.Kind, entityID id.EntityID) error {
	table, err := tableName(k)
	if err != nil {
		return err
	}
	res, err := txcontext.Exec(ctx, b.db).ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), uuid.UUID(entityID))
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (b *PostgresBackend) scan(k models.Kind, row scanner) (*Record, error) {
	var (
		rec         = Record{Table: k}
		entityID    uuid.UUID
		userID      uuid.UUID
		destination string
		sealed      bool
	)
	if err := row.Scan(&entityID, &userID, &destination, &rec.Payload, &sealed, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.ID = id.EntityID(entityID)
	rec.UserID = id.UserID(userID)
	rec.Destination = id.DestinationID(destination)
	if sealed {
		if b.sealer == nil {
			return nil, errors.New("record is sealed but no key is configured")
		}
		plain, err := b.sealer.Open(rec.Payload, rec.ID[:])
		if err != nil {
			return nil, err
		}
		rec.Payload = plain
	}
	return &rec, nil
}

func (b *PostgresBackend) seal(rec Record) ([]byte, bool, error) {
	if b.sealer == nil {
		return rec.Payload, false, nil
	}
	sealed, err := b.sealer.Seal(rec.Payload, rec.ID[:])
	if err != nil {
		return nil, false, err
	}
	return sealed, true, nil
}
