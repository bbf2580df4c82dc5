package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "medledger/pkg/domain"
	"medledger/pkg/platform/sentinel"
	txcontext "medledger/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

// PostgresStore persists records in the records table and the creation-order
// index in patient_records. Mutations join a caller transaction from context.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	insertRecord := `
		INSERT INTO records (id, data_reference, owner, last_modified)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.execer(ctx).ExecContext(ctx, insertRecord,
		rec.ID[:],
		rec.DataReference,
		uuid.UUID(rec.Owner),
		rec.LastModified,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert record: %w", err)
	}

	appendIndex := `
		INSERT INTO patient_records (patient, record_id)
		VALUES ($1, $2)
	`
	if _, err := s.execer(ctx).ExecContext(ctx, appendIndex, uuid.UUID(rec.Owner), rec.ID[:]); err != nil {
		return fmt.Errorf("append patient index: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateReference(ctx context.Context, recordID id.RecordID, dataReference string, modified time.Time) error {
	query := `
		UPDATE records SET data_reference = $2, last_modified = $3
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, recordID[:], dataReference, modified)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, recordID id.RecordID) (Record, error) {
	query := `
		SELECT data_reference, owner, last_modified FROM records
		WHERE id = $1
	`
	rec := Record{ID: recordID}
	var owner uuid.UUID
	err := s.db.QueryRowContext(ctx, query, recordID[:]).
		Scan(&rec.DataReference, &owner, &rec.LastModified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, sentinel.ErrNotFound
		}
		return Record{}, fmt.Errorf("get record: %w", err)
	}
	rec.Owner = id.Principal(owner)
	return rec, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.Principal) ([]id.RecordID, error) {
	query := `
		SELECT record_id FROM patient_records
		WHERE patient = $1
		ORDER BY position ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(owner))
	if err != nil {
		return nil, fmt.Errorf("list patient records: %w", err)
	}
	defer rows.Close()

	var ids []id.RecordID
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan record id: %w", err)
		}
		var rid id.RecordID
		copy(rid[:], raw)
		ids = append(ids, rid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patient records: %w", err)
	}
	return ids, nil
}
