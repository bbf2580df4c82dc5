package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "medledger/pkg/domain"
	"medledger/pkg/platform/sentinel"
	txcontext "medledger/pkg/platform/tx"
)

// PostgresStore persists grants in the access_grants table. Mutations join a
// caller transaction from context when present.
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

func (s *PostgresStore) Save(ctx context.Context, grant Grant) error {
	query := `
		INSERT INTO access_grants (patient, accessor, active, expiry)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient, accessor)
		DO UPDATE SET active = EXCLUDED.active, expiry = EXCLUDED.expiry
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(grant.Patient),
		uuid.UUID(grant.Accessor),
		grant.Active,
		grant.Expiry,
	)
	if err != nil {
		return fmt.Errorf("save grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, patient, accessor id.Principal) (Grant, error) {
	query := `
		SELECT active, expiry FROM access_grants
		WHERE patient = $1 AND accessor = $2
	`
	grant := Grant{Patient: patient, Accessor: accessor}
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(patient), uuid.UUID(accessor)).
		Scan(&grant.Active, &grant.Expiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Grant{}, sentinel.ErrNotFound
		}
		return Grant{}, fmt.Errorf("find grant: %w", err)
	}
	return grant, nil
}
