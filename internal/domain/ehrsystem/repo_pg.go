package ehrsystem

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/providerhub/internal/platform/db"
	"github.com/ehr/providerhub/internal/schema"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const systemColumns = `id, ehr_name, api_base_endpoint, description, is_supported,
	created_at, updated_at, provider_id`

func (r *repoPG) Create(ctx context.Context, s *EhrSystem) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ehr_systems (id, ehr_name, api_base_endpoint, description, is_supported, provider_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		s.ID, s.EhrName, s.APIBaseEndpoint, s.Description, s.IsSupported, s.ProviderID,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return mapWriteErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*EhrSystem, error) {
	s, err := scanSystem(r.conn(ctx).QueryRow(ctx, `SELECT `+systemColumns+` FROM ehr_systems WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *repoPG) Update(ctx context.Context, s *EhrSystem) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE ehr_systems SET
			ehr_name = $2, api_base_endpoint = $3, description = $4,
			is_supported = $5, provider_id = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.EhrName, s.APIBaseEndpoint, s.Description, s.IsSupported, s.ProviderID,
	).Scan(&s.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return mapWriteErr(err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM ehr_systems WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*EhrSystem, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ehr_systems`).Scan(&total); err != nil {
		return nil, 0, err
	}
	systems, err := r.query(ctx, `SELECT `+systemColumns+` FROM ehr_systems ORDER BY ehr_name LIMIT $1 OFFSET $2`, limit, offset)
	return systems, total, err
}

func (r *repoPG) ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]*EhrSystem, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ehr_systems WHERE provider_id = $1`, providerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	systems, err := r.query(ctx, `
		SELECT `+systemColumns+` FROM ehr_systems
		WHERE provider_id = $1
		ORDER BY ehr_name LIMIT $2 OFFSET $3`, providerID, limit, offset)
	return systems, total, err
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*EhrSystem, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*EhrSystem
	for rows.Next() {
		s, err := scanSystem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSystem(row pgx.Row) (*EhrSystem, error) {
	var s EhrSystem
	err := row.Scan(&s.ID, &s.EhrName, &s.APIBaseEndpoint, &s.Description, &s.IsSupported,
		&s.CreatedAt, &s.UpdatedAt, &s.ProviderID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if c, ok := db.IsUniqueViolation(err); ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, schema.DescribeConstraint(c))
	}
	if c, ok := db.IsForeignKeyViolation(err); ok {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, schema.DescribeConstraint(c))
	}
	return err
}
