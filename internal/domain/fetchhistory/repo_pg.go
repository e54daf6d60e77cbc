package fetchhistory

import (
	"context"
	"fmt"

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

const fetchColumns = `id, provider_id, fetch_date, s3_location, status`

func (r *repoPG) Create(ctx context.Context, in *InsertFetch) (*Fetch, error) {
	status := in.Status
	if status == "" {
		status = StatusCompleted
	}
	f, err := scanFetch(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO data_fetch_history (provider_id, s3_location, status)
		VALUES ($1, $2, $3)
		RETURNING `+fetchColumns,
		in.ProviderID, in.S3Location, status,
	))
	if err != nil {
		if c, ok := db.IsForeignKeyViolation(err); ok {
			return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, schema.DescribeConstraint(c))
		}
		return nil, err
	}
	return f, nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Fetch, error) {
	f, err := scanFetch(r.conn(ctx).QueryRow(ctx, `SELECT `+fetchColumns+` FROM data_fetch_history WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return f, err
}

func (r *repoPG) ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]*Fetch, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM data_fetch_history WHERE provider_id = $1`, providerID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+fetchColumns+` FROM data_fetch_history
		WHERE provider_id = $1
		ORDER BY fetch_date DESC, id DESC
		LIMIT $2 OFFSET $3`, providerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Fetch
	for rows.Next() {
		f, err := scanFetch(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}

func scanFetch(row pgx.Row) (*Fetch, error) {
	var f Fetch
	if err := row.Scan(&f.ID, &f.ProviderID, &f.FetchDate, &f.S3Location, &f.Status); err != nil {
		return nil, err
	}
	return &f, nil
}
