package provider

import (
	"context"
	"fmt"
	"strings"

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

const providerColumns = `p.id, p.name, p.provider_type, p.group_id, p.contact_name,
	p.email, p.phone, p.company, p.address, p.city, p.state, p.postal_code,
	p.status, p.notes, p.created_at,
	(SELECT MAX(f.fetch_date) FROM data_fetch_history f WHERE f.provider_id = p.id)`

func (r *repoPG) Create(ctx context.Context, in *InsertProvider) (*Provider, error) {
	var id int64
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO healthcare_providers (
			name, provider_type, group_id, contact_name,
			email, phone, company, address, city, state, postal_code,
			status, notes
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10, $11,
			$12, $13
		) RETURNING id`,
		in.Name, in.ProviderType, in.GroupID, in.ContactName,
		in.Email, in.Phone, in.Company, in.Address, in.City, in.State, in.PostalCode,
		in.Status, in.Notes,
	).Scan(&id)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return r.GetByID(ctx, id)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Provider, error) {
	p, err := scanProvider(r.conn(ctx).QueryRow(ctx,
		`SELECT `+providerColumns+` FROM healthcare_providers p WHERE p.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) Update(ctx context.Context, p *Provider) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE healthcare_providers SET
			name = $2, provider_type = $3, group_id = $4, contact_name = $5,
			email = $6, phone = $7, company = $8, address = $9, city = $10,
			state = $11, postal_code = $12, status = $13, notes = $14
		WHERE id = $1`,
		p.ID, p.Name, p.ProviderType, p.GroupID, p.ContactName,
		p.Email, p.Phone, p.Company, p.Address, p.City,
		p.State, p.PostalCode, p.Status, p.Notes,
	)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM healthcare_providers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, q string, limit, offset int) ([]*Provider, int, error) {
	where := ``
	var args []interface{}
	if q != "" {
		where = ` WHERE p.name ILIKE $1 ESCAPE '\'
			OR (p.group_id IS NOT NULL AND p.group_id ILIKE $1 ESCAPE '\')
			OR p.email ILIKE $1 ESCAPE '\'
			OR p.phone LIKE $1 ESCAPE '\'`
		args = append(args, "%"+escapeLike(q)+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM healthcare_providers p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + providerColumns + ` FROM healthcare_providers p` + where +
		fmt.Sprintf(` ORDER BY p.created_at, p.id LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, offset)

	providers, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return providers, total, nil
}

func (r *repoPG) All(ctx context.Context) ([]*Provider, error) {
	return r.query(ctx, `SELECT `+providerColumns+` FROM healthcare_providers p ORDER BY p.created_at, p.id`)
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Provider, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(
		&p.ID, &p.Name, &p.ProviderType, &p.GroupID, &p.ContactName,
		&p.Email, &p.Phone, &p.Company, &p.Address, &p.City, &p.State, &p.PostalCode,
		&p.Status, &p.Notes, &p.CreatedAt,
		&p.LastDataFetch,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func mapWriteErr(err error) error {
	if c, ok := db.IsUniqueViolation(err); ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, schema.DescribeConstraint(c))
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
