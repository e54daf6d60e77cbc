package user

import (
	"context"
	"fmt"

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

func (r *repoPG) Create(ctx context.Context, username, passwordHash string) (*User, error) {
	u := &User{Username: username, Password: passwordHash}
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO users (username, password) VALUES ($1, $2) RETURNING id`,
		username, passwordHash,
	).Scan(&u.ID)
	if c, ok := db.IsUniqueViolation(err); ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, schema.DescribeConstraint(c))
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, username, password FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Password)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, username, password FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Password); err != nil {
			return nil, 0, err
		}
		users = append(users, &u)
	}
	return users, total, rows.Err()
}
