package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports whether err is a unique constraint violation and
// returns the violated constraint name.
func IsUniqueViolation(err error) (string, bool) {
	return constraintError(err, codeUniqueViolation)
}

// IsForeignKeyViolation reports whether err is a foreign key violation and
// returns the violated constraint name.
func IsForeignKeyViolation(err error) (string, bool) {
	return constraintError(err, codeForeignKeyViolation)
}

func constraintError(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}
