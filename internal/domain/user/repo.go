package user

import "context"

// Repository defines the persistence interface for users.
type Repository interface {
	Create(ctx context.Context, username, passwordHash string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
}
