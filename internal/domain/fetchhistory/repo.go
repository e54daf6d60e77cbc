package fetchhistory

import "context"

// Repository defines the persistence interface for fetch history.
type Repository interface {
	Create(ctx context.Context, in *InsertFetch) (*Fetch, error)
	GetByID(ctx context.Context, id int64) (*Fetch, error)
	ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]*Fetch, int, error)
}
