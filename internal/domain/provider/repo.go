package provider

import "context"

// Repository defines the persistence interface for providers.
type Repository interface {
	Create(ctx context.Context, in *InsertProvider) (*Provider, error)
	GetByID(ctx context.Context, id int64) (*Provider, error)
	Update(ctx context.Context, p *Provider) error
	Delete(ctx context.Context, id int64) error
	// Search matches q against name, group id and email case-insensitively
	// and against phone case-sensitively. An empty q matches every row.
	Search(ctx context.Context, q string, limit, offset int) ([]*Provider, int, error)
	All(ctx context.Context) ([]*Provider, error)
}
