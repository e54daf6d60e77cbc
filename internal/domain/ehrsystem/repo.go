package ehrsystem

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for EHR systems.
type Repository interface {
	Create(ctx context.Context, s *EhrSystem) error
	GetByID(ctx context.Context, id uuid.UUID) (*EhrSystem, error)
	Update(ctx context.Context, s *EhrSystem) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*EhrSystem, int, error)
	ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]*EhrSystem, int, error)
}
