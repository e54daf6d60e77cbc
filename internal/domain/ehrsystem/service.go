package ehrsystem

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("ehr system not found")
	ErrDuplicate        = errors.New("ehr system already exists")
	ErrProviderNotFound = errors.New("provider not found")
	ErrInvalid          = errors.New("invalid ehr system")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, in *InsertEhrSystem) (*EhrSystem, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	sys := &EhrSystem{ID: uuid.New()}
	if in.ID != nil {
		if *in.ID == uuid.Nil {
			return nil, fmt.Errorf("%w: id must not be the nil UUID", ErrInvalid)
		}
		sys.ID = *in.ID
	}
	in.apply(sys)
	if err := s.repo.Create(ctx, sys); err != nil {
		return nil, err
	}
	return sys, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*EhrSystem, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces the writable fields of system id. A payload id, when
// present, must match.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *InsertEhrSystem) (*EhrSystem, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	if in.ID != nil && *in.ID != id {
		return nil, fmt.Errorf("%w: id in body does not match path", ErrInvalid)
	}
	sys, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(sys)
	if err := s.repo.Update(ctx, sys); err != nil {
		return nil, err
	}
	return sys, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*EhrSystem, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]*EhrSystem, int, error) {
	return s.repo.ListByProvider(ctx, providerID, limit, offset)
}

func validate(in *InsertEhrSystem) error {
	in.EhrName = strings.TrimSpace(in.EhrName)
	if in.EhrName == "" {
		return fmt.Errorf("%w: ehr_name is required", ErrInvalid)
	}
	return nil
}
