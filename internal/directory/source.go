package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ehr/providerhub/internal/domain/provider"
)

// ProviderService is the part of provider.Service a ServiceSource needs.
type ProviderService interface {
	All(ctx context.Context) ([]*provider.Provider, error)
	Delete(ctx context.Context, id int64) error
	Refresh(ctx context.Context, id int64) (*provider.RefreshResult, error)
}

// ServiceSource serves a View from the provider store.
type ServiceSource struct {
	svc ProviderService
}

func NewServiceSource(svc ProviderService) *ServiceSource {
	return &ServiceSource{svc: svc}
}

func (s *ServiceSource) ListProviders(ctx context.Context) ([]Provider, error) {
	rows, err := s.svc.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	out := make([]Provider, 0, len(rows))
	for _, p := range rows {
		out = append(out, FromProvider(p))
	}
	return out, nil
}

// DeleteProvider succeeds for a provider that is already gone, so a row
// deleted elsewhere still leaves the view.
func (s *ServiceSource) DeleteProvider(ctx context.Context, id string) error {
	n, err := parseProviderID(id)
	if err != nil {
		return err
	}
	if err := s.svc.Delete(ctx, n); err != nil && !errors.Is(err, provider.ErrNotFound) {
		return err
	}
	return nil
}

func (s *ServiceSource) RefetchProvider(ctx context.Context, id string) (Provider, error) {
	n, err := parseProviderID(id)
	if err != nil {
		return Provider{}, err
	}
	res, err := s.svc.Refresh(ctx, n)
	if err != nil {
		return Provider{}, err
	}
	return FromProvider(res.Provider), nil
}

func parseProviderID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid provider id %q", id)
	}
	return n, nil
}

// FromProvider converts a stored provider row to its directory form.
func FromProvider(p *provider.Provider) Provider {
	onboarded := p.CreatedAt
	out := Provider{
		ID:            strconv.FormatInt(p.ID, 10),
		ProviderName:  p.Name,
		ProviderType:  p.ProviderType,
		EhrGroupID:    p.GroupID,
		ContactEmail:  p.Email,
		ContactPhone:  p.Phone,
		Address:       p.FullAddress(),
		Status:        p.Status,
		Notes:         p.Notes,
		LastDataFetch: p.LastDataFetch,
	}
	if !onboarded.IsZero() {
		out.OnboardedDate = &onboarded
	}
	return out
}
