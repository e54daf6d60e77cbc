package ehrsystem

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	systems   map[uuid.UUID]*EhrSystem
	providers map[int64]bool
}

func newMockRepo(providerIDs ...int64) *mockRepo {
	m := &mockRepo{systems: make(map[uuid.UUID]*EhrSystem), providers: make(map[int64]bool)}
	for _, id := range providerIDs {
		m.providers[id] = true
	}
	return m
}

func (m *mockRepo) check(s *EhrSystem) error {
	for _, other := range m.systems {
		if other.ID != s.ID && other.EhrName == s.EhrName {
			return ErrDuplicate
		}
	}
	if s.ProviderID != nil && !m.providers[*s.ProviderID] {
		return ErrProviderNotFound
	}
	return nil
}

func (m *mockRepo) Create(_ context.Context, s *EhrSystem) error {
	if _, ok := m.systems[s.ID]; ok {
		return ErrDuplicate
	}
	if err := m.check(s); err != nil {
		return err
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.systems[s.ID] = s
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*EhrSystem, error) {
	s, ok := m.systems[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, s *EhrSystem) error {
	if _, ok := m.systems[s.ID]; !ok {
		return ErrNotFound
	}
	if err := m.check(s); err != nil {
		return err
	}
	s.UpdatedAt = time.Now()
	m.systems[s.ID] = s
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.systems[id]; !ok {
		return ErrNotFound
	}
	delete(m.systems, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*EhrSystem, int, error) {
	return page(m.filter(func(*EhrSystem) bool { return true }), limit, offset)
}

func (m *mockRepo) ListByProvider(_ context.Context, providerID int64, limit, offset int) ([]*EhrSystem, int, error) {
	return page(m.filter(func(s *EhrSystem) bool {
		return s.ProviderID != nil && *s.ProviderID == providerID
	}), limit, offset)
}

func (m *mockRepo) filter(keep func(*EhrSystem) bool) []*EhrSystem {
	var out []*EhrSystem
	for _, s := range m.systems {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EhrName < out[j].EhrName })
	return out
}

func page(items []*EhrSystem, limit, offset int) ([]*EhrSystem, int, error) {
	total := len(items)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return items[offset:end], total, nil
}

func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestService_Create_GeneratesID(t *testing.T) {
	svc := NewService(newMockRepo())

	sys, err := svc.Create(context.Background(), &InsertEhrSystem{EhrName: "Epic"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sys.ID == uuid.Nil {
		t.Error("expected a generated id")
	}
	if !sys.IsSupported {
		t.Error("expected is_supported to default to true")
	}
}

func TestService_Create_SuppliedID(t *testing.T) {
	svc := NewService(newMockRepo())
	id := uuid.New()

	sys, err := svc.Create(context.Background(), &InsertEhrSystem{ID: &id, EhrName: "Cerner", IsSupported: boolPtr(false)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sys.ID != id {
		t.Errorf("expected id %s, got %s", id, sys.ID)
	}
	if sys.IsSupported {
		t.Error("expected is_supported false")
	}

	nilID := uuid.Nil
	if _, err := svc.Create(context.Background(), &InsertEhrSystem{ID: &nilID, EhrName: "Other"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for nil uuid, got %v", err)
	}
}

func TestService_Create_Constraints(t *testing.T) {
	svc := NewService(newMockRepo(1))
	ctx := context.Background()

	if _, err := svc.Create(ctx, &InsertEhrSystem{EhrName: "Epic"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Create(ctx, &InsertEhrSystem{EhrName: "Epic"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	if _, err := svc.Create(ctx, &InsertEhrSystem{EhrName: "Athena", ProviderID: int64Ptr(9)}); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}
	if _, err := svc.Create(ctx, &InsertEhrSystem{EhrName: "   "}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestService_Update(t *testing.T) {
	svc := NewService(newMockRepo(1))
	ctx := context.Background()

	sys, _ := svc.Create(ctx, &InsertEhrSystem{EhrName: "Epic"})
	updated, err := svc.Update(ctx, sys.ID, &InsertEhrSystem{EhrName: "Epic Hyperspace", ProviderID: int64Ptr(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.EhrName != "Epic Hyperspace" || updated.ProviderID == nil || *updated.ProviderID != 1 {
		t.Errorf("unexpected system: %+v", updated)
	}

	other := uuid.New()
	if _, err := svc.Update(ctx, sys.ID, &InsertEhrSystem{ID: &other, EhrName: "x"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for mismatched id, got %v", err)
	}
	if _, err := svc.Update(ctx, uuid.New(), &InsertEhrSystem{EhrName: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ListByProvider(t *testing.T) {
	svc := NewService(newMockRepo(1, 2))
	ctx := context.Background()

	svc.Create(ctx, &InsertEhrSystem{EhrName: "Epic", ProviderID: int64Ptr(1)})
	svc.Create(ctx, &InsertEhrSystem{EhrName: "Cerner", ProviderID: int64Ptr(1)})
	svc.Create(ctx, &InsertEhrSystem{EhrName: "Athena", ProviderID: int64Ptr(2)})
	svc.Create(ctx, &InsertEhrSystem{EhrName: "Unlinked"})

	systems, total, err := svc.ListByProvider(ctx, 1, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(systems) != 2 {
		t.Fatalf("expected 2 systems, got %d (total %d)", len(systems), total)
	}
	if systems[0].EhrName != "Cerner" {
		t.Errorf("expected name order, got %s first", systems[0].EhrName)
	}

	_, total, _ = svc.List(ctx, 10, 0)
	if total != 4 {
		t.Errorf("expected 4 systems in total, got %d", total)
	}
}

func TestService_Delete(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	sys, _ := svc.Create(ctx, &InsertEhrSystem{EhrName: "Epic"})
	if err := svc.Delete(ctx, sys.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(ctx, sys.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.Delete(ctx, sys.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
