package fetchhistory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/ehr/providerhub/internal/platform/blobstore"
)

// -- Mock Repository --

type mockRepo struct {
	fetches   map[int64]*Fetch
	providers map[int64]bool
	nextID    int64
}

func newMockRepo(providerIDs ...int64) *mockRepo {
	m := &mockRepo{fetches: make(map[int64]*Fetch), providers: make(map[int64]bool)}
	for _, id := range providerIDs {
		m.providers[id] = true
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, in *InsertFetch) (*Fetch, error) {
	if !m.providers[in.ProviderID] {
		return nil, ErrProviderNotFound
	}
	m.nextID++
	f := &Fetch{
		ID:         m.nextID,
		ProviderID: in.ProviderID,
		FetchDate:  time.Now().Add(time.Duration(m.nextID) * time.Second),
		S3Location: in.S3Location,
		Status:     in.Status,
	}
	m.fetches[f.ID] = f
	return f, nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Fetch, error) {
	f, ok := m.fetches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

func (m *mockRepo) ListByProvider(_ context.Context, providerID int64, limit, offset int) ([]*Fetch, int, error) {
	var result []*Fetch
	for _, f := range m.fetches {
		if f.ProviderID == providerID {
			result = append(result, f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FetchDate.After(result[j].FetchDate) })
	total := len(result)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

func newTestService() (*Service, *blobstore.InMemoryStore) {
	blobs := blobstore.NewInMemoryStore("provider-fetches")
	return NewService(newMockRepo(1, 2), blobs, "provider-fetches"), blobs
}

func TestService_Record_DefaultsStatus(t *testing.T) {
	svc, _ := newTestService()

	f, err := svc.Record(context.Background(), &InsertFetch{ProviderID: 1, S3Location: "s3://provider-fetches/a.json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Status != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, f.Status)
	}
}

func TestService_Record_Validation(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.Record(context.Background(), &InsertFetch{S3Location: "s3://b/k"}); err == nil {
		t.Error("expected error for missing provider_id")
	}
	if _, err := svc.Record(context.Background(), &InsertFetch{ProviderID: 1}); err == nil {
		t.Error("expected error for missing s3_location")
	}
	_, err := svc.Record(context.Background(), &InsertFetch{ProviderID: 99, S3Location: "s3://b/k"})
	if !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestService_ListByProvider_NewestFirst(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		svc.Record(ctx, &InsertFetch{ProviderID: 1, S3Location: "s3://provider-fetches/x"})
	}
	svc.Record(ctx, &InsertFetch{ProviderID: 2, S3Location: "s3://provider-fetches/y"})

	items, total, err := svc.ListByProvider(ctx, 1, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(items), total)
	}
	if !items[0].FetchDate.After(items[1].FetchDate) {
		t.Error("expected newest fetch first")
	}
}

func TestService_SnapshotKey(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	f, _ := svc.Record(ctx, &InsertFetch{ProviderID: 1, S3Location: "s3://provider-fetches/providers/1/snap.json"})
	key, err := svc.SnapshotKey(ctx, f.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "providers/1/snap.json" {
		t.Errorf("unexpected key %s", key)
	}

	other, _ := svc.Record(ctx, &InsertFetch{ProviderID: 1, S3Location: "s3://elsewhere/snap.json"})
	if _, err := svc.SnapshotKey(ctx, other.ID); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot for foreign bucket, got %v", err)
	}
	if _, err := svc.SnapshotKey(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_SnapshotKey_ErrorMessage(t *testing.T) {
	svc, _ := newTestService()
	f, _ := svc.Record(context.Background(), &InsertFetch{ProviderID: 1, S3Location: "/tmp/local.json"})

	_, err := svc.SnapshotKey(context.Background(), f.ID)
	if err == nil || !strings.Contains(err.Error(), "no stored snapshot") {
		t.Errorf("unexpected error: %v", err)
	}
}
