package integration

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ehr/providerhub/internal/directory"
	"github.com/ehr/providerhub/internal/domain/ehrsystem"
	"github.com/ehr/providerhub/internal/domain/fetchhistory"
	"github.com/ehr/providerhub/internal/domain/provider"
	"github.com/ehr/providerhub/internal/platform/blobstore"
	"github.com/ehr/providerhub/internal/platform/lock"
)

type stack struct {
	providers *provider.Service
	systems   *ehrsystem.Service
	history   *fetchhistory.Service
	blobs     *blobstore.InMemoryStore
}

func newStack() *stack {
	blobs := blobstore.NewInMemoryStore("provider-fetches")
	history := fetchhistory.NewService(fetchhistory.NewRepo(globalDB.Pool), blobs, "provider-fetches")
	systems := ehrsystem.NewService(ehrsystem.NewRepo(globalDB.Pool))
	providers := provider.NewService(provider.NewRepo(globalDB.Pool), lock.NewMemoryLocker(), blobs, history, zerolog.Nop())
	providers.SetSystemLister(systems)
	return &stack{providers: providers, systems: systems, history: history, blobs: blobs}
}

func seedSamples(t *testing.T, ctx context.Context, svc *provider.Service) []*provider.Provider {
	t.Helper()
	var out []*provider.Provider
	for _, in := range directory.SampleInserts() {
		p, err := svc.Create(ctx, in)
		if err != nil {
			t.Fatalf("seed %q: %v", in.Name, err)
		}
		out = append(out, p)
	}
	return out
}

func TestProviderCRUD(t *testing.T) {
	ctx := context.Background()
	resetTables(t, ctx)
	s := newStack()

	created, err := s.providers.Create(ctx, &provider.InsertProvider{
		Name:    "  Riverbend Clinic ",
		Email:   "ops@riverbend.example",
		Phone:   "(555) 010-2000",
		GroupID: ptrStr("RB-001"),
		City:    ptrStr("Dayton"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected a generated id")
	}
	if created.Name != "Riverbend Clinic" {
		t.Errorf("expected trimmed name, got %q", created.Name)
	}
	if created.Status != provider.DefaultStatus {
		t.Errorf("expected default status, got %q", created.Status)
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected created_at to be set by the database")
	}
	if created.LastDataFetch != nil {
		t.Error("expected no last_data_fetch before any refresh")
	}

	updated, err := s.providers.Update(ctx, created.ID, &provider.InsertProvider{
		Name:   "Riverbend Clinic",
		Email:  "ops@riverbend.example",
		Phone:  "(555) 010-2000",
		Status: "Active",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != "Active" || updated.GroupID != nil {
		t.Errorf("expected full replace, got status=%q group=%v", updated.Status, updated.GroupID)
	}

	fetched, err := s.providers.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != "Active" {
		t.Errorf("expected persisted status Active, got %q", fetched.Status)
	}

	if err := s.providers.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.providers.Get(ctx, created.ID); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.providers.Delete(ctx, created.ID); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestProviderGroupIDUnique(t *testing.T) {
	ctx := context.Background()
	resetTables(t, ctx)
	s := newStack()

	in := func(name string, group *string) *provider.InsertProvider {
		return &provider.InsertProvider{Name: name, Email: "a@b.example", Phone: "555", GroupID: group}
	}

	if _, err := s.providers.Create(ctx, in("First", ptrStr("GRP-1"))); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.providers.Create(ctx, in("Second", ptrStr("GRP-1"))); !errors.Is(err, provider.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	// NULL group ids never collide.
	if _, err := s.providers.Create(ctx, in("Third", nil)); err != nil {
		t.Fatalf("Create without group: %v", err)
	}
	if _, err := s.providers.Create(ctx, in("Fourth", nil)); err != nil {
		t.Errorf("expected a second provider without group to be accepted, got %v", err)
	}
}

func TestProviderSearch(t *testing.T) {
	ctx := context.Background()
	resetTables(t, ctx)
	s := newStack()
	seedSamples(t, ctx, s.providers)

	tests := []struct {
		q    string
		want int
	}{
		{"", 4},
		{"northwest", 1},
		{"NORTHWEST", 1},
		{"2024", 2},
		{"%", 0},
		{"zzz-no-match", 0},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			got, total, err := s.providers.Search(ctx, tt.q, 20, 0)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if total != tt.want || len(got) != tt.want {
				t.Errorf("Search(%q): got %d rows (total %d), want %d", tt.q, len(got), total, tt.want)
			}
		})
	}

	// The SQL predicate agrees with the in-memory filter.
	all, err := s.providers.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	rows := make([]directory.Provider, 0, len(all))
	for _, p := range all {
		rows = append(rows, directory.FromProvider(p))
	}
	for _, q := range []string{"northwest", " northwest", "   ", "2024", "health", "@"} {
		_, total, err := s.providers.Search(ctx, q, 20, 0)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if n := len(directory.Filter(rows, q)); n != total {
			t.Errorf("query %q: sql matched %d, filter matched %d", q, total, n)
		}
	}
}

func TestEhrSystemLinks(t *testing.T) {
	ctx := context.Background()
	resetTables(t, ctx)
	s := newStack()
	p := seedSamples(t, ctx, s.providers)[0]

	sys, err := s.systems.Create(ctx, &ehrsystem.InsertEhrSystem{EhrName: "Epic", ProviderID: &p.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !sys.IsSupported {
		t.Error("expected is_supported to default to true")
	}
	if sys.CreatedAt.IsZero() || sys.UpdatedAt.IsZero() {
		t.Error("expected timestamps from the database")
	}

	if _, err := s.systems.Create(ctx, &ehrsystem.InsertEhrSystem{EhrName: "Epic"}); !errors.Is(err, ehrsystem.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for repeated ehr_name, got %v", err)
	}

	missing := int64(999999)
	if _, err := s.systems.Create(ctx, &ehrsystem.InsertEhrSystem{EhrName: "Cerner", ProviderID: &missing}); !errors.Is(err, ehrsystem.ErrProviderNotFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}

	linked, total, err := s.systems.ListByProvider(ctx, p.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListByProvider: %v", err)
	}
	if total != 1 || len(linked) != 1 || linked[0].ID != sys.ID {
		t.Errorf("expected the linked system, got %d (total %d)", len(linked), total)
	}

	// Deleting the provider unlinks the system instead of removing it.
	if err := s.providers.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete provider: %v", err)
	}
	got, err := s.systems.Get(ctx, sys.ID)
	if err != nil {
		t.Fatalf("Get system: %v", err)
	}
	if got.ProviderID != nil {
		t.Errorf("expected provider_id cleared, got %v", *got.ProviderID)
	}
}

func TestRefreshRecordsFetchHistory(t *testing.T) {
	ctx := context.Background()
	resetTables(t, ctx)
	s := newStack()
	p := seedSamples(t, ctx, s.providers)[1]

	if _, err := s.systems.Create(ctx, &ehrsystem.InsertEhrSystem{EhrName: "athenahealth", ProviderID: &p.ID}); err != nil {
		t.Fatalf("Create system: %v", err)
	}

	res, err := s.providers.Refresh(ctx, p.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Fetch.Status != fetchhistory.StatusCompleted {
		t.Errorf("expected completed fetch, got %q", res.Fetch.Status)
	}

	reloaded, err := s.providers.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reloaded.LastDataFetch == nil || !reloaded.LastDataFetch.Equal(res.LastDataFetch) {
		t.Errorf("expected last_data_fetch %v from history, got %v", res.LastDataFetch, reloaded.LastDataFetch)
	}

	key, err := s.history.SnapshotKey(ctx, res.Fetch.ID)
	if err != nil {
		t.Fatalf("SnapshotKey: %v", err)
	}
	rc, _, err := s.blobs.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get snapshot: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap provider.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.ProviderID != p.ID || len(snap.EhrSystems) != 1 {
		t.Errorf("unexpected snapshot: provider %d, %d systems", snap.ProviderID, len(snap.EhrSystems))
	}

	fetches, total, err := s.history.ListByProvider(ctx, p.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListByProvider: %v", err)
	}
	if total != 1 || len(fetches) != 1 {
		t.Fatalf("expected one fetch, got %d", total)
	}

	// History rows go with their provider.
	if err := s.providers.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete provider: %v", err)
	}
	if _, err := s.history.Get(ctx, res.Fetch.ID); !errors.Is(err, fetchhistory.ErrNotFound) {
		t.Errorf("expected fetch removed with provider, got %v", err)
	}
}

func TestFetchHistoryRequiresProvider(t *testing.T) {
	ctx := context.Background()
	resetTables(t, ctx)
	s := newStack()

	_, err := s.history.Record(ctx, &fetchhistory.InsertFetch{ProviderID: 424242, S3Location: "s3://provider-fetches/x.json"})
	if !errors.Is(err, fetchhistory.ErrProviderNotFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestDirectoryOverDatabase(t *testing.T) {
	ctx := context.Background()
	resetTables(t, ctx)
	s := newStack()
	seeded := seedSamples(t, ctx, s.providers)

	view := directory.NewView(directory.NewServiceSource(s.providers), nil)
	if err := view.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := len(view.Providers()); n != len(seeded) {
		t.Fatalf("expected %d providers, got %d", len(seeded), n)
	}

	target := directory.FromProvider(seeded[0]).ID
	view.RequestDelete(target)
	if err := view.ConfirmDelete(ctx); err != nil {
		t.Fatalf("ConfirmDelete: %v", err)
	}
	if n := len(view.Providers()); n != len(seeded)-1 {
		t.Errorf("expected row removed from the view, got %d rows", n)
	}
	if _, err := s.providers.Get(ctx, seeded[0].ID); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("expected row deleted from the database, got %v", err)
	}

	// A row another view already deleted still leaves this one.
	other := directory.NewView(directory.NewServiceSource(s.providers), nil)
	if err := other.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	goneID := directory.FromProvider(seeded[2]).ID
	if err := s.providers.Delete(ctx, seeded[2].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	other.RequestDelete(goneID)
	if err := other.ConfirmDelete(ctx); err != nil {
		t.Fatalf("expected deleting a vanished row to succeed, got %v", err)
	}
	for _, row := range other.Providers() {
		if row.ID == goneID {
			t.Error("expected the vanished row removed from the view")
		}
	}
	if other.DialogOpen() {
		t.Error("expected dialog closed")
	}

	refreshID := directory.FromProvider(seeded[1]).ID
	if err := view.Refresh(ctx, refreshID); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	for _, row := range view.Providers() {
		if row.ID == refreshID && row.LastDataFetch == nil {
			t.Error("expected last_data_fetch on the refreshed row")
		}
	}
}
