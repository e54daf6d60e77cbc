package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ehr/providerhub/internal/domain/ehrsystem"
	"github.com/ehr/providerhub/internal/domain/fetchhistory"
	"github.com/ehr/providerhub/internal/platform/blobstore"
	"github.com/ehr/providerhub/internal/platform/lock"
)

var (
	ErrNotFound          = errors.New("provider not found")
	ErrDuplicate         = errors.New("provider already exists")
	ErrRefreshInProgress = errors.New("refresh already in progress")
	ErrInvalid           = errors.New("invalid provider")
)

// DefaultRefreshLockTTL bounds how long a crashed refresh can block others.
const DefaultRefreshLockTTL = 2 * time.Minute

// HistoryRecorder records a completed data fetch.
type HistoryRecorder interface {
	Record(ctx context.Context, in *fetchhistory.InsertFetch) (*fetchhistory.Fetch, error)
}

// SystemLister lists the EHR systems linked to a provider.
type SystemLister interface {
	ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]*ehrsystem.EhrSystem, int, error)
}

type Service struct {
	repo    Repository
	locker  lock.Locker
	blobs   blobstore.Store
	history HistoryRecorder
	systems SystemLister
	lockTTL time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, locker lock.Locker, blobs blobstore.Store, history HistoryRecorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		locker:  locker,
		blobs:   blobs,
		history: history,
		lockTTL: DefaultRefreshLockTTL,
		logger:  logger.With().Str("component", "provider").Logger(),
		now:     time.Now,
	}
}

// SetLockTTL overrides the refresh lock lifetime.
func (s *Service) SetLockTTL(ttl time.Duration) {
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// SetSystemLister includes linked EHR systems in refresh snapshots.
func (s *Service) SetSystemLister(l SystemLister) {
	s.systems = l
}

// -- CRUD --

func (s *Service) Create(ctx context.Context, in *InsertProvider) (*Provider, error) {
	if err := normalize(in); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, in)
}

func (s *Service) Get(ctx context.Context, id int64) (*Provider, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces every writable field of provider id with in.
func (s *Service) Update(ctx context.Context, id int64, in *InsertProvider) (*Provider, error) {
	if err := normalize(in); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Search matches q literally, surrounding spaces included, the same way the
// directory view filters its rows.
func (s *Service) Search(ctx context.Context, q string, limit, offset int) ([]*Provider, int, error) {
	return s.repo.Search(ctx, q, limit, offset)
}

// All returns every provider in creation order.
func (s *Service) All(ctx context.Context) ([]*Provider, error) {
	return s.repo.All(ctx)
}

func normalize(in *InsertProvider) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if strings.TrimSpace(in.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalid)
	}
	if strings.TrimSpace(in.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalid)
	}
	if in.GroupID != nil && strings.TrimSpace(*in.GroupID) == "" {
		in.GroupID = nil
	}
	if in.Status == "" {
		in.Status = DefaultStatus
	}
	return nil
}

// -- Refresh --

func refreshLockKey(id int64) string {
	return "provider-refresh:" + strconv.FormatInt(id, 10)
}

// Refresh re-reads provider id, stores a snapshot of it and its EHR systems
// in object storage and records the fetch. Only one refresh per provider runs
// at a time; a concurrent call gets ErrRefreshInProgress.
func (s *Service) Refresh(ctx context.Context, id int64) (*RefreshResult, error) {
	key := refreshLockKey(id)
	token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire refresh lock: %w", err)
	}
	if !ok {
		return nil, ErrRefreshInProgress
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn().Err(err).Int64("provider_id", id).Msg("release refresh lock")
		}
	}()

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := Snapshot{ProviderID: id, FetchedAt: s.now().UTC(), Provider: p, EhrSystems: []*ehrsystem.EhrSystem{}}
	if s.systems != nil {
		systems, _, err := s.systems.ListByProvider(ctx, id, 1000, 0)
		if err != nil {
			return nil, fmt.Errorf("list ehr systems: %w", err)
		}
		if systems != nil {
			snap.EhrSystems = systems
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	objKey := fmt.Sprintf("providers/%d/%s.json", id, snap.FetchedAt.Format("20060102T150405.000000000Z"))
	meta := map[string]string{"provider-id": strconv.FormatInt(id, 10)}
	if _, err := s.blobs.Put(ctx, objKey, "application/json", bytes.NewReader(data), int64(len(data)), meta); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}

	fetch, err := s.history.Record(ctx, &fetchhistory.InsertFetch{
		ProviderID: id,
		S3Location: s.blobs.Location(objKey),
		Status:     fetchhistory.StatusCompleted,
	})
	if err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), objKey); derr != nil {
			s.logger.Warn().Err(derr).Int64("provider_id", id).Str("key", objKey).Msg("remove unrecorded snapshot")
		}
		return nil, fmt.Errorf("record fetch: %w", err)
	}

	p.LastDataFetch = &fetch.FetchDate
	s.logger.Debug().
		Int64("provider_id", id).
		Str("s3_location", fetch.S3Location).
		Int("ehr_systems", len(snap.EhrSystems)).
		Msg("provider refreshed")

	return &RefreshResult{Provider: p, LastDataFetch: fetch.FetchDate, Fetch: fetch}, nil
}
