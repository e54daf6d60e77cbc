package fetchhistory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ehr/providerhub/internal/platform/blobstore"
)

var (
	ErrNotFound         = errors.New("fetch history entry not found")
	ErrProviderNotFound = errors.New("provider not found")
	ErrNoSnapshot       = errors.New("fetch has no stored snapshot")
)

type Service struct {
	repo  Repository
	blobs blobstore.Store
	// bucket is used to turn s3_location back into an object key.
	bucket string
}

func NewService(repo Repository, blobs blobstore.Store, bucket string) *Service {
	return &Service{repo: repo, blobs: blobs, bucket: bucket}
}

func (s *Service) Record(ctx context.Context, in *InsertFetch) (*Fetch, error) {
	if in.ProviderID <= 0 {
		return nil, fmt.Errorf("provider_id is required")
	}
	if in.S3Location == "" {
		return nil, fmt.Errorf("s3_location is required")
	}
	if in.Status == "" {
		in.Status = StatusCompleted
	}
	return s.repo.Create(ctx, in)
}

func (s *Service) Get(ctx context.Context, id int64) (*Fetch, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByProvider(ctx context.Context, providerID int64, limit, offset int) ([]*Fetch, int, error) {
	return s.repo.ListByProvider(ctx, providerID, limit, offset)
}

// SnapshotKey resolves the object key of the snapshot a fetch points at.
func (s *Service) SnapshotKey(ctx context.Context, id int64) (string, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	key, err := blobstore.ParseLocation(s.bucket, f.S3Location)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSnapshot, err)
	}
	return key, nil
}
