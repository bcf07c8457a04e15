// Package buckets implements the Buckets collaborator (spec §3, §6):
// loading the BucketList for an experiment, consulted during DRAFT->RUNNING
// to validate allocation sanity. Bucket assignment (traffic-splitting math)
// is explicitly out of scope; this package only stores and returns the
// configured arms.
package buckets

import (
	"context"
	"sync"

	"github.com/abtest/experiment-core/internal/models"
)

// Store holds the configured BucketList per experiment id. Production
// deployments would persist this alongside the experiment; an in-memory
// store is sufficient here since bucket CRUD internals are out of scope and
// only getBuckets(id) is named by the spec.
type Store interface {
	GetBuckets(ctx context.Context, experimentID string) (*models.BucketList, error)
	SetBuckets(ctx context.Context, experimentID string, buckets []models.Bucket) error
}

// MemStore is an in-memory Store guarded by a single RWMutex, following the
// same manager pattern used by internal/priority and internal/rules.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]models.Bucket
}

// NewMemStore creates an empty bucket store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]models.Bucket)}
}

// GetBuckets returns the BucketList for experimentID, empty if none is set.
func (s *MemStore) GetBuckets(ctx context.Context, experimentID string) (*models.BucketList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bs := s.data[experimentID]
	cp := make([]models.Bucket, len(bs))
	copy(cp, bs)
	return &models.BucketList{ExperimentID: experimentID, Buckets: cp}, nil
}

// SetBuckets replaces the BucketList for experimentID.
func (s *MemStore) SetBuckets(ctx context.Context, experimentID string, bs []models.Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]models.Bucket, len(bs))
	copy(cp, bs)
	s.data[experimentID] = cp
	return nil
}
