package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xaenox/gift-bot/internal/models"
)

type MemoryStorage struct {
	mu      sync.RWMutex
	uploads map[string]*models.Upload
	reports map[int64][]*models.Report
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		uploads: make(map[string]*models.Upload),
		reports: make(map[int64][]*models.Report),
	}
}

// Upload methods
func (s *MemoryStorage) SaveUpload(ctx context.Context, upload *models.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now()
	}

	stored := *upload
	stored.Content = append([]byte(nil), upload.Content...)
	s.uploads[upload.ID] = &stored
	return nil
}

func (s *MemoryStorage) GetUpload(ctx context.Context, id string) (*models.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	upload, exists := s.uploads[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, id)
	}
	out := *upload
	return &out, nil
}

// Report methods
func (s *MemoryStorage) SaveReports(ctx context.Context, reports []*models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, r := range reports {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		stored := *r
		s.reports[r.UserID] = append(s.reports[r.UserID], &stored)
	}
	return nil
}

// GetUserReports returns the user's reports, newest first. Reports of the
// same upload keep their date order.
func (s *MemoryStorage) GetUserReports(ctx context.Context, userID int64, limit, offset int) ([]*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Report, len(s.reports[userID]))
	copy(all, s.reports[userID])
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].Date < all[j].Date
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []*models.Report{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
