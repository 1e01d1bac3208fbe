// Package cache stores pre-computed product embeddings per catalog file and
// resolves the artifact that serves a category at a given intimacy.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/xaenox/gift-bot/internal/models"
)

var ErrNotFound = errors.New("cache artifact not found")

// Store persists one product list per key. A key is a catalog file stem,
// optionally with an intimacy tier suffix ("sport", "sport_3").
type Store interface {
	Load(ctx context.Context, key string) ([]models.Product, error)
	Save(ctx context.Context, key string, products []models.Product) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Tier returns the artifact suffix for an intimacy score.
func Tier(score float64) string {
	switch {
	case score < 2:
		return "_2"
	case score < 3:
		return "_3"
	case score < 4:
		return "_4"
	default:
		return "_5"
	}
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid cache key %q", key)
	}
	return nil
}

// FileStore keeps each artifact in <dir>/<key>.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) Load(ctx context.Context, key string) ([]models.Product, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read cache artifact: %w", err)
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode cache artifact %s: %w", key, err)
	}
	return products, nil
}

// Save writes the artifact through a temporary file so readers never see a
// partial write.
func (s *FileStore) Save(ctx context.Context, key string, products []models.Product) error {
	if err := validKey(key); err != nil {
		return err
	}
	if products == nil {
		products = []models.Product{}
	}
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("encode cache artifact: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache artifact: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish cache artifact: %w", err)
	}
	return nil
}

func (s *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
