// Package catalog reads the per-category product CSV files.
package catalog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"github.com/xaenox/gift-bot/internal/classifier"
	"github.com/xaenox/gift-bot/internal/models"
)

var ErrCategoryUnmapped = errors.New("category has no catalog file")

var categoryFiles = map[string]string{
	classifier.CategoryBeauty:  "beauty.csv",
	classifier.CategoryLeisure: "sport.csv",
	classifier.CategoryLiving:  "living.csv",
	classifier.CategoryDigital: "digital.csv",
	classifier.CategoryFashion: "fashion.csv",
	classifier.CategoryFood:    "food.csv",
	classifier.CategoryBabyPet: "baby.csv",
}

// FileFor returns the catalog file name of category.
func FileFor(category string) (string, error) {
	name, ok := categoryFiles[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrCategoryUnmapped, category)
	}
	return name, nil
}

// Stem returns the cache key base of category, the file name without ".csv".
func Stem(category string) (string, error) {
	name, err := FileFor(category)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(name, filepath.Ext(name)), nil
}

// header aliases, Korean export names first
var columns = map[string]string{
	"상품명":         "name",
	"name":        "name",
	"keywords":    "keywords",
	"키워드":         "keywords",
	"가격":          "price",
	"price":       "price",
	"대분류":         "category",
	"category":    "category",
	"브랜드":         "brand",
	"brand":       "brand",
	"이미지url":      "image_url",
	"image_url":   "image_url",
	"상품url":       "product_url",
	"product_url": "product_url",
}

// Read parses a catalog CSV. The input may be UTF-8 (with or without BOM)
// or CP949. Rows without a product name are skipped.
func Read(r io.Reader) ([]models.Product, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if !utf8.Valid(raw) {
		raw, _, err = transform.Bytes(korean.EUCKR.NewDecoder(), raw)
		if err != nil {
			return nil, fmt.Errorf("decode catalog as cp949: %w", err)
		}
	}
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		key, ok := columns[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	if _, ok := index["name"]; !ok {
		return nil, errors.New("catalog has no product name column")
	}

	field := func(rec []string, key string) string {
		i, ok := index[key]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var products []models.Product
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog row: %w", err)
		}

		p := models.Product{
			Name:       field(rec, "name"),
			Keywords:   field(rec, "keywords"),
			Price:      field(rec, "price"),
			Category:   field(rec, "category"),
			Brand:      field(rec, "brand"),
			ImageURL:   field(rec, "image_url"),
			ProductURL: field(rec, "product_url"),
		}
		if p.Name == "" {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// ReadFile parses the catalog CSV at path.
func ReadFile(path string) ([]models.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	products, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return products, nil
}

// Catalog serves the catalog files of one directory, reading each file at
// most once.
type Catalog struct {
	dir    string
	logger *zap.Logger

	mu      sync.RWMutex
	indexes map[string]*Index
}

func New(dir string, logger *zap.Logger) *Catalog {
	return &Catalog{
		dir:     dir,
		logger:  logger,
		indexes: make(map[string]*Index),
	}
}

func (c *Catalog) Dir() string {
	return c.dir
}

// Index returns the name index of category's catalog file.
func (c *Catalog) Index(category string) (*Index, error) {
	name, err := FileFor(category)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	idx, ok := c.indexes[name]
	c.mu.RUnlock()
	if ok {
		return idx, nil
	}

	products, err := ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		return nil, err
	}
	idx = NewIndex(products)

	c.mu.Lock()
	c.indexes[name] = idx
	c.mu.Unlock()

	c.logger.Debug("Catalog loaded",
		zap.String("category", category),
		zap.String("file", name),
		zap.Int("products", len(products)))
	return idx, nil
}

// Index looks catalog rows up by product name.
type Index struct {
	products []models.Product
}

func NewIndex(products []models.Product) *Index {
	return &Index{products: products}
}

// Lookup returns the first row, in file order, whose name contains name.
// The match is case-sensitive.
func (x *Index) Lookup(name string) (models.Product, bool) {
	if name == "" {
		return models.Product{}, false
	}
	for _, p := range x.products {
		if strings.Contains(p.Name, name) {
			return p, true
		}
	}
	return models.Product{}, false
}

func (x *Index) Len() int {
	return len(x.products)
}
