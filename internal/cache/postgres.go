package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/xaenox/gift-bot/internal/models"
)

//go:embed schema.sql
var schema string

// PostgresStore keeps artifacts as rows of product_embeddings with a
// pgvector embedding column.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore uses db, which the caller owns, and creates the table if
// needed.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("error initializing embedding schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Load(ctx context.Context, key string) ([]models.Product, error) {
	query := `
		SELECT name, keywords, price, category, brand, image_url, product_url, embedding
		FROM product_embeddings
		WHERE cache_key = $1
		ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("error querying embeddings: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		var vec pgvector.Vector
		err := rows.Scan(
			&p.Name,
			&p.Keywords,
			&p.Price,
			&p.Category,
			&p.Brand,
			&p.ImageURL,
			&p.ProductURL,
			&vec,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning embedding: %w", err)
		}
		p.Embedding = vec.Slice()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading embeddings: %w", err)
	}

	if len(products) == 0 {
		exists, err := s.Exists(ctx, key)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
	}
	return products, nil
}

// Save replaces the artifact in one transaction. An artifact without
// products is recorded in product_embedding_keys only.
func (s *PostgresStore) Save(ctx context.Context, key string, products []models.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_embeddings WHERE cache_key = $1`, key); err != nil {
		return fmt.Errorf("error clearing embeddings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO product_embeddings
			(cache_key, position, name, keywords, price, category, brand, image_url, product_url, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range products {
		_, err := stmt.ExecContext(ctx,
			key, i,
			p.Name, p.Keywords, p.Price, p.Category, p.Brand, p.ImageURL, p.ProductURL,
			pgvector.NewVector(p.Embedding),
		)
		if err != nil {
			return fmt.Errorf("error inserting embedding %d: %w", i, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO product_embedding_keys (cache_key, products, built_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (cache_key) DO UPDATE SET products = EXCLUDED.products, built_at = EXCLUDED.built_at`,
		key, len(products))
	if err != nil {
		return fmt.Errorf("error recording artifact: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM product_embedding_keys WHERE cache_key = $1)`, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking artifact: %w", err)
	}
	return exists, nil
}
