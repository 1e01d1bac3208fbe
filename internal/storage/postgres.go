package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/xaenox/gift-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", config.Host),
		zap.String("database", config.DBName))
	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	// Read migrations file
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	// Execute migrations
	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

// DB exposes the connection pool for stores sharing the database.
func (s *PostgresStorage) DB() *sql.DB {
	return s.db
}

func (s *PostgresStorage) SaveUpload(ctx context.Context, upload *models.Upload) error {
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}

	query := `
		INSERT INTO uploads (id, user_id, filename, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx,
		query,
		upload.ID,
		upload.UserID,
		upload.Filename,
		upload.Content,
	).Scan(&upload.CreatedAt)

	if err != nil {
		return fmt.Errorf("error saving upload: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetUpload(ctx context.Context, id string) (*models.Upload, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, id)
	}

	query := `
		SELECT id, user_id, filename, content, created_at
		FROM uploads
		WHERE id = $1`

	upload := &models.Upload{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&upload.ID,
		&upload.UserID,
		&upload.Filename,
		&upload.Content,
		&upload.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying upload: %w", err)
	}

	return upload, nil
}

func (s *PostgresStorage) SaveReports(ctx context.Context, reports []*models.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO reports (id, file_id, user_id, report_date, subject, category, intimacy, keywords, products, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := time.Now()
	for _, r := range reports {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}

		_, err := tx.ExecContext(ctx,
			query,
			r.ID,
			r.FileID,
			r.UserID,
			r.Date,
			r.Subject,
			r.Category,
			r.Intimacy,
			pq.Array(nonNil(r.Keywords)),
			pq.Array(nonNil(r.Products)),
			r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("error saving report: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStorage) GetUserReports(ctx context.Context, userID int64, limit, offset int) ([]*models.Report, error) {
	// LIMIT NULL returns every row
	pageSize := sql.NullInt64{Int64: int64(limit), Valid: limit > 0}

	query := `
		SELECT id, file_id, user_id, report_date, subject, category, intimacy, keywords, products, created_at
		FROM reports
		WHERE user_id = $1
		ORDER BY created_at DESC, report_date ASC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, userID, pageSize, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("error querying reports: %w", err)
	}
	defer rows.Close()

	reports := []*models.Report{}
	for rows.Next() {
		r := &models.Report{}
		err := rows.Scan(
			&r.ID,
			&r.FileID,
			&r.UserID,
			&r.Date,
			&r.Subject,
			&r.Category,
			&r.Intimacy,
			pq.Array(&r.Keywords),
			pq.Array(&r.Products),
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading reports: %w", err)
	}

	return reports, nil
}

// a nil slice would be sent as NULL
func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
