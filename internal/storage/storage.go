package storage

import (
	"context"
	"errors"

	"github.com/xaenox/gift-bot/internal/models"
)

var ErrUploadNotFound = errors.New("upload not found")

type Storage interface {
	Close() error

	// Embed UploadStorage and ReportStorage interfaces
	UploadStorage
	ReportStorage
}

type UploadStorage interface {
	SaveUpload(ctx context.Context, upload *models.Upload) error
	GetUpload(ctx context.Context, id string) (*models.Upload, error)
}

type ReportStorage interface {
	SaveReports(ctx context.Context, reports []*models.Report) error
	GetUserReports(ctx context.Context, userID int64, limit, offset int) ([]*models.Report, error)
}
