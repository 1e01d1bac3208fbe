package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/gift-bot/internal/models"
)

func TestMemoryStorage_Uploads(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	defer s.Close()

	content := []byte("2024년 5월 13일 월요일\n")
	up := &models.Upload{UserID: 42, Filename: "chat.txt", Content: content}
	require.NoError(t, s.SaveUpload(ctx, up))
	assert.NotEmpty(t, up.ID)
	assert.False(t, up.CreatedAt.IsZero())

	// the stored copy does not alias the caller's buffer
	content[0] = 'x'

	got, err := s.GetUpload(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, "chat.txt", got.Filename)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "2024년 5월 13일 월요일\n", string(got.Content))

	_, err = s.GetUpload(ctx, "missing")
	assert.ErrorIs(t, err, ErrUploadNotFound)
}

func TestMemoryStorage_Reports(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	older := time.Now().Add(-time.Hour)
	require.NoError(t, s.SaveReports(ctx, []*models.Report{
		{UserID: 1, FileID: "a", Date: "2024-05-09", CreatedAt: older},
	}))
	require.NoError(t, s.SaveReports(ctx, []*models.Report{
		{UserID: 1, FileID: "b", Date: "2024-05-13", Keywords: []string{"캠핑"}},
		{UserID: 1, FileID: "b", Date: "2024-05-12"},
		{UserID: 2, FileID: "c", Date: "2024-01-01"},
	}))

	all, err := s.GetUserReports(ctx, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-05-12", all[0].Date)
	assert.Equal(t, "2024-05-13", all[1].Date)
	assert.Equal(t, "2024-05-09", all[2].Date)
	for _, r := range all {
		assert.NotEmpty(t, r.ID)
	}

	page, err := s.GetUserReports(ctx, 1, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "2024-05-13", page[0].Date)

	none, err := s.GetUserReports(ctx, 1, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	other, err := s.GetUserReports(ctx, 3, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "gift", Password: "pw", DBName: "giftbot", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=gift password=pw dbname=giftbot sslmode=disable", c.DSN())
}
