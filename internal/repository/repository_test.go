package repository

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-naturalness-inspector/internal/storage"
	"go-naturalness-inspector/pkg/models"
)

func setupTestRepo(t *testing.T) *SQLiteResultRepository {
	t.Helper()
	repo, err := NewSQLiteResultRepository(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestNewSQLiteResultRepository_EmptyPath(t *testing.T) {
	_, err := NewSQLiteResultRepository("")
	assert.Error(t, err)
}

func TestNewSQLiteResultRepository_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	r1, err := NewSQLiteResultRepository(path)
	require.NoError(t, err)
	require.NoError(t, r1.Close())

	r2, err := NewSQLiteResultRepository(path)
	require.NoError(t, err)
	assert.NoError(t, r2.Close())
}

func TestSaveAndHistory(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	earlier := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	later := earlier.Add(time.Minute)

	require.NoError(t, repo.SaveResults(ctx, []models.HistoryRecord{
		{ID: "a", Source: "upload", Pipeline: "full", Score: 12.5, Category: "Excellent", Success: true, CreatedAt: earlier},
	}))
	require.NoError(t, repo.SaveResults(ctx, []models.HistoryRecord{
		{ID: "b1", BatchID: "batch", Index: 1, Source: "https://x/1.png", Pipeline: "fast", Success: false, Error: "boom", CreatedAt: later},
		{ID: "b0", BatchID: "batch", Index: 0, Source: "https://x/0.png", Pipeline: "fast", Score: 30, Category: "Moderate", Success: true, CreatedAt: later},
	}))

	recs, err := repo.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "b0", recs[0].ID)
	assert.Equal(t, "b1", recs[1].ID)
	assert.Equal(t, "a", recs[2].ID)

	assert.Equal(t, "batch", recs[1].BatchID)
	assert.False(t, recs[1].Success)
	assert.Equal(t, "boom", recs[1].Error)
	assert.Empty(t, recs[1].Category)

	assert.Equal(t, 12.5, recs[2].Score)
	assert.Empty(t, recs[2].BatchID)
	assert.True(t, recs[2].CreatedAt.Equal(earlier))

	limited, err := repo.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSaveResults_DuplicateRollsBack(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	err := repo.SaveResults(ctx, []models.HistoryRecord{
		{ID: "dup", Source: "s", Pipeline: "full", Success: true},
		{ID: "dup", Source: "s", Pipeline: "full", Success: true},
	})
	assert.Error(t, err)

	recs, err := repo.History(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestClosedRepository(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.Close())
	assert.NoError(t, repo.Close())

	_, err := repo.History(context.Background(), 5)
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
	err = repo.SaveResults(context.Background(), []models.HistoryRecord{{ID: "x"}})
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
}

func TestHTTPImageRepository(t *testing.T) {
	var buf bytes.Buffer
	src := image.NewGray(image.Rect(0, 0, 8, 6))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 3)
	}
	src.Set(0, 0, color.Gray{Y: 200})
	require.NoError(t, png.Encode(&buf, src))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	repo := NewHTTPImageRepository(storage.NewHTTPImageFetcher(time.Second), nil, nil)

	img, err := repo.FetchImage(context.Background(), server.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, 8, img.Width)
	assert.Equal(t, 6, img.Height)
	assert.Equal(t, 1, img.Channels)

	_, err = repo.FetchImage(context.Background(), "ftp://example.com/a.png")
	assert.Error(t, err)

	_, err = repo.FetchImage(context.Background(), "azblob://images/a.png")
	assert.ErrorIs(t, err, ErrBlobStorageDisabled)

	assert.NoError(t, repo.ValidateImageURL("azblob://images/a.png"))
	assert.ErrorIs(t, repo.ValidateImageURL("azblob://images"), ErrInvalidImageURL)
	assert.Error(t, repo.ValidateImageURL(""))
}
