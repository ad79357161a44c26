package container

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-naturalness-inspector/internal/config"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/pristine"
	"go-naturalness-inspector/internal/pristine/pristinetest"
	"go-naturalness-inspector/pkg/models"
)

func writeModel(t *testing.T, dir string) string {
	t.Helper()
	model := pristinetest.MustFit(imaging.PatchConfig{BlockSize: 48, Scales: []int{0, 1}}, 4, 192, 192)
	path := filepath.Join(dir, "pristine.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, pristine.Encode(f, model, pristine.FormatJSON))
	require.NoError(t, f.Close())
	return path
}

func TestNewContainer(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.ModelSource = writeModel(t, dir)
	cfg.HistoryDB = filepath.Join(dir, "history.db")
	cfg.MaxWorkers = 2
	cfg.Scoring.BlockSize = 48

	c, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	assert.Same(t, cfg, c.Config())
	assert.Equal(t, "synthetic", c.Model().Name())

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, []string{"full", "fast"}, health.Pipelines)
	assert.Equal(t, 30, health.ModelDim)
	require.NotNil(t, health.Host)
	assert.Positive(t, health.Host.GOMAXPROCS)

	w = httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewContainer_ModelErrors(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Defaults()
	_, err := NewContainer(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrNoModelSource)

	cfg.ModelSource = filepath.Join(dir, "missing.yaml")
	_, err = NewContainer(context.Background(), cfg)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("dim: 2\nmean: [0, 0]\ncovariance: [[1, 2], [2, 1]]\n"), 0o644))
	cfg.ModelSource = bad
	_, err = NewContainer(context.Background(), cfg)
	assert.Error(t, err)

	cfg.ModelSource = "azblob://models/pristine.yaml"
	_, err = NewContainer(context.Background(), cfg)
	assert.ErrorContains(t, err, "model source")
}
