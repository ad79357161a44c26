package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MODEL_SOURCE", "")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	assert.Equal(t, 84, cfg.Scoring.BlockSize)
	assert.Equal(t, []int{0, 1}, cfg.Scoring.Scales)
	assert.Equal(t, 300, cfg.Scoring.ResizeTo)
	assert.Equal(t, 50, cfg.MaxBatchSize)
	assert.Equal(t, "full", cfg.Scoring.DefaultPipeline)
	assert.Equal(t, int64(40_000_000), cfg.MaxImagePixels)
	assert.Empty(t, cfg.ModelSource)
	assert.ErrorIs(t, cfg.RequireModel(), ErrNoModelSource)
	assert.EqualError(t, cfg.RequireModel(), "MODEL_SOURCE must be set")
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ANALYSIS_TIMEOUT", "5s")
	t.Setenv("BLOCK_SIZE", "64")
	t.Setenv("SCALES", "0, 1, 2")
	t.Setenv("RESIZE_TO", "256")
	t.Setenv("MIN_PATCH_VARIANCE", "0.5")
	t.Setenv("MAX_IMAGE_PIXELS", "1000000")
	t.Setenv("MODEL_SOURCE", "/models/pristine.yaml")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, 64, cfg.Scoring.BlockSize)
	assert.Equal(t, []int{0, 1, 2}, cfg.Scoring.Scales)
	assert.Equal(t, 256, cfg.Scoring.ResizeTo)
	assert.InDelta(t, 0.5, cfg.Scoring.MinPatchVariance, 1e-12)
	assert.Equal(t, int64(1_000_000), cfg.MaxImagePixels)
	assert.NoError(t, cfg.RequireModel())
}

func TestLoadFromEnv_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "70000")
	_, err := LoadFromEnv()
	assert.Error(t, err)
}

func TestLoadFromEnv_InvalidScales(t *testing.T) {
	t.Setenv("SCALES", "0,x")
	_, err := LoadFromEnv()
	assert.Error(t, err)
}

func TestLoadFromEnv_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "niqe.yaml")
	doc := `
port: "7070"
analysis_timeout: 12s
model_source: /models/custom.yaml
scoring:
  block_size: 96
  scales: [0]
  crop_border: 4
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CROP_BORDER", "8")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, 12*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, "/models/custom.yaml", cfg.ModelSource)
	assert.Equal(t, 96, cfg.Scoring.BlockSize)
	assert.Equal(t, []int{0}, cfg.Scoring.Scales)
	assert.Equal(t, 8, cfg.Scoring.CropBorder, "env wins over file")
	assert.Equal(t, 300, cfg.Scoring.ResizeTo, "defaults survive partial files")
}

func TestLoadFromEnv_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := LoadFromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"small block", func(c *Config) { c.Scoring.BlockSize = 4 }},
		{"no scales", func(c *Config) { c.Scoring.Scales = nil }},
		{"negative scale", func(c *Config) { c.Scoring.Scales = []int{-1} }},
		{"negative crop", func(c *Config) { c.Scoring.CropBorder = -1 }},
		{"tiny resize", func(c *Config) { c.Scoring.ResizeTo = 2 }},
		{"zero batch", func(c *Config) { c.MaxBatchSize = 0 }},
		{"zero pixel cap", func(c *Config) { c.MaxImagePixels = 0 }},
		{"zero timeout", func(c *Config) { c.AnalysisTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Defaults().Validate())
}

func TestWorkersFor(t *testing.T) {
	assert.Equal(t, 8, workersFor(8, 64*1024))
	assert.Equal(t, 2, workersFor(8, 600))
	assert.Equal(t, 1, workersFor(8, 100))
	assert.Equal(t, 4, workersFor(4, 0))
	assert.Equal(t, 1, workersFor(0, 0))
}

func TestWorkers(t *testing.T) {
	cfg := Defaults()
	cfg.MaxWorkers = 3
	assert.Equal(t, 3, cfg.Workers())
	cfg.MaxWorkers = 0
	assert.GreaterOrEqual(t, cfg.Workers(), 1)
}

func TestDescribeHost(t *testing.T) {
	info := DescribeHost()
	assert.GreaterOrEqual(t, info.GOMAXPROCS, 1)
}
