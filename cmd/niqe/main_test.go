package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-naturalness-inspector/internal/analyzer"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/imaging/imagingtest"
	"go-naturalness-inspector/internal/pristine"
	"go-naturalness-inspector/internal/pristine/pristinetest"
)

func writePNG(t *testing.T, path string, img *imaging.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img.ToRGBA64()))
	require.NoError(t, f.Close())
}

func writeModel(t *testing.T, dir string) string {
	t.Helper()
	m := pristinetest.MustFit(imaging.PatchConfig{BlockSize: 48, Scales: []int{0, 1}}, 4, 192, 192)
	path := filepath.Join(dir, "pristine.yaml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, pristine.Encode(f, m, pristine.FormatYAML))
	require.NoError(t, f.Close())
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), append([]string{"niqe"}, args...))
	return out.String(), err
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"a.png", "b.png", "c.png"} {
		writePNG(t, filepath.Join(dir, name), imagingtest.Texture(96, 96, int64(i)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not a jpeg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	writePNG(t, filepath.Join(dir, "nested", "d.png"), imagingtest.Texture(96, 96, 9))

	out, err := run(t, "--pipeline", "fast", "batch", "--dir", dir)
	require.NoError(t, err)

	var report batchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "fast:300", report.Pipeline)
	require.Len(t, report.Results, 4)
	assert.Equal(t, 4, report.Summary.Total)
	assert.Equal(t, 3, report.Summary.Successful)
	assert.Equal(t, 1, report.Summary.Failed)
	assert.LessOrEqual(t, report.Summary.Min, report.Summary.Median)
	assert.LessOrEqual(t, report.Summary.Median, report.Summary.Max)

	out, err = run(t, "--pipeline", "fast", "batch", "--dir", dir, "--recursive")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Results, 5)

	_, err = run(t, "batch", "--dir", t.TempDir())
	assert.ErrorContains(t, err, "no supported images")
}

func TestScoreCommand_Full(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MODEL_SOURCE", writeModel(t, dir))
	t.Setenv("BLOCK_SIZE", "48")
	img := filepath.Join(dir, "scene.png")
	writePNG(t, img, imagingtest.Texture(160, 160, 5))
	db := filepath.Join(dir, "history.db")

	out, err := run(t, "--pipeline", "full", "score", "--db", db, img)
	require.NoError(t, err)

	var results []fileResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].Success, results[0].Error)
	assert.Equal(t, "full", results[0].Pipeline)
	require.NotNil(t, results[0].Diagnostics)
	assert.Positive(t, results[0].Diagnostics.Patches)
	assert.FileExists(t, db)

	_, err = run(t, "--pipeline", "full", "score", filepath.Join(dir, "missing.png"))
	assert.ErrorContains(t, err, "1 of 1 images failed")
}

func TestScoreCommand_ModelRequired(t *testing.T) {
	t.Setenv("MODEL_SOURCE", "")
	_, err := run(t, "--pipeline", "full", "score", "x.png")
	assert.ErrorContains(t, err, "MODEL_SOURCE must be set")

	t.Setenv("MODEL_SOURCE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err = run(t, "--pipeline", "full", "score", "x.png")
	assert.Error(t, err)
}

func TestModelInspect(t *testing.T) {
	t.Setenv("MODEL_SOURCE", writeModel(t, t.TempDir()))

	out, err := run(t, "--format", "yaml", "model", "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "compatible: true")
	assert.Contains(t, out, "dim: 30")
}

func TestSummarizeFolder(t *testing.T) {
	score := func(v float64) *float64 { return &v }
	results := []fileResult{
		{Success: true, Score: score(40), Category: analyzer.CategoryModerate},
		{Success: true, Score: score(10), Category: analyzer.CategoryExcellent},
		{Error: "decode"},
		{Success: true, Score: score(30), Category: analyzer.CategoryGood},
		{Success: true, Score: score(20), Category: analyzer.CategoryGood},
	}

	s := summarizeFolder(results, 2*time.Second)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 4, s.Successful)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 25, s.Mean, 1e-12)
	assert.InDelta(t, 25, s.Median, 1e-12)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 40.0, s.Max)
	assert.InDelta(t, 12.909944, s.StdDev, 1e-6)
	assert.Equal(t, 2, s.Distribution[analyzer.CategoryGood])

	one := summarizeFolder(results[:1], 0)
	assert.Zero(t, one.StdDev)
	assert.Equal(t, 40.0, one.Median)
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.JPG", "a.png", "c.webp", "readme.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	files, err := listImages(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.JPG"),
		filepath.Join(dir, "c.webp"),
	}, files)

	_, err = listImages(filepath.Join(dir, "missing"), false)
	assert.Error(t, err)
}
