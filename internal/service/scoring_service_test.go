package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-naturalness-inspector/internal/analyzer"
	apperrors "go-naturalness-inspector/internal/errors"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/imaging/imagingtest"
	"go-naturalness-inspector/internal/observer"
	"go-naturalness-inspector/internal/pristine"
	"go-naturalness-inspector/internal/pristine/pristinetest"
	"go-naturalness-inspector/internal/repository"
	"go-naturalness-inspector/internal/storage"
	"go-naturalness-inspector/pkg/models"
	"go-naturalness-inspector/pkg/validation"
)

const testBlock = 48

var (
	modelOnce sync.Once
	testModel *pristine.Model
)

func syntheticModel() *pristine.Model {
	modelOnce.Do(func() {
		testModel = pristinetest.MustFit(imaging.PatchConfig{BlockSize: testBlock, Scales: []int{0, 1}}, 6, 192, 192)
	})
	return testModel
}

func encodePNG(t *testing.T, img *imaging.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img.ToRGBA64()))
	return buf.Bytes()
}

func encodeBase64(t *testing.T, img *imaging.Image) string {
	return base64.StdEncoding.EncodeToString(encodePNG(t, img))
}

type fixture struct {
	svc     ScoringService
	metrics *observer.MetricsObserver
	results *repository.SQLiteResultRepository
}

func newFixture(t *testing.T, model *pristine.Model, maxBatch int) fixture {
	t.Helper()
	a, err := analyzer.NewAnalyzer(model, analyzer.DefaultOptions().WithBlockSize(testBlock).WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	results, err := repository.NewSQLiteResultRepository(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { results.Close() })

	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(metrics)

	imageRepo := repository.NewHTTPImageRepository(storage.NewHTTPImageFetcher(5*time.Second, storage.WithBackoff(time.Millisecond)), nil, nil)
	svc := NewScoringService(a, imageRepo, results, publisher, metrics,
		validation.NewRequestValidator(nil, maxBatch),
		Settings{DefaultPipeline: "fast", AnalysisTimeout: 30 * time.Second, BatchConcurrency: 3})
	return fixture{svc: svc, metrics: metrics, results: results}
}

func TestScoreBatch_IsolatesFailures(t *testing.T) {
	f := newFixture(t, nil, 50)

	req := models.BatchRequest{}
	for i := 0; i < 5; i++ {
		if i == 2 {
			req.Images = append(req.Images, "!!!not-base64!!!")
			continue
		}
		req.Images = append(req.Images, encodeBase64(t, imagingtest.Texture(96, 80, int64(i))))
	}

	resp, err := f.svc.ScoreBatch(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Results, 5)
	assert.NotEmpty(t, resp.BatchID)

	for i, e := range resp.Results {
		assert.Equal(t, i, e.Index)
		if i == 2 {
			assert.False(t, e.Success)
			assert.Nil(t, e.Score)
			assert.NotEmpty(t, e.Error)
			continue
		}
		assert.True(t, e.Success, e.Error)
		require.NotNil(t, e.Score)
		assert.Equal(t, analyzer.FastTable.Categorize(*e.Score), e.Category)
	}

	s := resp.Summary
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 4, s.Successful)
	assert.Equal(t, 1, s.Failed)
	assert.LessOrEqual(t, s.Best, s.Average)
	assert.LessOrEqual(t, s.Average, s.Worst)

	var n int
	for _, c := range s.Distribution {
		n += c
	}
	assert.Equal(t, 4, n)

	history, err := f.svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, rec := range history {
		assert.Equal(t, resp.BatchID, rec.BatchID)
		assert.Equal(t, i, rec.Index)
	}

	snap := f.svc.Metrics().Scoring
	assert.Equal(t, int64(4), snap.Successful)
	assert.Equal(t, int64(1), snap.Batches)
}

func TestScoreBatch_MixedItemsKeepOrder(t *testing.T) {
	f := newFixture(t, nil, 50)
	payload := encodePNG(t, imagingtest.Texture(64, 64, 9))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	req := models.BatchRequest{
		Images: []string{encodeBase64(t, imagingtest.Texture(64, 64, 1))},
		Items: []models.BatchItem{
			{URL: server.URL + "/ok.png"},
			{URL: server.URL + "/missing.png"},
			{},
		},
		Pipeline: "fast:48",
	}
	resp, err := f.svc.ScoreBatch(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Results, 4)

	assert.True(t, resp.Results[0].Success)
	assert.Equal(t, "upload[0]", resp.Results[0].Source)
	assert.True(t, resp.Results[1].Success)
	assert.Equal(t, server.URL+"/ok.png", resp.Results[1].Source)
	assert.Equal(t, "fast:48", resp.Results[1].Pipeline)
	assert.False(t, resp.Results[2].Success)
	assert.Contains(t, resp.Results[2].Error, "404")
	assert.False(t, resp.Results[3].Success)
	assert.Equal(t, int64(1), f.metrics.Snapshot().FetchFailures)
}

func TestScoreBatch_RequestErrors(t *testing.T) {
	f := newFixture(t, nil, 2)

	_, err := f.svc.ScoreBatch(context.Background(), models.BatchRequest{Images: []string{"a", "b", "c"}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = f.svc.ScoreBatch(context.Background(), models.BatchRequest{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = f.svc.ScoreBatch(context.Background(), models.BatchRequest{Images: []string{"a"}, Pipeline: "fats"})
	require.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), `did you mean "fast"`)
}

func TestScore_FullPipeline(t *testing.T) {
	f := newFixture(t, syntheticModel(), 50)

	res, err := f.svc.Score(context.Background(), models.ScoreRequest{
		Image:    "data:image/png;base64," + encodeBase64(t, imagingtest.Texture(160, 160, 77)),
		Pipeline: "full",
	})
	require.NoError(t, err)
	assert.Equal(t, "full", res.Pipeline)
	assert.Equal(t, "upload", res.Source)
	assert.Equal(t, analyzer.FullTable.Categorize(res.Score), res.Category)
	assert.Positive(t, res.Diagnostics.Patches)

	health := f.svc.Health()
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, []string{"full", "fast"}, health.Pipelines)
	assert.Equal(t, "synthetic", health.ModelName)
}

func TestScore_Errors(t *testing.T) {
	f := newFixture(t, nil, 50)
	ctx := context.Background()

	_, err := f.svc.Score(ctx, models.ScoreRequest{})
	assert.Equal(t, http.StatusBadRequest, apperrors.GetStatusCode(err))

	_, err = f.svc.Score(ctx, models.ScoreRequest{Image: base64.StdEncoding.EncodeToString([]byte("plain text"))})
	assert.Equal(t, http.StatusUnprocessableEntity, apperrors.GetStatusCode(err))

	// A fast-only analyzer cannot serve the full pipeline
	_, err = f.svc.Score(ctx, models.ScoreRequest{Image: encodeBase64(t, imagingtest.Texture(64, 64, 1)), Pipeline: "full"})
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.GetStatusCode(err))

	assert.Equal(t, []string{"fast"}, f.svc.Health().Pipelines)
}

func TestScoreImage_UsesDefaultPipeline(t *testing.T) {
	f := newFixture(t, nil, 50)
	res, err := f.svc.ScoreImage(context.Background(), imagingtest.Texture(120, 90, 3), "file.png", "")
	require.NoError(t, err)
	assert.Equal(t, "fast:300", res.Pipeline)
	assert.Equal(t, "file.png", res.Source)

	history, err := f.svc.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.ID, history[0].ID)
}

func TestHistoryDisabled(t *testing.T) {
	a, err := analyzer.NewAnalyzer(nil, analyzer.DefaultOptions())
	require.NoError(t, err)
	defer a.Close()

	svc := NewScoringService(a, nil, nil, nil, nil, nil, Settings{})
	_, err = svc.History(context.Background(), 5)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.Zero(t, svc.Metrics().Scoring.TotalScored)
}

func TestSummarize(t *testing.T) {
	score := func(v float64) *float64 { return &v }
	entries := []models.BatchEntry{
		{Index: 0, Success: true, Score: score(10), Category: analyzer.CategoryExcellent},
		{Index: 1, Success: false, Error: "x"},
		{Index: 2, Success: true, Score: score(30), Category: analyzer.CategoryGood},
		{Index: 3, Success: true, Score: score(50), Category: analyzer.CategoryModerate},
	}

	s := Summarize(entries, 1500*time.Millisecond)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 3, s.Successful)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 30, s.Average, 1e-12)
	assert.Equal(t, 10.0, s.Best)
	assert.Equal(t, 50.0, s.Worst)
	assert.Equal(t, 1, s.Distribution[analyzer.CategoryGood])
	assert.InDelta(t, 1.5, s.TotalTimeSec, 1e-9)

	empty := Summarize([]models.BatchEntry{{Error: "x"}}, 0)
	assert.Zero(t, empty.Average)
	assert.Zero(t, empty.Best)
	assert.Equal(t, 1, empty.Failed)
}
