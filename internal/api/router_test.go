package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/classify"
	"github.com/LJTian/DailyDigest/internal/collector"
	"github.com/LJTian/DailyDigest/internal/pipeline"
	"github.com/LJTian/DailyDigest/internal/scheduler"
	"github.com/LJTian/DailyDigest/internal/storage"
)

type fakeArchive struct {
	digests []storage.DigestRecord
	feeds   []storage.Feed
	err     error
	limit   int
}

func (f *fakeArchive) ListDigests(ctx context.Context, limit int) ([]storage.DigestRecord, error) {
	f.limit = limit
	return f.digests, f.err
}

func (f *fakeArchive) GetDigest(ctx context.Context, date string) (*storage.DigestRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.digests {
		if f.digests[i].RunDate == date {
			return &f.digests[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeArchive) ListFeeds(ctx context.Context) ([]storage.Feed, error) {
	return f.feeds, f.err
}

type fakeTrigger struct {
	busy bool
	opts []pipeline.Options
	last *pipeline.Report
}

func (f *fakeTrigger) TriggerAsync(opts pipeline.Options) error {
	if f.busy {
		return scheduler.ErrRunInProgress
	}
	f.opts = append(f.opts, opts)
	return nil
}

func (f *fakeTrigger) Running() bool { return f.busy }

func (f *fakeTrigger) Last() (*pipeline.Report, error) { return f.last, nil }

var cst = time.FixedZone("CST", 8*3600)

func newEngine(archive Archive, trigger Trigger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewServer(archive, trigger, nil, cst, zap.NewNop()).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(newEngine(nil, &fakeTrigger{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	w := do(newEngine(nil, &fakeTrigger{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestListDigests(t *testing.T) {
	archive := &fakeArchive{digests: []storage.DigestRecord{{RunDate: "2024-06-02", Title: "6月2日AI科技财经日报"}}}
	r := newEngine(archive, &fakeTrigger{})

	w := do(r, http.MethodGet, "/api/v1/digests?limit=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, archive.limit)

	var resp struct {
		Code string                 `json:"code"`
		Data []storage.DigestRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Code)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "6月2日AI科技财经日报", resp.Data[0].Title)

	do(r, http.MethodGet, "/api/v1/digests?limit=abc", "")
	assert.Equal(t, 30, archive.limit)
}

func TestGetDigest(t *testing.T) {
	archive := &fakeArchive{digests: []storage.DigestRecord{{RunDate: "2024-06-02", Title: "t"}}}
	r := newEngine(archive, &fakeTrigger{})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/digests/2024-06-02", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/digests/2024-06-03", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/digests/june", "").Code)

	archive.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/api/v1/digests/2024-06-02", "").Code)
}

func TestArchiveNotConfigured(t *testing.T) {
	r := newEngine(nil, &fakeTrigger{})
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/digests", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/feeds", "").Code)
}

func TestListFeeds(t *testing.T) {
	archive := &fakeArchive{feeds: []storage.Feed{{Name: "36氪", URL: "https://36kr.com/feed", MaxItems: 10}}}
	w := do(newEngine(archive, &fakeTrigger{}), http.MethodGet, "/api/v1/feeds", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "36氪")
}

func TestCreateRun(t *testing.T) {
	trigger := &fakeTrigger{}
	r := newEngine(nil, trigger)

	w := do(r, http.MethodPost, "/api/v1/runs", `{"date":"2024-06-02","force":true}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, trigger.opts, 1)
	assert.True(t, trigger.opts[0].Force)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, cst), trigger.opts[0].RunDate)
	assert.True(t, trigger.opts[0].TargetDate.IsZero())

	// 空请求体用默认参数
	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/v1/runs", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/runs", `{"date":"02/06/2024"}`).Code)

	trigger.busy = true
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/v1/runs", "").Code)
}

func TestLastRun(t *testing.T) {
	trigger := &fakeTrigger{last: &pipeline.Report{RunID: "abc", Collected: 14}}
	w := do(newEngine(nil, trigger), http.MethodGet, "/api/v1/runs/last", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"runId":"abc"`)
	assert.Contains(t, w.Body.String(), `"running":false`)
}

func TestBasicAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BasicAuth("admin", "secret"))
	NewServer(nil, &fakeTrigger{}, nil, cst, zap.NewNop()).RegisterRoutes(r)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "").Code)

	w := do(r, http.MethodGet, "/api/v1/runs/last", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/last", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSnapshotAndPage(t *testing.T) {
	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	run := time.Date(2024, 6, 2, 0, 0, 0, 0, cst)

	bucket := classify.NewBucket()
	item := collector.NewsItem{Title: "英伟达发布新芯片", SourceFeed: "36氪"}
	bucket[classify.Tech] = []collector.NewsItem{item}
	require.NoError(t, files.WriteSnapshot(run, []collector.NewsItem{item}, bucket))
	require.NoError(t, files.WriteMarker(run, "<section>日报</section>"))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewServer(nil, &fakeTrigger{}, files, cst, zap.NewNop()).RegisterRoutes(r)

	w := do(r, http.MethodGet, "/api/v1/snapshots/2024-06-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data storage.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.AllNews, 1)
	assert.Len(t, resp.Data.Categorized["科技动态"], 1)

	w = do(r, http.MethodGet, "/api/v1/pages/2024-06-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<section>日报</section>", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/snapshots/2024-06-03", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/pages/2024-06-03", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/pages/yesterday", "").Code)
}

func TestSnapshotWithoutWorkDir(t *testing.T) {
	r := newEngine(nil, &fakeTrigger{})
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/snapshots/2024-06-02", "").Code)
}
