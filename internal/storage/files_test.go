package storage

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/DailyDigest/internal/classify"
	"github.com/LJTian/DailyDigest/internal/collector"
)

var run = time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)

func TestMarkerLifecycle(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(fs.MarkerPath(run), "news_20240602.md"))

	ok, err := fs.HasMarker(run)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fs.WriteMarker(run, "<section>ok</section>"))

	ok, err = fs.HasMarker(run)
	require.NoError(t, err)
	assert.True(t, ok)

	html, err := fs.ReadMarker(run)
	require.NoError(t, err)
	assert.Equal(t, "<section>ok</section>", html)

	// 其他日期不受影响
	ok, _ = fs.HasMarker(run.AddDate(0, 0, 1))
	assert.False(t, ok)
}

func TestSnapshotFormat(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	all := []collector.NewsItem{
		{Title: "A&B <发布>", Link: "https://example.com/a?x=1&y=2", SourceFeed: "36氪"},
		{Title: "second"},
	}
	bucket := classify.NewBucket()
	bucket[classify.AI] = all[:1]

	require.NoError(t, fs.WriteSnapshot(run, all, bucket))

	raw, err := os.ReadFile(fs.SnapshotPath(run))
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `"all_news"`)
	assert.Contains(t, body, `"categorized"`)
	assert.Contains(t, body, `"AI 领域"`)
	assert.Contains(t, body, `"财经要闻": []`)
	// 中文与 & < > 原样写出
	assert.Contains(t, body, `"A&B <发布>"`)
	assert.Contains(t, body, `"source": "36氪"`)

	snap, err := fs.ReadSnapshot(run)
	require.NoError(t, err)
	assert.Len(t, snap.AllNews, 2)
	assert.Len(t, snap.Categorized["AI 领域"], 1)
	assert.Empty(t, snap.Categorized["科技动态"])
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, fs.WritePreview(run, "preview"))
	require.NoError(t, fs.WritePreview(run, "preview v2"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "preview_news_20240602.md", entries[0].Name())

	b, _ := os.ReadFile(fs.PreviewPath(run))
	assert.Equal(t, "preview v2", string(b))
}
