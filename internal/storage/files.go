package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LJTian/DailyDigest/internal/classify"
	"github.com/LJTian/DailyDigest/internal/collector"
)

// FileStore 工作目录下按运行日命名的文件：
//
//	raw_news_YYYYMMDD.json   抓取与分类快照
//	news_YYYYMMDD.md         渲染后的 HTML，存在即表示当天已生成
//	preview_news_YYYYMMDD.md 试运行的预览
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func dayStamp(t time.Time) string { return t.Format("20060102") }

func (f *FileStore) MarkerPath(run time.Time) string {
	return filepath.Join(f.Dir, "news_"+dayStamp(run)+".md")
}

func (f *FileStore) SnapshotPath(run time.Time) string {
	return filepath.Join(f.Dir, "raw_news_"+dayStamp(run)+".json")
}

func (f *FileStore) PreviewPath(run time.Time) string {
	return filepath.Join(f.Dir, "preview_news_"+dayStamp(run)+".md")
}

func (f *FileStore) HasMarker(run time.Time) (bool, error) {
	_, err := os.Stat(f.MarkerPath(run))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (f *FileStore) ReadMarker(run time.Time) (string, error) {
	b, err := os.ReadFile(f.MarkerPath(run))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteMarker 只在发布成功后调用
func (f *FileStore) WriteMarker(run time.Time, html string) error {
	return writeAtomic(f.MarkerPath(run), []byte(html))
}

func (f *FileStore) WritePreview(run time.Time, html string) error {
	return writeAtomic(f.PreviewPath(run), []byte(html))
}

// Snapshot 与历史文件格式保持一致：all_news + categorized
type Snapshot struct {
	AllNews     []collector.NewsItem            `json:"all_news"`
	Categorized map[string][]collector.NewsItem `json:"categorized"`
}

func (f *FileStore) WriteSnapshot(run time.Time, all []collector.NewsItem, bucket classify.Bucket) error {
	snap := Snapshot{
		AllNews:     all,
		Categorized: make(map[string][]collector.NewsItem, len(classify.Categories)),
	}
	if snap.AllNews == nil {
		snap.AllNews = []collector.NewsItem{}
	}
	for _, cat := range classify.Categories {
		items := bucket[cat]
		if items == nil {
			items = []collector.NewsItem{}
		}
		snap.Categorized[string(cat)] = items
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return writeAtomic(f.SnapshotPath(run), buf.Bytes())
}

func (f *FileStore) ReadSnapshot(run time.Time) (*Snapshot, error) {
	b, err := os.ReadFile(f.SnapshotPath(run))
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// writeAtomic 先写临时文件再 rename，避免半截文件被当成标记
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	_ = os.Chmod(tmp.Name(), 0o644)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
