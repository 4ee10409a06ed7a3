package collector

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LJTian/DailyDigest/internal/metrics"
	"github.com/LJTian/DailyDigest/internal/processor"
)

const DefaultWorkers = 4

// Aggregator 并发抓取所有订阅源，按配置顺序合并后去重
type Aggregator struct {
	Fetcher Fetcher
	Sources []FeedSource
	// Workers 同时抓取的源数量，1 即顺序抓取
	Workers int
	Logger  *zap.Logger
}

func NewAggregator(fetcher Fetcher, sources []FeedSource, workers int, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{Fetcher: fetcher, Sources: sources, Workers: workers, Logger: log}
}

func (a *Aggregator) Aggregate(ctx context.Context, target time.Time) []NewsItem {
	workers := a.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	// 每个任务只写自己的槽位，合并时按源顺序拼接，结果与并发度无关
	results := make([][]NewsItem, len(a.Sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range a.Sources {
		g.Go(func() error {
			items := a.Fetcher.Fetch(gctx, src, target)
			for j := range items {
				if items[j].SourceFeed == "" {
					items[j].SourceFeed = src.Name
				}
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var merged []NewsItem
	for _, items := range results {
		merged = append(merged, items...)
	}

	out := Deduplicate(merged)
	metrics.ItemsCollected.Add(float64(len(out)))
	a.Logger.Info("aggregate done",
		zap.Int("sources", len(a.Sources)),
		zap.Int("fetched", len(merged)),
		zap.Int("unique", len(out)),
	)
	return out
}

// Deduplicate 按规范化标题去重，保留首次出现的条目，并丢弃占位标题
func Deduplicate(items []NewsItem) []NewsItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]NewsItem, 0, len(items))
	for _, it := range items {
		key := processor.TitleKey(it.Title)
		if key == "" || it.Title == PlaceholderTitle {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}
