package collector

import (
	"context"
	"time"
)

// PlaceholderTitle 条目缺少标题时的占位，聚合阶段会被丢弃
const PlaceholderTitle = "无标题"

// FeedSource 一个 RSS/Atom 订阅源，Limit 为单源最多保留的条数
type FeedSource struct {
	Name  string `yaml:"name" json:"name"`
	URL   string `yaml:"url" json:"url"`
	Limit int    `yaml:"limit" json:"limit"`
}

// NewsItem 单条新闻；PublishedRaw 保留源里的原始日期字符串
type NewsItem struct {
	Title        string     `json:"title"`
	Summary      string     `json:"summary"`
	Link         string     `json:"link"`
	PublishedRaw string     `json:"published"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	SourceFeed   string     `json:"source"`
}

// Fetcher 抽象单个订阅源的抓取；失败时返回空切片，不向上抛错
type Fetcher interface {
	Fetch(ctx context.Context, src FeedSource, target time.Time) []NewsItem
}

// FetcherFunc 方便测试时用函数替代
type FetcherFunc func(ctx context.Context, src FeedSource, target time.Time) []NewsItem

func (f FetcherFunc) Fetch(ctx context.Context, src FeedSource, target time.Time) []NewsItem {
	return f(ctx, src, target)
}
