package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/errs"
	"github.com/LJTian/DailyDigest/internal/metrics"
	"github.com/LJTian/DailyDigest/internal/processor"
)

const (
	DefaultUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	DefaultFeedTimeout  = 30 * time.Second
	DefaultFeedLimit    = 10
	summaryMaxRunes     = 500
	feedMaxResponseSize = 10 << 20 // 10MB
)

// RSSFetcher 下载并解析 RSS 2.0 / Atom，按目标日期过滤
type RSSFetcher struct {
	UserAgent string
	Timeout   time.Duration
	// Location 判断“同一天”所用的时区
	Location *time.Location
	Logger   *zap.Logger
}

func NewRSSFetcher(loc *time.Location, log *zap.Logger) *RSSFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RSSFetcher{
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultFeedTimeout,
		Location:  loc,
		Logger:    log,
	}
}

func (f *RSSFetcher) Fetch(ctx context.Context, src FeedSource, target time.Time) []NewsItem {
	log := f.Logger.With(zap.String("feed", src.Name))

	body, err := f.download(ctx, src.URL)
	if err != nil {
		log.Warn("fetch feed failed", zap.String("url", src.URL), zap.Error(err))
		metrics.FeedFetches.WithLabelValues(src.Name, "error").Inc()
		return []NewsItem{}
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		log.Warn("parse feed failed", zap.Error(errs.Parse("parse feed", err)))
		metrics.FeedFetches.WithLabelValues(src.Name, "parse_error").Inc()
		return []NewsItem{}
	}

	items := f.collect(feed, src, target)
	metrics.FeedFetches.WithLabelValues(src.Name, "ok").Inc()
	log.Info("feed fetched", zap.Int("entries", len(feed.Items)), zap.Int("kept", len(items)))
	return items
}

// collect 最多检查 2*limit 条原始条目，最多保留 limit 条
func (f *RSSFetcher) collect(feed *gofeed.Feed, src FeedSource, target time.Time) []NewsItem {
	limit := src.Limit
	if limit <= 0 {
		limit = DefaultFeedLimit
	}

	entries := feed.Items
	if len(entries) > limit*2 {
		entries = entries[:limit*2]
	}

	items := make([]NewsItem, 0, limit)
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		raw := publishedRaw(entry)
		published, ok := ParseDate(raw, f.Location)
		if !KeepForDay(published, ok, target, f.Location) {
			continue
		}

		item := NewsItem{
			Title:        strings.TrimSpace(entry.Title),
			Summary:      processor.TruncateRunes(processor.StripHTML(firstNonEmpty(entry.Description, entry.Content)), summaryMaxRunes),
			Link:         entryLink(entry),
			PublishedRaw: raw,
			SourceFeed:   src.Name,
		}
		if item.Title == "" {
			item.Title = PlaceholderTitle
		}
		if ok {
			at := published
			item.PublishedAt = &at
		}

		items = append(items, item)
		if len(items) >= limit {
			break
		}
	}
	return items
}

func (f *RSSFetcher) download(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(feedMaxResponseSize),
		colly.AllowURLRevisit(),
	)
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFeedTimeout
	}
	c.SetRequestTimeout(timeout)

	var (
		body   []byte
		status int
	)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	if err := c.Visit(url); err != nil {
		return nil, errs.Network("GET "+url, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, errs.Network("GET "+url, fmt.Errorf("unexpected status %d", status))
	}
	if len(body) == 0 {
		return nil, errs.Parse("read feed", errors.New("empty body"))
	}
	return body, nil
}

func publishedRaw(entry *gofeed.Item) string {
	raw := firstNonEmpty(entry.Published, entry.Updated)
	if raw == "" && entry.DublinCoreExt != nil && len(entry.DublinCoreExt.Date) > 0 {
		raw = entry.DublinCoreExt.Date[0]
	}
	return strings.TrimSpace(raw)
}

func entryLink(entry *gofeed.Item) string {
	if l := strings.TrimSpace(entry.Link); l != "" {
		return l
	}
	for _, l := range entry.Links {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	if strings.HasPrefix(entry.GUID, "http") {
		return entry.GUID
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
