// Package pipeline 串起一次完整的日报运行：抓取 → 分类 → 快照 → 组装渲染 → 封面 → 发布 → 标记。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/classify"
	"github.com/LJTian/DailyDigest/internal/collector"
	"github.com/LJTian/DailyDigest/internal/digest"
	"github.com/LJTian/DailyDigest/internal/editor"
	"github.com/LJTian/DailyDigest/internal/metrics"
	"github.com/LJTian/DailyDigest/internal/publisher"
	"github.com/LJTian/DailyDigest/internal/storage"
)

type Collector interface {
	Aggregate(ctx context.Context, target time.Time) []collector.NewsItem
}

type Classifier interface {
	Classify(ctx context.Context, items []collector.NewsItem) classify.Result
}

// Writer 需要大模型写作的部分，editor.Editor 实现
type Writer interface {
	Briefs(ctx context.Context, bucket classify.Bucket, target string) digest.Briefs
	ClosingQuote(ctx context.Context) string
	Summary(ctx context.Context, html string) string
	Compose(ctx context.Context, target string) (*editor.Composed, error)
}

type CoverMaker interface {
	Cover(ctx context.Context, title string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, a publisher.Article) error
}

type Archiver interface {
	SaveDigest(ctx context.Context, p storage.Published) error
}

type Options struct {
	// RunDate 决定文件名、标题与日期卡片；零值取当前时间
	RunDate time.Time
	// TargetDate 新闻所属日；零值取 RunDate 前一天
	TargetDate time.Time
	// Force 忽略当天已生成的标记
	Force bool
	// DryRun 只生成预览，不出图、不发布、不写标记
	DryRun bool
}

type Report struct {
	RunID      string        `json:"runId"`
	RunDate    string        `json:"runDate"`
	TargetDate string        `json:"targetDate"`
	Skipped    bool          `json:"skipped"`
	DryRun     bool          `json:"dryRun"`
	Fallback   bool          `json:"fallback"`
	Collected  int           `json:"collected"`
	Classified int           `json:"classified"`
	Title      string        `json:"title,omitempty"`
	Summary    string        `json:"summary,omitempty"`
	CoverURL   string        `json:"coverUrl,omitempty"`
	OutputPath string        `json:"outputPath,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
	Duration   time.Duration `json:"duration"`
}

type Runner struct {
	Collector  Collector
	Classifier Classifier
	Writer     Writer
	Files      *storage.FileStore
	// Cover / Publisher / Archive 可为 nil：无封面、无法发布（只能试运行）、不归档
	Cover     CoverMaker
	Publisher Publisher
	Archive   Archiver
	// OpenArchive 未设置 Archive 时，发布成功后才建立归档连接；当天已生成时不会被调用
	OpenArchive func() (Archiver, error)

	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger

	archiveMu sync.Mutex
}

var ErrNoPublisher = errors.New("publisher not configured")

func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	rep, err := r.run(ctx, opts)
	if rep != nil {
		rep.Duration = time.Since(start)
	}

	outcome := "published"
	switch {
	case err != nil:
		outcome = "failed"
	case rep.Skipped:
		outcome = "skipped"
	case rep.DryRun:
		outcome = "dry_run"
	}
	metrics.RunDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return rep, err
}

func (r *Runner) run(ctx context.Context, opts Options) (*Report, error) {
	runDate, target := r.dates(opts)
	rep := &Report{
		RunID:      uuid.NewString(),
		RunDate:    runDate.Format("2006-01-02"),
		TargetDate: target.Format("2006-01-02"),
		DryRun:     opts.DryRun,
	}
	log := r.logger().With(zap.String("run_id", rep.RunID), zap.String("run_date", rep.RunDate))

	if !opts.DryRun && r.Publisher == nil {
		return rep, ErrNoPublisher
	}

	// 1. 当天已生成则直接跳过，不发任何网络请求
	if !opts.Force && !opts.DryRun {
		done, err := r.Files.HasMarker(runDate)
		if err != nil {
			return rep, fmt.Errorf("check marker: %w", err)
		}
		if done {
			log.Info("digest already generated, skipping", zap.String("marker", r.Files.MarkerPath(runDate)))
			rep.Skipped = true
			rep.OutputPath = r.Files.MarkerPath(runDate)
			return rep, nil
		}
	}

	// 2. 抓取 + 分类
	log.Info("collecting news", zap.String("target_date", rep.TargetDate))
	items := r.Collector.Aggregate(ctx, target)
	rep.Collected = len(items)

	result := r.Classifier.Classify(ctx, items)
	if !result.OK() {
		log.Warn("classification degraded", zap.Bool("malformed", result.Malformed), zap.Error(result.Err))
	}

	// 3. 快照写失败视为致命
	if err := r.Files.WriteSnapshot(runDate, items, result.Bucket); err != nil {
		return rep, fmt.Errorf("write snapshot: %w", err)
	}

	targetLabel := digest.GregorianLabel(target)
	bucket := result.Bucket
	var (
		briefs digest.Briefs
		quote  string
	)

	// 4. 分类为空时走兜底：让模型直接写
	if bucket.Empty() {
		log.Warn("no classified news, composing fallback digest", zap.Int("collected", len(items)))
		composed, err := r.Writer.Compose(ctx, targetLabel)
		if err != nil {
			return rep, err
		}
		rep.Fallback = true
		bucket, briefs, quote = composed.Bucket, composed.Briefs, composed.Quote
	} else {
		briefs = r.Writer.Briefs(ctx, bucket, targetLabel)
	}
	if quote == "" {
		quote = r.Writer.ClosingQuote(ctx)
	}
	rep.Classified = bucket.Total()

	// 5. 组装、检查、渲染
	d := digest.Assemble(bucket, briefs, quote, runDate, target)
	rep.Title = d.Title
	rep.Warnings = digest.Check(d)
	for _, w := range rep.Warnings {
		log.Warn("content check", zap.String("warning", w))
	}

	html, err := digest.Render(d)
	if err != nil {
		return rep, err
	}

	// 6. 试运行到此为止
	if opts.DryRun {
		if err := r.Files.WritePreview(runDate, html); err != nil {
			return rep, fmt.Errorf("write preview: %w", err)
		}
		rep.OutputPath = r.Files.PreviewPath(runDate)
		log.Info("dry run finished", zap.String("preview", rep.OutputPath), zap.Int("items", rep.Classified))
		return rep, nil
	}

	// 7. 封面失败不影响发布
	if r.Cover != nil {
		url, err := r.Cover.Cover(ctx, d.Title)
		if err != nil {
			log.Warn("cover generation failed, publishing without cover", zap.Error(err))
		} else {
			rep.CoverURL = url
		}
	}

	rep.Summary = r.Writer.Summary(ctx, html)

	err = r.Publisher.Publish(ctx, publisher.Article{
		Title:      d.Title,
		Content:    html,
		Summary:    rep.Summary,
		CoverImage: rep.CoverURL,
	})
	if err != nil {
		log.Error("publish failed", zap.Error(err))
		return rep, fmt.Errorf("publish: %w", err)
	}

	// 8. 发布成功后才写标记
	if err := r.Files.WriteMarker(runDate, html); err != nil {
		return rep, fmt.Errorf("write marker: %w", err)
	}
	rep.OutputPath = r.Files.MarkerPath(runDate)

	if archive := r.archive(log); archive != nil {
		err := archive.SaveDigest(ctx, storage.Published{
			RunID:    rep.RunID,
			Digest:   d,
			HTML:     html,
			Summary:  rep.Summary,
			CoverURL: rep.CoverURL,
		})
		if err != nil {
			log.Warn("archive digest failed", zap.Error(err))
		}
	}

	log.Info("digest published",
		zap.String("title", d.Title),
		zap.Int("items", rep.Classified),
		zap.Bool("fallback", rep.Fallback),
		zap.Bool("cover", rep.CoverURL != ""),
	)
	return rep, nil
}

// dates 运行日与目标日都按配置时区取日历日
func (r *Runner) dates(opts Options) (time.Time, time.Time) {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	run := opts.RunDate
	if run.IsZero() {
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		run = now()
	}
	run = run.In(loc)

	target := opts.TargetDate
	if target.IsZero() {
		target = run.AddDate(0, 0, -1)
	}
	target = target.In(loc)
	return run, time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, loc)
}

// archive 首次需要时打开归档，失败只记日志，下次运行再试
func (r *Runner) archive(log *zap.Logger) Archiver {
	r.archiveMu.Lock()
	defer r.archiveMu.Unlock()
	if r.Archive != nil || r.OpenArchive == nil {
		return r.Archive
	}
	a, err := r.OpenArchive()
	if err != nil {
		log.Warn("archive unavailable", zap.Error(err))
		return nil
	}
	r.Archive = a
	return a
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
