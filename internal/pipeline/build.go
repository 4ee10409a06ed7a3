package pipeline

import (
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/classify"
	"github.com/LJTian/DailyDigest/internal/collector"
	"github.com/LJTian/DailyDigest/internal/config"
	"github.com/LJTian/DailyDigest/internal/editor"
	"github.com/LJTian/DailyDigest/internal/imagegen"
	"github.com/LJTian/DailyDigest/internal/llm"
	"github.com/LJTian/DailyDigest/internal/publisher"
	"github.com/LJTian/DailyDigest/internal/storage"
)

// Build 按配置装配 Runner。archive 为 nil 时不归档；调用前应已执行 cfg.Validate
func Build(cfg *config.Config, archive *storage.Store, log *zap.Logger) (*Runner, error) {
	if log == nil {
		log = zap.NewNop()
	}

	chat, err := llm.New([]llm.Provider{
		llm.OpenRouter(cfg.OpenRouterAPIKey),
		llm.Doubao(cfg.DoubaoAPIKey),
	}, log.Named("llm"))
	if err != nil {
		return nil, err
	}

	files, err := storage.NewFileStore(cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	fetcher := collector.NewRSSFetcher(cfg.Location, log.Named("rss"))

	r := &Runner{
		Collector:  collector.NewAggregator(fetcher, cfg.Feeds, cfg.FeedWorkers, log.Named("aggregate")),
		Classifier: classify.New(chat, log.Named("classify")),
		Writer:     editor.New(chat, collector.NewTranslator(log.Named("translate")), log.Named("editor")),
		Files:      files,
		Location:   cfg.Location,
		Now:        config.Now,
		Logger:     log,
	}

	// 封面图用豆包的 key；没有就不出图
	if cfg.DoubaoAPIKey != "" {
		var uploader *imagegen.ImgBB
		if cfg.ImgBBAPIKey != "" {
			uploader = imagegen.NewImgBB(cfg.ImgBBAPIKey)
		}
		r.Cover = imagegen.New(imagegen.Options{
			APIKey: cfg.DoubaoAPIKey,
			Size:   cfg.CoverSize,
			Style:  imagegen.ParseStyle(cfg.CoverStyle),
		}, uploader, log.Named("cover"))
	}

	if cfg.WechatAPIKey != "" {
		r.Publisher = publisher.New(publisher.Options{
			BaseURL: cfg.WechatBaseURL,
			APIKey:  cfg.WechatAPIKey,
			AppID:   cfg.WechatAppID,
		}, log.Named("publish"))
	}

	if archive != nil {
		r.Archive = archive
	}

	log.Info("pipeline ready",
		zap.Strings("llm", chat.Providers()),
		zap.Int("feeds", len(cfg.Feeds)),
		zap.Bool("cover", r.Cover != nil),
		zap.Bool("publish", r.Publisher != nil),
		zap.Bool("archive", r.Archive != nil),
		zap.String("work_dir", cfg.WorkDir),
	)
	return r, nil
}
