package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/api"
	"github.com/LJTian/DailyDigest/internal/config"
	"github.com/LJTian/DailyDigest/internal/logger"
	"github.com/LJTian/DailyDigest/internal/pipeline"
	"github.com/LJTian/DailyDigest/internal/scheduler"
	"github.com/LJTian/DailyDigest/internal/storage"
)

// 常驻服务：按 CRON_SPEC 每天运行一次，并提供日报查询、手动触发和指标接口
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(false); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	var archive *storage.Store
	if cfg.PostgresDSN != "" {
		archive, err = storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, log.Named("storage"))
		if err != nil {
			log.Fatal("init store failed", zap.Error(err))
		}
		// 登记订阅源，便于在接口里查看
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := archive.EnsureFeeds(ctx, cfg.Feeds); err != nil {
			log.Warn("ensure feeds failed", zap.Error(err))
		}
		cancel()
	} else {
		log.Warn("POSTGRES_DSN not set, digests will not be archived")
	}

	runner, err := pipeline.Build(cfg, archive, log)
	if err != nil {
		log.Fatal("init pipeline failed", zap.Error(err))
	}

	s, err := scheduler.New(cfg.CronSpec, runner, cfg.Location, log.Named("scheduler"))
	if err != nil {
		log.Fatal("init scheduler failed", zap.Error(err))
	}
	s.Start()

	// API
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	var store api.Archive
	if archive != nil {
		store = archive
	}
	api.NewServer(store, s, runner.Files, cfg.Location, log.Named("api")).RegisterRoutes(r)

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r}
	go func() {
		log.Info("starting api server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server exit", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	s.Stop(ctx)
}
