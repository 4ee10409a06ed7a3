// 单次运行入口：抓取、分类、渲染并发布当天的日报，适合由系统 cron 或手动触发。
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/config"
	"github.com/LJTian/DailyDigest/internal/logger"
	"github.com/LJTian/DailyDigest/internal/pipeline"
	"github.com/LJTian/DailyDigest/internal/storage"
)

type runFlags struct {
	date       string
	targetDate string
	force      bool
	dryRun     bool
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f runFlags

	root := &cobra.Command{
		Use:           "daily-digest",
		Short:         "生成并发布 AI / 科技 / 财经日报",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, f)
		},
	}
	root.Flags().StringVar(&f.date, "date", "", "运行日期 YYYY-MM-DD，默认今天")
	root.Flags().StringVar(&f.targetDate, "target-date", "", "新闻日期 YYYY-MM-DD，默认运行日期前一天")
	root.Flags().BoolVar(&f.force, "force", false, "忽略当天已生成标记，重新生成并发布")
	root.Flags().BoolVar(&f.dryRun, "dry-run", false, "只生成预览文件，不出图、不发布")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "覆盖 LOG_LEVEL")

	root.AddCommand(newCheckCommand(&f))
	return root
}

func newCheckCommand(f *runFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "检查环境变量配置",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range cfg.Warnings() {
				fmt.Fprintln(out, "warning:", w)
			}
			if err := cfg.Validate(dryRun); err != nil {
				return err
			}
			fmt.Fprintf(out, "config ok: %d feeds, timezone %s, work dir %s\n", len(cfg.Feeds), cfg.Location, cfg.WorkDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "按试运行的要求检查")
	return cmd
}

func run(ctx context.Context, f runFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}

	// 凭证检查在任何网络请求之前
	if err := cfg.Validate(f.dryRun); err != nil {
		return err
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	opts := pipeline.Options{Force: f.force, DryRun: f.dryRun}
	if opts.RunDate, err = parseDate(f.date, cfg.Location); err != nil {
		return fmt.Errorf("--date: %w", err)
	}
	if opts.TargetDate, err = parseDate(f.targetDate, cfg.Location); err != nil {
		return fmt.Errorf("--target-date: %w", err)
	}

	runner, err := pipeline.Build(cfg, nil, log)
	if err != nil {
		return err
	}
	// 归档连接推迟到发布成功之后，当天已生成时不连数据库
	if cfg.PostgresDSN != "" {
		runner.OpenArchive = func() (pipeline.Archiver, error) {
			store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, log.Named("storage"))
			if err != nil {
				return nil, err
			}
			return store, nil
		}
	}

	rep, err := runner.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("run interrupted")
		}
		return err
	}

	log.Info("run finished",
		zap.String("run_id", rep.RunID),
		zap.Bool("skipped", rep.Skipped),
		zap.Bool("dry_run", rep.DryRun),
		zap.Int("collected", rep.Collected),
		zap.Int("classified", rep.Classified),
		zap.String("output", rep.OutputPath),
		zap.Duration("duration", rep.Duration),
	)
	return nil
}

func parseDate(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", v, loc)
}
