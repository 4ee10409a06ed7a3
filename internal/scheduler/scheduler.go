// Package scheduler 按 cron 表达式每天触发一次日报运行，并保证同一时刻只有一次运行。
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/pipeline"
)

// Runner pipeline.Runner 实现
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Report, error)
}

var ErrRunInProgress = errors.New("a digest run is already in progress")

// DefaultRunTimeout 单次定时运行的上限
const DefaultRunTimeout = 30 * time.Minute

type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *zap.Logger

	// manual 跟踪 TriggerAsync 启动的后台运行
	manual sync.WaitGroup

	mu      sync.Mutex
	running bool
	last    *pipeline.Report
	lastErr error

	RunTimeout time.Duration
}

func New(spec string, runner Runner, loc *time.Location, log *zap.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := cron.New(cron.WithLocation(loc))

	s := &Scheduler{
		cron:       c,
		runner:     runner,
		logger:     log,
		RunTimeout: DefaultRunTimeout,
	}

	_, err := c.AddFunc(spec, s.runScheduled)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("scheduler started", zap.Time("next_run", e.Next))
	}
}

// Stop 停止调度，等待定时任务和手动触发的运行结束，最多等到 ctx 超时
func (s *Scheduler) Stop(ctx context.Context) {
	cronDone := s.cron.Stop().Done()
	done := make(chan struct{})
	go func() {
		<-cronDone
		s.manual.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("stop timed out, a run may have been interrupted")
	}
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.RunTimeout)
	defer cancel()
	if _, err := s.Trigger(ctx, pipeline.Options{}); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Warn("scheduled run skipped, previous run still in progress")
			return
		}
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}

// Trigger 同步执行一次运行；已有运行在进行时立刻返回 ErrRunInProgress
func (s *Scheduler) Trigger(ctx context.Context, opts pipeline.Options) (*pipeline.Report, error) {
	if !s.begin() {
		return nil, ErrRunInProgress
	}
	rep, err := s.runner.Run(ctx, opts)
	s.finish(rep, err)
	return rep, err
}

// TriggerAsync 在后台执行一次运行，供 HTTP 手动触发使用
func (s *Scheduler) TriggerAsync(opts pipeline.Options) error {
	if !s.begin() {
		return ErrRunInProgress
	}
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.RunTimeout)
		defer cancel()
		rep, err := s.runner.Run(ctx, opts)
		if err != nil {
			s.logger.Error("manual run failed", zap.Error(err))
		}
		s.finish(rep, err)
	}()
	return nil
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) finish(rep *pipeline.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.last = rep
	s.lastErr = err
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Last 最近一次完成的运行结果
func (s *Scheduler) Last() (*pipeline.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastErr
}
