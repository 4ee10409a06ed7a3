package api

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/pipeline"
	"github.com/LJTian/DailyDigest/internal/scheduler"
	"github.com/LJTian/DailyDigest/internal/storage"
)

// Archive storage.Store 实现；为 nil 时日报查询接口返回 503
type Archive interface {
	ListDigests(ctx context.Context, limit int) ([]storage.DigestRecord, error)
	GetDigest(ctx context.Context, date string) (*storage.DigestRecord, error)
	ListFeeds(ctx context.Context) ([]storage.Feed, error)
}

// Files storage.FileStore 实现：本地的原始新闻快照和已发布正文
type Files interface {
	ReadSnapshot(run time.Time) (*storage.Snapshot, error)
	ReadMarker(run time.Time) (string, error)
}

// Trigger scheduler.Scheduler 实现
type Trigger interface {
	TriggerAsync(opts pipeline.Options) error
	Running() bool
	Last() (*pipeline.Report, error)
}

type Server struct {
	archive  Archive
	trigger  Trigger
	files    Files
	location *time.Location
	logger   *zap.Logger
}

func NewServer(archive Archive, trigger Trigger, files Files, loc *time.Location, log *zap.Logger) *Server {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{archive: archive, trigger: trigger, files: files, location: loc, logger: log}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/digests", s.listDigests)
		v1.GET("/digests/:date", s.getDigest)
		v1.GET("/feeds", s.listFeeds)
		v1.GET("/snapshots/:date", s.getSnapshot)
		v1.GET("/pages/:date", s.getPage)
		v1.POST("/runs", s.createRun)
		v1.GET("/runs/last", s.lastRun)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listDigests(c *gin.Context) {
	if !s.requireArchive(c) {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "30"))
	if err != nil || limit <= 0 {
		limit = 30
	}

	list, err := s.archive.ListDigests(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, "list digests", err)
		return
	}
	ok(c, list)
}

func (s *Server) getDigest(c *gin.Context) {
	if !s.requireArchive(c) {
		return
	}
	date := c.Param("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": "date must be YYYY-MM-DD"})
		return
	}

	rec, err := s.archive.GetDigest(c.Request.Context(), date)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "digest not found"})
		return
	}
	if err != nil {
		s.internalError(c, "get digest", err)
		return
	}
	ok(c, rec)
}

func (s *Server) listFeeds(c *gin.Context) {
	if !s.requireArchive(c) {
		return
	}
	feeds, err := s.archive.ListFeeds(c.Request.Context())
	if err != nil {
		s.internalError(c, "list feeds", err)
		return
	}
	ok(c, feeds)
}

// getSnapshot 当天抓取到的全部新闻和分类结果
func (s *Server) getSnapshot(c *gin.Context) {
	run, okDate := s.fileDate(c)
	if !okDate {
		return
	}
	snap, err := s.files.ReadSnapshot(run)
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "snapshot not found"})
		return
	}
	if err != nil {
		s.internalError(c, "read snapshot", err)
		return
	}
	ok(c, snap)
}

// getPage 已发布的日报正文
func (s *Server) getPage(c *gin.Context) {
	run, okDate := s.fileDate(c)
	if !okDate {
		return
	}
	html, err := s.files.ReadMarker(run)
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "digest page not found"})
		return
	}
	if err != nil {
		s.internalError(c, "read page", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) fileDate(c *gin.Context) (time.Time, bool) {
	if s.files == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "unavailable", "message": "work dir not configured"})
		return time.Time{}, false
	}
	run, err := time.ParseInLocation("2006-01-02", c.Param("date"), s.location)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return run, true
}

type runRequest struct {
	Date       string `json:"date"`
	TargetDate string `json:"targetDate"`
	Force      bool   `json:"force"`
	DryRun     bool   `json:"dryRun"`
}

// createRun 手动触发一次运行，异步执行，立即返回 202
func (s *Server) createRun(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": err.Error()})
			return
		}
	}

	opts := pipeline.Options{Force: req.Force, DryRun: req.DryRun}
	var err error
	if opts.RunDate, err = s.parseDate(req.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": "date must be YYYY-MM-DD"})
		return
	}
	if opts.TargetDate, err = s.parseDate(req.TargetDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": "targetDate must be YYYY-MM-DD"})
		return
	}

	if err := s.trigger.TriggerAsync(opts); err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"code": "conflict", "message": "a run is already in progress"})
			return
		}
		s.internalError(c, "trigger run", err)
		return
	}
	s.logger.Info("manual run triggered", zap.Bool("force", opts.Force), zap.Bool("dry_run", opts.DryRun))
	c.JSON(http.StatusAccepted, gin.H{"code": "accepted", "message": "run started"})
}

func (s *Server) lastRun(c *gin.Context) {
	rep, err := s.trigger.Last()
	data := gin.H{"running": s.trigger.Running(), "report": rep}
	if err != nil {
		data["error"] = err.Error()
	}
	ok(c, data)
}

// parseDate 空串返回零值，由 pipeline 取默认日期
func (s *Server) parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", v, s.location)
}

func (s *Server) requireArchive(c *gin.Context) bool {
	if s.archive != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"code": "unavailable", "message": "archive not configured"})
	return false
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}
