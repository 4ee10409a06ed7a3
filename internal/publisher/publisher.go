// Package publisher 把渲染好的日报推送到公众号发布接口。
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/errs"
	"github.com/LJTian/DailyDigest/internal/metrics"
	"github.com/LJTian/DailyDigest/internal/retry"
)

const (
	DefaultBaseURL = "https://wx.limyai.com/api/openapi"
	DefaultTimeout = 30 * time.Second
)

// Article 一次发布的内容；CoverImage 为空表示无封面
type Article struct {
	Title      string
	Content    string
	Summary    string
	CoverImage string
}

type publishRequest struct {
	WechatAppID   string `json:"wechatAppid,omitempty"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	ContentFormat string `json:"contentFormat"`
	Summary       string `json:"summary"`
	CoverImage    string `json:"coverImage"`
	ArticleType   string `json:"articleType"`
}

type publishResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Options struct {
	BaseURL string
	APIKey  string
	AppID   string
	Timeout time.Duration
	Retry   retry.Policy
}

type Client struct {
	client *resty.Client
	opts   Options
	logger *zap.Logger
}

func New(opts Options, log *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = retry.Policy{Attempts: retry.DefaultAttempts, Delay: retry.DefaultDelay}
	}
	// 只有网络类错误重试，接口明确拒绝时直接返回
	opts.Retry.Retryable = errs.IsNetwork
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		client: resty.New().
			SetTimeout(opts.Timeout).
			SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
			SetHeader("X-API-Key", opts.APIKey),
		opts:   opts,
		logger: log,
	}
}

func (c *Client) Publish(ctx context.Context, a Article) error {
	_, err := retry.Do(ctx, c.opts.Retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.publishOnce(ctx, a)
	}, func(attempt int, err error) {
		c.logger.Warn("publish attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	})
	switch {
	case err == nil:
		metrics.Publishes.WithLabelValues("ok").Inc()
		c.logger.Info("article published", zap.String("title", a.Title))
	case errors.Is(err, errs.ErrPublishRejected):
		metrics.Publishes.WithLabelValues("rejected").Inc()
	default:
		metrics.Publishes.WithLabelValues("error").Inc()
	}
	return err
}

func (c *Client) publishOnce(ctx context.Context, a Article) error {
	var out publishResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(publishRequest{
			WechatAppID:   c.opts.AppID,
			Title:         a.Title,
			Content:       a.Content,
			ContentFormat: "html",
			Summary:       a.Summary,
			CoverImage:    a.CoverImage,
			ArticleType:   "news",
		}).
		SetResult(&out).
		SetError(&out).
		Post("/wechat-publish")
	if err != nil {
		return errs.Network("publish", err)
	}
	if resp.StatusCode() >= 500 || resp.StatusCode() == 429 {
		return errs.Network("publish", fmt.Errorf("unexpected status %d", resp.StatusCode()))
	}
	if !out.Success {
		reason := out.Error
		if reason == "" {
			reason = out.Message
		}
		if reason == "" {
			reason = resp.Status()
		}
		return errs.PublishRejected("publish", errors.New(reason))
	}
	return nil
}
