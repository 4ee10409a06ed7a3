// Package imagegen 生成日报封面图：豆包 Seedream 出图，必要时转存到 imgbb 拿到公开地址。
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/errs"
	"github.com/LJTian/DailyDigest/internal/retry"
)

const (
	DefaultEndpoint = "https://ark.cn-beijing.volces.com/api/v3/images/generations"
	DefaultModel    = "doubao-seedream-4-5-251128"
	DefaultSize     = "2048x2048"
	DefaultTimeout  = 120 * time.Second
)

type Style string

const (
	Modern     Style = "modern"
	Minimalist Style = "minimalist"
	Tech       Style = "tech"
	Warm       Style = "warm"
	Creative   Style = "creative"
)

var styleDescriptions = map[Style]string{
	Modern:     "ultra high quality, 8K resolution, professional magazine cover style, clean composition, modern aesthetic, vibrant but elegant colors, premium design, photorealistic lighting",
	Minimalist: "ultra high quality, 8K, minimalist style, negative space, elegant simplicity, refined aesthetic, soft natural lighting, premium feel, zen atmosphere",
	Tech:       "ultra high quality, 8K, futuristic technology, cyberpunk elements, neon blue and purple gradients, digital art style, high tech atmosphere, clean composition, no text overlay",
	Warm:       "ultra high quality, 8K, warm golden hour lighting, soft gradient background, inviting atmosphere, friendly and approachable, cozy vibe, pastel tones, gentle and warm aesthetic, clean and modern",
	Creative:   "ultra high quality, 8K, artistic and creative, vibrant colors, modern illustration style, eye-catching composition, unique visual design, professional art direction, bold but tasteful",
}

// ParseStyle 未知风格按 modern 处理
func ParseStyle(s string) Style {
	st := Style(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := styleDescriptions[st]; ok {
		return st
	}
	return Modern
}

// CoverPrompt 画面里不允许出现任何文字
func CoverPrompt(title string, style Style) string {
	desc, ok := styleDescriptions[style]
	if !ok {
		desc = styleDescriptions[Modern]
	}
	return fmt.Sprintf("Professional cover image for article: '%s'. Style requirements: %s. "+
		"Critical constraints: NO text, NO Chinese characters, NO typography in the image. "+
		"Image must be suitable for WeChat Official Account cover. "+
		"Composition: clean, uncluttered, visually striking at small size. "+
		"Quality: photorealistic or premium illustration, sharp details, professional lighting. "+
		"Colors: vibrant but not oversaturated, modern aesthetic. Format: horizontal 16:9 aspect ratio.", title, desc)
}

type Options struct {
	Endpoint string
	APIKey   string
	Model    string
	Size     string
	Style    Style
	Timeout  time.Duration
	Retry    retry.Policy
}

type Generator struct {
	client   *resty.Client
	opts     Options
	uploader *ImgBB
	logger   *zap.Logger
}

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	ResponseFormat string `json:"response_format"`
	Size           string `json:"size"`
	GuidanceScale  int    `json:"guidance_scale"`
	Watermark      bool   `json:"watermark"`
}

type generateResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// New uploader 可为 nil，此时只接受直接返回 URL 的结果
func New(opts Options, uploader *ImgBB, log *zap.Logger) *Generator {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Size == "" {
		opts.Size = DefaultSize
	}
	if opts.Style == "" {
		opts.Style = Tech
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = retry.Policy{Attempts: retry.DefaultAttempts, Delay: retry.DefaultDelay}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		client:   resty.New().SetTimeout(opts.Timeout),
		opts:     opts,
		uploader: uploader,
		logger:   log,
	}
}

// Cover 生成封面并返回公开 URL；所有尝试失败时返回错误，调用方应降级为无封面
func (g *Generator) Cover(ctx context.Context, title string) (string, error) {
	prompt := CoverPrompt(title, g.opts.Style)
	return retry.Do(ctx, g.opts.Retry, func(ctx context.Context) (string, error) {
		return g.generate(ctx, prompt)
	}, func(attempt int, err error) {
		g.logger.Warn("cover generation attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	})
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	var out generateResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(g.opts.APIKey).
		SetBody(generateRequest{
			Model:          g.opts.Model,
			Prompt:         prompt,
			ResponseFormat: "url",
			Size:           g.opts.Size,
			GuidanceScale:  3,
			Watermark:      false,
		}).
		SetResult(&out).
		SetError(&out).
		Post(g.opts.Endpoint)
	if err != nil {
		return "", errs.Network("generate image", err)
	}
	if out.Error != nil {
		return "", errs.Network("generate image", fmt.Errorf("api error %s: %s", out.Error.Code, out.Error.Message))
	}
	if resp.IsError() {
		return "", errs.Network("generate image", fmt.Errorf("unexpected status %d", resp.StatusCode()))
	}
	if len(out.Data) == 0 {
		return "", errs.Parse("generate image", errors.New("response has no data"))
	}

	if u := strings.TrimSpace(out.Data[0].URL); u != "" {
		return u, nil
	}
	if b64 := out.Data[0].B64JSON; b64 != "" && g.uploader != nil {
		return g.uploader.Upload(ctx, b64)
	}
	return "", errs.Parse("generate image", errors.New("no image url in response"))
}
