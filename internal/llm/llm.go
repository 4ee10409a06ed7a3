// Package llm 是 OpenAI 兼容的对话补全客户端：按顺序尝试多个服务商（OpenRouter 优先，豆包兜底）。
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/errs"
	"github.com/LJTian/DailyDigest/internal/metrics"
)

const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	OpenRouterModel   = "openai/gpt-4o-mini"
	DoubaoBaseURL     = "https://ark.cn-beijing.volces.com/api/v3"
	DoubaoModel       = "doubao-seed-1-6-lite-251015"

	DefaultTimeout     = 120 * time.Second
	DefaultTemperature = 0.7
)

// Completer 单轮补全；分类、写简讯、生成摘要都只依赖这个接口
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Provider 一个 OpenAI 兼容的服务端点
type Provider struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	// Headers 附加到每个请求上，如 OpenRouter 的 HTTP-Referer / X-Title
	Headers map[string]string
	Timeout time.Duration
}

func OpenRouter(apiKey string) Provider {
	return Provider{
		Name:    "openrouter",
		BaseURL: OpenRouterBaseURL,
		APIKey:  apiKey,
		Model:   OpenRouterModel,
		Headers: map[string]string{
			"HTTP-Referer": "https://github.com/LJTian/DailyDigest",
			"X-Title":      "Daily Tech News",
		},
		Timeout: DefaultTimeout,
	}
}

func Doubao(apiKey string) Provider {
	return Provider{
		Name:    "doubao",
		BaseURL: DoubaoBaseURL,
		APIKey:  apiKey,
		Model:   DoubaoModel,
		Timeout: DefaultTimeout,
	}
}

type backend struct {
	Provider
	client *openai.Client
}

// Client 依次尝试各服务商，第一个成功的回复即返回
type Client struct {
	backends    []backend
	Temperature float32
	logger      *zap.Logger
}

// New 跳过没有 APIKey 的服务商；一个都没有时返回 ErrConfigMissing
func New(providers []Provider, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{Temperature: DefaultTemperature, logger: log}
	for _, p := range providers {
		if strings.TrimSpace(p.APIKey) == "" {
			continue
		}
		c.backends = append(c.backends, backend{Provider: p, client: newOpenAIClient(p)})
	}
	if len(c.backends) == 0 {
		return nil, errs.ConfigMissing("OPENROUTER_API_KEY", "DOUBAO_API_KEY")
	}
	return c, nil
}

func newOpenAIClient(p Provider) *openai.Client {
	cfg := openai.DefaultConfig(p.APIKey)
	if p.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(p.BaseURL, "/")
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &headerTransport{headers: p.Headers, base: http.DefaultTransport},
	}
	return openai.NewClientWithConfig(cfg)
}

// Providers 返回实际可用的服务商名，按尝试顺序
func (c *Client) Providers() []string {
	names := make([]string, 0, len(c.backends))
	for _, b := range c.backends {
		names = append(names, b.Name)
	}
	return names
}

func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var errList []error
	for _, b := range c.backends {
		out, err := c.completeWith(ctx, b, prompt, maxTokens)
		if err == nil {
			metrics.LLMRequests.WithLabelValues(b.Name, "ok").Inc()
			return out, nil
		}
		metrics.LLMRequests.WithLabelValues(b.Name, "error").Inc()
		c.logger.Warn("llm provider failed", zap.String("provider", b.Name), zap.Error(err))
		errList = append(errList, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errList...)
}

func (c *Client) completeWith(ctx context.Context, b backend, prompt string, maxTokens int) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: c.Temperature,
	})
	if err != nil {
		return "", errs.Network("chat completion "+b.Name, err)
	}
	if len(resp.Choices) == 0 {
		return "", errs.Parse("chat completion "+b.Name, fmt.Errorf("no choices in response"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
