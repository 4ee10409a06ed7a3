package editor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/classify"
	"github.com/LJTian/DailyDigest/internal/collector"
	"github.com/LJTian/DailyDigest/internal/digest"
	"github.com/LJTian/DailyDigest/internal/errs"
	"github.com/LJTian/DailyDigest/internal/processor"
)

// Composed 兜底日报：没有来源新闻，只有模型写的简讯
type Composed struct {
	Bucket classify.Bucket
	Briefs digest.Briefs
	Quote  string
}

type composeReply struct {
	Categories map[string][]string `json:"categories"`
	Quote      string              `json:"quote"`
}

// Compose 在分类结果为空时让模型直接写出目标日期的三栏新闻和微语
func (e *Editor) Compose(ctx context.Context, target string) (*Composed, error) {
	prompt := "请生成" + target + `的AI科技财经日报。
要求：
1. 三个栏目：AI 领域、科技动态、财经要闻，每个栏目 5 条新闻
2. 新闻要真实、重要、最新，每条 1-2 句话，简洁明了
3. 再写一句励志、有深度的微语
4. 只输出 JSON，不要其他文字，格式如下：
{"categories": {"AI 领域": ["..."], "科技动态": ["..."], "财经要闻": ["..."]}, "quote": "..."}`

	raw, err := e.LLM.Complete(ctx, prompt, 3000)
	if err != nil {
		return nil, errs.ClassificationEmpty("compose", err)
	}

	var reply composeReply
	if err := json.Unmarshal([]byte(processor.StripCodeFence(raw)), &reply); err != nil {
		return nil, errs.ClassificationEmpty("compose", errs.Parse("compose reply", err))
	}

	out := &Composed{
		Bucket: classify.NewBucket(),
		Briefs: make(digest.Briefs, len(classify.Categories)),
		Quote:  strings.TrimSpace(reply.Quote),
	}
	for _, key := range classify.SortedKeys(reply.Categories) {
		lines := reply.Categories[key]
		cat, ok := categoryOf(key)
		if !ok {
			continue
		}
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" || len(out.Bucket[cat]) >= digest.PerCategory {
				continue
			}
			out.Bucket[cat] = append(out.Bucket[cat], collector.NewsItem{Title: line})
			out.Briefs[cat] = append(out.Briefs[cat], line)
		}
	}

	if out.Bucket.Empty() {
		return nil, errs.ClassificationEmpty("compose", errors.New("reply has no news lines"))
	}
	e.Logger.Info("composed fallback digest", zap.Int("items", out.Bucket.Total()))
	return out, nil
}
