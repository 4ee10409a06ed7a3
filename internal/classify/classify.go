// Package classify 调用大模型把去重后的新闻分到三个固定栏目。
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/collector"
	"github.com/LJTian/DailyDigest/internal/errs"
	"github.com/LJTian/DailyDigest/internal/llm"
	"github.com/LJTian/DailyDigest/internal/metrics"
	"github.com/LJTian/DailyDigest/internal/processor"
)

type Category string

const (
	AI      Category = "AI 领域"
	Tech    Category = "科技动态"
	Finance Category = "财经要闻"
)

// Categories 固定顺序；同一条新闻被分到多个栏目时保留在靠前的栏目
var Categories = []Category{AI, Tech, Finance}

const (
	DefaultMaxItems    = 30
	DefaultPerCategory = 5
	promptSummaryRunes = 100
	maxTokens          = 2000
)

// Bucket 栏目 → 有序新闻列表
type Bucket map[Category][]collector.NewsItem

func NewBucket() Bucket {
	b := make(Bucket, len(Categories))
	for _, c := range Categories {
		b[c] = []collector.NewsItem{}
	}
	return b
}

func (b Bucket) Total() int {
	n := 0
	for _, c := range Categories {
		n += len(b[c])
	}
	return n
}

func (b Bucket) Empty() bool { return b.Total() == 0 }

// Result 分类结果。Err 或 Malformed 不为零值时 Bucket 为全空，调用方据此决定是否走兜底
type Result struct {
	Bucket    Bucket
	Raw       string
	Malformed bool
	Err       error
}

func (r Result) OK() bool { return r.Err == nil && !r.Malformed }

type Classifier struct {
	LLM         llm.Completer
	MaxItems    int
	PerCategory int
	Logger      *zap.Logger
}

func New(c llm.Completer, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{LLM: c, MaxItems: DefaultMaxItems, PerCategory: DefaultPerCategory, Logger: log}
}

func (c *Classifier) Classify(ctx context.Context, items []collector.NewsItem) Result {
	if len(items) == 0 {
		return Result{Bucket: NewBucket()}
	}

	limit := c.MaxItems
	if limit <= 0 {
		limit = DefaultMaxItems
	}
	if len(items) > limit {
		items = items[:limit]
	}

	raw, err := c.LLM.Complete(ctx, BuildPrompt(items), maxTokens)
	if err != nil {
		metrics.ClassificationFailures.WithLabelValues("call").Inc()
		c.Logger.Warn("classification call failed", zap.Error(err))
		return Result{Bucket: NewBucket(), Err: err}
	}

	bucket, err := c.parse(raw, items)
	if err != nil {
		metrics.ClassificationFailures.WithLabelValues("malformed").Inc()
		c.Logger.Warn("classification reply malformed",
			zap.Error(err),
			zap.String("raw", processor.TruncateRunes(raw, 500)),
		)
		return Result{Bucket: NewBucket(), Raw: raw, Malformed: true, Err: errs.Parse("classification reply", err)}
	}

	c.Logger.Info("classification done",
		zap.Int("ai", len(bucket[AI])),
		zap.Int("tech", len(bucket[Tech])),
		zap.Int("finance", len(bucket[Finance])),
	)
	return Result{Bucket: bucket, Raw: raw}
}

// parse 严格解析 {"栏目": [序号...]}；序号从 1 开始，越界或重复的忽略，每栏最多 PerCategory 条
func (c *Classifier) parse(raw string, items []collector.NewsItem) (Bucket, error) {
	body := processor.StripCodeFence(raw)
	if body == "" {
		return nil, errors.New("empty reply")
	}

	var parsed map[string][]int
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, err
	}

	// 同一栏目出现多个写法（"AI 领域" / "AI领域"）时按键名排序合并，结果与 map 遍历顺序无关
	byCategory := make(map[Category][]int, len(Categories))
	for _, key := range SortedKeys(parsed) {
		cat, ok := lookupCategory(key)
		if !ok {
			continue
		}
		byCategory[cat] = append(byCategory[cat], parsed[key]...)
	}

	per := c.PerCategory
	if per <= 0 {
		per = DefaultPerCategory
	}

	bucket := NewBucket()
	taken := make(map[int]bool)
	for _, cat := range Categories {
		for _, idx := range byCategory[cat] {
			if len(bucket[cat]) >= per {
				break
			}
			if idx < 1 || idx > len(items) || taken[idx] {
				continue
			}
			taken[idx] = true
			bucket[cat] = append(bucket[cat], items[idx-1])
		}
	}
	return bucket, nil
}

// SortedKeys 按字节序返回模型回复的键
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lookupCategory 忽略空白后匹配栏目名，"AI领域" 与 "AI 领域" 等价
func lookupCategory(key string) (Category, bool) {
	k := stripSpace(key)
	for _, c := range Categories {
		if stripSpace(string(c)) == k {
			return c, true
		}
	}
	return "", false
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// BuildPrompt 编号列表 + 固定的分类说明
func BuildPrompt(items []collector.NewsItem) string {
	var list strings.Builder
	for i, it := range items {
		fmt.Fprintf(&list, "%d. 标题: %s\n", i+1, it.Title)
		if it.Summary != "" {
			fmt.Fprintf(&list, "   摘要: %s\n", processor.TruncateRunes(it.Summary, promptSummaryRunes))
		}
		fmt.Fprintf(&list, "   来源: %s\n\n", it.SourceFeed)
	}

	return "你是一位专业新闻编辑。请将以下新闻严格分类到 3 个类别中：\n\n" +
		list.String() +
		`分类标准：
- **AI 领域**: 人工智能、大模型、机器学习、深度学习、自然语言处理、计算机视觉、机器人、AI应用等
- **科技动态**: 智能手机、电脑、芯片、互联网、软件、游戏、新能源车、航天、5G/6G、创业公司、产品发布等（非AI）
- **财经要闻**: 股市、经济、货币政策、融资、并购、IPO、金融政策、宏观经济、企业财报等

请按以下 JSON 格式输出（只输出 JSON，不要其他文字）：
{
  "AI 领域": [1, 3, 5, 7, 9],
  "科技动态": [2, 4, 6, 8, 10],
  "财经要闻": [11, 12, 13, 14, 15]
}

注意：
1. 严格按照分类标准，不要混淆
2. 每个类别选择最重要的 5 条
3. 输出纯 JSON 格式`
}
