// Package editor 负责日报里需要大模型写作的部分：简讯、微语、发布摘要，以及 RSS 不可用时的兜底日报。
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/classify"
	"github.com/LJTian/DailyDigest/internal/collector"
	"github.com/LJTian/DailyDigest/internal/digest"
	"github.com/LJTian/DailyDigest/internal/errs"
	"github.com/LJTian/DailyDigest/internal/llm"
	"github.com/LJTian/DailyDigest/internal/processor"
)

const (
	DefaultSummary = "AI、科技、财经领域最新资讯汇总"
	DefaultQuote   = "保持好奇，持续学习，未来属于每一个不断前行的人。"

	summaryInputRunes = 800
	summaryMaxRunes   = 60
	briefTitleRunes   = 100
)

// Translator 简讯兜底时把外文标题翻成中文
type Translator interface {
	ToChinese(ctx context.Context, text string) string
}

type Editor struct {
	LLM        llm.Completer
	Translator Translator
	Logger     *zap.Logger
}

func New(c llm.Completer, tr Translator, log *zap.Logger) *Editor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Editor{LLM: c, Translator: tr, Logger: log}
}

// Briefs 一次调用为所有入选新闻写 1-2 句中文简讯；模型失败或某条缺失时用（翻译后的）标题代替
func (e *Editor) Briefs(ctx context.Context, bucket classify.Bucket, target string) digest.Briefs {
	briefs := make(digest.Briefs, len(classify.Categories))
	if bucket.Empty() {
		return briefs
	}

	var parsed map[string][]string
	raw, err := e.LLM.Complete(ctx, briefsPrompt(bucket, target), 3000)
	if err == nil {
		err = json.Unmarshal([]byte(processor.StripCodeFence(raw)), &parsed)
		if err != nil {
			err = errs.Parse("briefs reply", err)
		}
	}
	if err != nil {
		e.Logger.Warn("briefs fell back to titles", zap.Error(err))
	}

	lines := make(map[classify.Category][]string, len(parsed))
	// 同一栏目写法重复时取排序后的第一个
	for _, key := range classify.SortedKeys(parsed) {
		if cat, ok := categoryOf(key); ok {
			if _, seen := lines[cat]; !seen {
				lines[cat] = parsed[key]
			}
		}
	}

	for _, cat := range classify.Categories {
		items := bucket[cat]
		out := make([]string, len(items))
		for i, it := range items {
			if i < len(lines[cat]) {
				out[i] = strings.TrimSpace(lines[cat][i])
			}
			if out[i] == "" {
				out[i] = e.titleBrief(ctx, it)
			}
		}
		briefs[cat] = out
	}
	return briefs
}

func (e *Editor) titleBrief(ctx context.Context, it collector.NewsItem) string {
	title := processor.TruncateRunes(strings.TrimSpace(it.Title), briefTitleRunes)
	if e.Translator == nil {
		return title
	}
	return e.Translator.ToChinese(ctx, title)
}

func briefsPrompt(bucket classify.Bucket, target string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "你是一位专业新闻编辑。以下是%s通过 RSS 收集并分类的新闻：\n", target)
	for _, cat := range classify.Categories {
		fmt.Fprintf(&b, "\n## %s\n", cat)
		for i, it := range bucket[cat] {
			fmt.Fprintf(&b, "%d. %s\n", i+1, processor.TruncateRunes(it.Title, briefTitleRunes))
			if it.Summary != "" {
				fmt.Fprintf(&b, "   摘要: %s\n", processor.TruncateRunes(it.Summary, 200))
			}
		}
	}
	b.WriteString(`
请为每条新闻写一句 1-2 句话的中文简讯，保持与上面相同的栏目和顺序。
要求：
1. 新闻内容开头不要标注来源媒体
2. 英文新闻翻译成中文
3. 只输出 JSON，格式如下，不要其他文字：
{"AI 领域": ["简讯1", "简讯2"], "科技动态": ["简讯1"], "财经要闻": ["简讯1"]}`)
	return b.String()
}

// ClosingQuote 生成一句微语，失败时用固定句子
func (e *Editor) ClosingQuote(ctx context.Context) string {
	raw, err := e.LLM.Complete(ctx, "请写一句关于技术、创新或人生的励志语录，30-60字，要有深度。只输出这句话本身，不要引号和其他文字。", 200)
	if err != nil {
		e.Logger.Warn("closing quote fell back to default", zap.Error(err))
		return DefaultQuote
	}
	quote := cleanLine(raw)
	if quote == "" {
		return DefaultQuote
	}
	return quote
}

// Summary 根据正文纯文本生成 20-30 字的发布摘要
func (e *Editor) Summary(ctx context.Context, html string) string {
	text := processor.TruncateRunes(processor.PlainText(html), summaryInputRunes)
	prompt := "请根据以下新闻日报内容，生成一句简洁的摘要（20-30字），要求：\n" +
		"1. 提炼出当天最重要的1-2个新闻亮点\n" +
		"2. 语言简洁有力，吸引读者点击\n" +
		"3. 不要包含日期信息\n\n" +
		"新闻内容：\n" + text

	raw, err := e.LLM.Complete(ctx, prompt, 100)
	if err != nil {
		e.Logger.Warn("summary fell back to default", zap.Error(err))
		return DefaultSummary
	}
	summary := processor.TruncateRunes(cleanLine(raw), summaryMaxRunes)
	if summary == "" {
		return DefaultSummary
	}
	return summary
}

// cleanLine 去掉代码块、首尾引号和空白
func cleanLine(s string) string {
	s = processor.StripCodeFence(s)
	s = strings.Trim(s, " \t\r\n\"'“”‘’「」")
	return strings.TrimSpace(s)
}

func categoryOf(key string) (classify.Category, bool) {
	k := strings.ReplaceAll(strings.TrimSpace(key), " ", "")
	for _, c := range classify.Categories {
		if strings.ReplaceAll(string(c), " ", "") == k {
			return c, true
		}
	}
	return "", false
}
