package collector

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/LJTian/DailyDigest/internal/processor"
)

const (
	translateMaxLen        = 500
	translateClientTimeout = 20 * time.Second

	googleTranslateURL = "https://translate.googleapis.com/translate_a/single"
	myMemoryURL        = "https://api.mymemory.translated.net/get"
)

// Translator 把外文标题翻成中文：Google 公开接口 → MyMemory，都失败返回原文
type Translator struct {
	client    *resty.Client
	GoogleURL string
	MemoryURL string
	Logger    *zap.Logger
}

func NewTranslator(log *zap.Logger) *Translator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Translator{
		client:    resty.New().SetTimeout(translateClientTimeout).SetHeader("User-Agent", "Mozilla/5.0"),
		GoogleURL: googleTranslateURL,
		MemoryURL: myMemoryURL,
		Logger:    log,
	}
}

// ToChinese 已经是中文的文本原样返回
func (t *Translator) ToChinese(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if text == "" || IsMostlyChinese(text) {
		return text
	}
	text = processor.TruncateRunes(text, translateMaxLen)

	if out := t.viaGoogle(ctx, text); out != "" {
		return out
	}
	if out := t.viaMyMemory(ctx, text); out != "" {
		return out
	}
	return text
}

// viaGoogle client=gtx 无需密钥
func (t *Translator) viaGoogle(ctx context.Context, text string) string {
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client": "gtx",
			"sl":     "auto",
			"tl":     "zh-CN",
			"dt":     "t",
			"q":      text,
		}).
		Get(t.GoogleURL)
	if err != nil {
		t.Logger.Debug("translate (google-gtx) failed", zap.Error(err))
		return ""
	}
	if !resp.IsSuccess() {
		t.Logger.Debug("translate (google-gtx) failed", zap.Int("status", resp.StatusCode()))
		return ""
	}

	// 响应格式: [[["翻译文本","原文",...],...],...]
	var raw []any
	if err := json.Unmarshal(resp.Body(), &raw); err != nil || len(raw) == 0 {
		return ""
	}
	outer, ok := raw[0].([]any)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, seg := range outer {
		pair, ok := seg.([]any)
		if !ok || len(pair) < 1 {
			continue
		}
		if s, ok := pair[0].(string); ok {
			b.WriteString(s)
		}
	}
	return strings.TrimSpace(b.String())
}

func (t *Translator) viaMyMemory(ctx context.Context, text string) string {
	var out struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"langpair": sourceLangForMyMemory(text) + "|zh",
			"q":        text,
		}).
		SetResult(&out).
		Get(t.MemoryURL)
	if err != nil || !resp.IsSuccess() {
		t.Logger.Debug("translate (mymemory) failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(out.ResponseData.TranslatedText)
}

// IsMostlyChinese 至少两个汉字，或汉字占非空白字符的四分之一以上
func IsMostlyChinese(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	var cjk, total int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isCJK(r) {
			cjk++
		}
	}
	if total == 0 {
		return true
	}
	return cjk >= 1 && (cjk*4 >= total || cjk >= 2)
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4e00 && r <= 0x9fff:
		return true
	case r >= 0x3400 && r <= 0x4dbf:
		return true
	case r >= 0x3000 && r <= 0x303f:
		return true
	}
	return false
}

func sourceLangForMyMemory(s string) string {
	for _, r := range s {
		if r >= 0x3040 && r <= 0x309f || r >= 0x30a0 && r <= 0x30ff {
			return "ja"
		}
	}
	return "en"
}
