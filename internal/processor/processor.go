package processor

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var spaceRun = regexp.MustCompile(`\s+`)

// StripHTML 去掉标签，只保留文本；解析失败时退化为正则剥离
func StripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return strings.TrimSpace(html.UnescapeString(s))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
	}
	return strings.TrimSpace(doc.Text())
}

var tagPattern = regexp.MustCompile(`<[^<]+?>`)

// PlainText 把整篇 HTML 压成一行纯文本，用于生成摘要
func PlainText(doc string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(StripHTML(doc), " "))
}

// TruncateRunes 按 rune 截断，不追加省略号
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// StripCodeFence 去掉模型回复外层的 ``` / ```json / ```html 包裹
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimLeft(s[3:], "abcdefghijklmnopqrstuvwxyz")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// TitleKey 去重用的标题键：去首尾空白后转小写
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
