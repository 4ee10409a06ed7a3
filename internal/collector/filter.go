package collector

import (
	"net/mail"
	"strings"
	"time"
)

// 带数字时区的非标准格式
var zonedLayouts = []string{
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05-0700",
	"Mon, 2 Jan 2006 15:04 -0700",
}

// 没有时区的格式按 loc 解读
var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"Mon, 2 Jan 2006 15:04:05",
	"Mon, 2 Jan 2006 15:04",
	"2 Jan 2006 15:04:05",
	"2006-01-02",
}

// ParseDate 先按 RFC 2822 解析源里的日期字符串，再试 RFC 3339 和几种常见格式；
// 没写时区的时间按 loc 解读。都不行返回 ok=false，由调用方保留该条目
func ParseDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := mail.ParseDate(raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// KeepForDay 判断发布时间在 loc 时区下是否与 target 同一天。
// 日期缺失或无法解析时保留（fail-open）。
func KeepForDay(published time.Time, ok bool, target time.Time, loc *time.Location) bool {
	if !ok {
		return true
	}
	if loc == nil {
		loc = time.Local
	}
	return SameDay(published.In(loc), target.In(loc))
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
