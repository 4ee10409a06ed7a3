// Package digest 把分类结果组装成当天的日报，并渲染成公众号可用的 HTML。
package digest

import (
	"time"

	"github.com/LJTian/DailyDigest/internal/classify"
	"github.com/LJTian/DailyDigest/internal/collector"
)

const PerCategory = 5

// Briefs 每个栏目的简讯文本，与 Bucket 中新闻顺序一一对应
type Briefs map[classify.Category][]string

type Entry struct {
	Item  collector.NewsItem `json:"item"`
	Brief string             `json:"brief"`
}

type Section struct {
	Category classify.Category `json:"category"`
	Entries  []Entry           `json:"entries"`
}

// Digest 一次运行的最终产物，组装后不再修改
type Digest struct {
	Title        string    `json:"title"`
	RunDate      time.Time `json:"run_date"`
	TargetDate   time.Time `json:"target_date"`
	Labels       Labels    `json:"labels"`
	Sections     []Section `json:"sections"`
	ClosingQuote string    `json:"closing_quote"`
}

// Assemble 按固定栏目顺序组装；每栏最多 5 条，缺少简讯时用标题代替。
// 不足 5 条也是合法结果，提醒由 Check 给出。
func Assemble(bucket classify.Bucket, briefs Briefs, quote string, run, target time.Time) *Digest {
	d := &Digest{
		Title:        Title(run),
		RunDate:      run,
		TargetDate:   target,
		Labels:       NewLabels(run, target),
		Sections:     make([]Section, 0, len(classify.Categories)),
		ClosingQuote: quote,
	}

	for _, cat := range classify.Categories {
		items := bucket[cat]
		if len(items) > PerCategory {
			items = items[:PerCategory]
		}
		lines := briefs[cat]

		sec := Section{Category: cat, Entries: make([]Entry, 0, len(items))}
		for i, it := range items {
			brief := it.Title
			if i < len(lines) && lines[i] != "" {
				brief = lines[i]
			}
			sec.Entries = append(sec.Entries, Entry{Item: it, Brief: brief})
		}
		d.Sections = append(d.Sections, sec)
	}
	return d
}

func (d *Digest) Total() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Entries)
	}
	return n
}

// Section 按栏目取，找不到返回空
func (d *Digest) Section(cat classify.Category) Section {
	for _, s := range d.Sections {
		if s.Category == cat {
			return s
		}
	}
	return Section{Category: cat}
}
