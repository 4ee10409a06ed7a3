package digest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/DailyDigest/internal/classify"
	"github.com/LJTian/DailyDigest/internal/collector"
)

func items(prefix string, n int) []collector.NewsItem {
	out := make([]collector.NewsItem, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, collector.NewsItem{Title: fmt.Sprintf("%s %d", prefix, i)})
	}
	return out
}

var (
	runDay    = time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)
	targetDay = time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC)
)

func TestLabels(t *testing.T) {
	l := NewLabels(runDay, targetDay)

	assert.Equal(t, "甲辰年正月初一", l.Lunar)
	assert.Equal(t, "星期六", l.Weekday)
	assert.Equal(t, "2024年02月10日", l.Gregorian)
	assert.Equal(t, "2024年02月09日", l.Target)
	assert.Equal(t, "2月10日AI科技财经日报", Title(runDay))
}

func TestAssembleKeepsOrderAndCaps(t *testing.T) {
	bucket := classify.Bucket{
		classify.AI:      items("ai", 7),
		classify.Tech:    items("tech", 2),
		classify.Finance: nil,
	}
	briefs := Briefs{classify.AI: {"第一条简讯", "", "第三条简讯"}}

	d := Assemble(bucket, briefs, "保持好奇", runDay, targetDay)

	require.Len(t, d.Sections, 3)
	assert.Equal(t, classify.AI, d.Sections[0].Category)
	assert.Equal(t, classify.Finance, d.Sections[2].Category)

	ai := d.Section(classify.AI)
	require.Len(t, ai.Entries, 5)
	assert.Equal(t, "第一条简讯", ai.Entries[0].Brief)
	assert.Equal(t, "ai 2", ai.Entries[1].Brief)
	assert.Equal(t, "第三条简讯", ai.Entries[2].Brief)
	assert.Equal(t, "ai 5", ai.Entries[4].Item.Title)

	assert.Len(t, d.Section(classify.Tech).Entries, 2)
	assert.Empty(t, d.Section(classify.Finance).Entries)
	assert.Equal(t, 7, d.Total())
	assert.Equal(t, "2月10日AI科技财经日报", d.Title)
}

func TestCheckWarnings(t *testing.T) {
	full := classify.Bucket{
		classify.AI:      items("ai", 5),
		classify.Tech:    items("tech", 5),
		classify.Finance: items("fin", 5),
	}
	assert.Empty(t, Check(Assemble(full, nil, "微语", runDay, targetDay)))

	partial := classify.Bucket{classify.AI: items("ai", 3)}
	warnings := Check(Assemble(partial, nil, "", runDay, targetDay))
	assert.Contains(t, warnings, "AI 领域 只有 3 条新闻")
	assert.Contains(t, warnings, "科技动态 只有 0 条新闻")
	assert.Contains(t, warnings, "缺少微语")
}

func TestRender(t *testing.T) {
	bucket := classify.Bucket{
		classify.AI:   items("ai", 2),
		classify.Tech: {{Title: "AT&T <b>5G</b>"}},
	}
	d := Assemble(bucket, nil, "种一棵树最好的时间是十年前", runDay, targetDay)

	out, err := Render(d)
	require.NoError(t, err)

	assert.Contains(t, out, "甲辰年正月初一")
	assert.Contains(t, out, "星期六")
	assert.Contains(t, out, "以下是2024年02月09日的新闻汇总")
	assert.Contains(t, out, "📱 AI 领域")
	assert.Contains(t, out, "💻 科技动态")
	assert.Contains(t, out, "💰 财经要闻")
	assert.Contains(t, out, ">01</span>ai 1</p>")
	assert.Contains(t, out, ">02</span>ai 2</p>")
	assert.Contains(t, out, "border-left: 3px solid #f5576c;")
	assert.Contains(t, out, "AT&amp;T &lt;b&gt;5G&lt;/b&gt;")
	assert.Contains(t, out, "【 微 语 】")
	assert.Contains(t, out, "种一棵树最好的时间是十年前")
	assert.True(t, strings.HasPrefix(out, "<section"))

	noQuote, err := Render(Assemble(bucket, nil, "", runDay, targetDay))
	require.NoError(t, err)
	assert.NotContains(t, noQuote, "微 语")
}
