package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/LJTian/DailyDigest/internal/classify"
)

type theme struct {
	Icon   string
	Badge  template.CSS
	Accent string
}

var themes = map[classify.Category]theme{
	classify.AI: {
		Icon:   "📱",
		Badge:  "linear-gradient(135deg, #667eea 0%, #764ba2 100%); box-shadow: 0 4px 15px rgba(102, 126, 234, 0.3)",
		Accent: "#667eea",
	},
	classify.Tech: {
		Icon:   "💻",
		Badge:  "linear-gradient(135deg, #f093fb 0%, #f5576c 100%); box-shadow: 0 4px 15px rgba(245, 87, 108, 0.3)",
		Accent: "#f5576c",
	},
	classify.Finance: {
		Icon:   "💰",
		Badge:  "linear-gradient(135deg, #4facfe 0%, #00f2fe 100%); box-shadow: 0 4px 15px rgba(79, 172, 254, 0.3)",
		Accent: "#4facfe",
	},
}

type renderLine struct {
	Rank      string
	Text      string
	LineStyle template.CSS
	RankStyle template.CSS
}

type renderSection struct {
	Title      string
	BadgeStyle template.CSS
	Lines      []renderLine
}

type renderData struct {
	Labels   Labels
	Sections []renderSection
	Quote    string
}

var page = template.Must(template.New("digest").Parse(`<section style="padding: 20px; font-family: -apple-system, BlinkMacSystemFont, 'Helvetica Neue', 'PingFang SC', sans-serif; background: #f8f9fa;">

<section style="text-align: center; padding: 25px 20px; background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); border-radius: 20px; margin-bottom: 30px; box-shadow: 0 8px 20px rgba(102, 126, 234, 0.3);">
<p style="margin: 0; font-size: 13px; color: rgba(255,255,255,0.8); letter-spacing: 1px;">{{.Labels.Lunar}}</p>
<p style="margin: 10px 0; font-size: 28px; font-weight: bold; color: #fff; letter-spacing: 4px;">{{.Labels.Weekday}}</p>
<p style="margin: 0; font-size: 14px; color: rgba(255,255,255,0.9);">{{.Labels.Gregorian}}</p>
</section>

<p style="margin: 0 0 20px 0; color: #666; font-size: 14px; text-align: center;">以下是{{.Labels.Target}}的新闻汇总</p>
{{range .Sections}}
<section style="margin-bottom: 25px; background: #fff; border-radius: 15px; padding: 20px; box-shadow: 0 2px 10px rgba(0,0,0,0.08);">
<p style="{{.BadgeStyle}}">{{.Title}}</p>
<div style="padding: 0 10px;">
{{- range .Lines}}
<p style="{{.LineStyle}}"><span style="{{.RankStyle}}">{{.Rank}}</span>{{.Text}}</p>
{{- end}}
</div>
</section>
{{end}}
{{- if .Quote}}
<section style="margin-top: 30px; padding: 25px; background: linear-gradient(135deg, #fa709a 0%, #fee140 100%); border-radius: 15px; box-shadow: 0 4px 15px rgba(250, 112, 154, 0.3);">
<p style="margin: 0 0 12px 0; font-size: 16px; font-weight: bold; color: #fff; letter-spacing: 2px;">【 微 语 】</p>
<p style="margin: 0; color: #fff; font-size: 15px; line-height: 1.8; text-align: justify;">{{.Quote}}</p>
</section>
{{end}}
</section>
`))

// Render 输出公众号正文 HTML，样式全部内联
func Render(d *Digest) (string, error) {
	data := renderData{Labels: d.Labels, Quote: strings.TrimSpace(d.ClosingQuote)}

	for _, s := range d.Sections {
		th := themes[s.Category]
		rs := renderSection{
			Title: strings.TrimSpace(th.Icon + " " + string(s.Category)),
			BadgeStyle: template.CSS("display: inline-block; background: " + string(th.Badge) +
				"; color: #fff; font-size: 18px; font-weight: bold; padding: 10px 25px; border-radius: 25px; margin: 0 0 20px 0;"),
		}
		for i, e := range s.Entries {
			margin := "0 0 15px 0"
			if i == len(s.Entries)-1 {
				margin = "0"
			}
			rs.Lines = append(rs.Lines, renderLine{
				Rank: fmt.Sprintf("%02d", i+1),
				Text: e.Brief,
				LineStyle: template.CSS("margin: " + margin +
					"; line-height: 2; color: #333; font-size: 15px; padding-left: 5px; border-left: 3px solid " + th.Accent + ";"),
				RankStyle: template.CSS("color: " + th.Accent + "; font-weight: bold; margin-right: 10px;"),
			})
		}
		data.Sections = append(data.Sections, rs)
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}
