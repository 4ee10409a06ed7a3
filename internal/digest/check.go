package digest

import (
	"fmt"
	"strings"
)

// Check 只给出提醒，不阻断发布
func Check(d *Digest) []string {
	var warnings []string
	for _, s := range d.Sections {
		if n := len(s.Entries); n < PerCategory {
			warnings = append(warnings, fmt.Sprintf("%s 只有 %d 条新闻", s.Category, n))
		}
	}
	if strings.TrimSpace(d.ClosingQuote) == "" {
		warnings = append(warnings, "缺少微语")
	}
	if d.Total() == 0 {
		warnings = append(warnings, "日报没有任何新闻")
	}
	return warnings
}
