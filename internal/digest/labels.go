package digest

import (
	"fmt"
	"time"

	"github.com/6tail/lunar-go/calendar"
)

var weekdayNames = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// Labels 日期卡片上的文字；Lunar/Weekday/Gregorian 取运行日，Target 取新闻所属日
type Labels struct {
	Lunar     string `json:"lunar"`
	Weekday   string `json:"weekday"`
	Gregorian string `json:"gregorian"`
	Target    string `json:"target"`
}

func NewLabels(run, target time.Time) Labels {
	return Labels{
		Lunar:     LunarLabel(run),
		Weekday:   WeekdayLabel(run),
		Gregorian: GregorianLabel(run),
		Target:    GregorianLabel(target),
	}
}

// LunarLabel 传统写法的农历日期，如 乙巳年冬月廿七
func LunarLabel(t time.Time) string {
	l := calendar.NewSolarFromYmd(t.Year(), int(t.Month()), t.Day()).GetLunar()
	return l.GetYearInGanZhi() + "年" + l.GetMonthInChinese() + "月" + l.GetDayInChinese()
}

func WeekdayLabel(t time.Time) string {
	return weekdayNames[t.Weekday()]
}

func GregorianLabel(t time.Time) string {
	return t.Format("2006年01月02日")
}

// Title 文章标题，如 6月2日AI科技财经日报
func Title(run time.Time) string {
	return fmt.Sprintf("%d月%d日AI科技财经日报", int(run.Month()), run.Day())
}
