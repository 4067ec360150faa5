package processor

import (
	"reflect"
	"testing"
	"time"

	"github.com/LJTian/NewsRadar/internal/collector"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	return &t
}

func TestTruncateRunesHandlesChineseAndEllipsis(t *testing.T) {
	s := "你好，世界，这是一个很长的中文句子，用来测试截断逻辑。"
	out := truncateRunes(s, 5)
	if len([]rune(out)) != 6 { // 5 个字符 + 1 个省略号
		t.Fatalf("truncateRunes length = %d, want 6 (including ellipsis): %q", len([]rune(out)), out)
	}

	// limit 大于长度时不应截断
	if full := truncateRunes("短文本", 10); full != "短文本" {
		t.Fatalf("truncateRunes should keep original when under limit: %q", full)
	}
}

func TestClassifyFillsSummaryAndCategories(t *testing.T) {
	p := NewSimpleProcessor(nil)
	n := p.Classify(collector.NewsItem{
		Title:       "  Solar power grid  ",
		URL:         "https://example.com/1",
		Source:      "test",
		Body:        "Bitcoin miners use cheap electricity.",
		PublishedAt: day(2024, 7, 16),
	})

	if n.Title != "Solar power grid" {
		t.Fatalf("title not trimmed: %q", n.Title)
	}
	// 没有摘要时用正文兜底
	if n.Summary != "Bitcoin miners use cheap electricity." {
		t.Fatalf("summary = %q", n.Summary)
	}
	if !reflect.DeepEqual(n.Categories, []string{"energy", "financial"}) {
		t.Fatalf("categories = %v", n.Categories)
	}
	if n.RelevanceScore != len(n.Keywords) {
		t.Fatalf("default score %d should equal distinct keywords %d", n.RelevanceScore, len(n.Keywords))
	}
	if n.TimePeriod != "2023-2024" {
		t.Fatalf("time period = %q", n.TimePeriod)
	}
}

func TestFilterDateRange(t *testing.T) {
	n := ProcessedNews{PublishedAt: day(2024, 7, 16)}

	in := Filter{DateFrom: day(2024, 7, 15), DateTo: day(2024, 7, 20)}
	if !in.Match(n) {
		t.Fatalf("2024-07-16 should pass 07-15..07-20")
	}
	out := Filter{DateFrom: day(2024, 7, 15), DateTo: day(2024, 7, 10)}
	if out.Match(n) {
		t.Fatalf("2024-07-16 should not pass dateTo 07-10")
	}

	// 无发布日期的记录不受日期条件约束
	if !out.Match(ProcessedNews{}) {
		t.Fatalf("record without published date should pass date filter")
	}
}

func TestProcessKeywordFilter(t *testing.T) {
	p := NewSimpleProcessor(nil)
	items := []collector.NewsItem{
		{Title: "Bitcoin slides", URL: "https://example.com/1"},
		{Title: "Inflation cools", URL: "https://example.com/2"},
		{Title: "Nuclear plant opens", URL: "https://example.com/3"},
	}

	out := p.Process(items, Filter{Keywords: []string{"BITCOIN"}})
	if len(out) != 1 || out[0].URL != "https://example.com/1" {
		t.Fatalf("keyword filter result = %+v", out)
	}

	all := p.Process(items, Filter{})
	if len(all) != 3 {
		t.Fatalf("empty filter should keep all items, got %d", len(all))
	}
	for i, n := range all {
		if n.URL != items[i].URL {
			t.Fatalf("order changed at %d: %q", i, n.URL)
		}
	}
}

func TestTimePeriod(t *testing.T) {
	tests := []struct {
		t    *time.Time
		want string
	}{
		{nil, ""},
		{day(2001, 1, 1), ""},
		{day(2002, 1, 1), "2002-2018"},
		{day(2018, 12, 31), "2002-2018"},
		{day(2019, 1, 1), "2018-2022"},
		{day(2023, 6, 1), "2023-2024"},
		{day(2025, 1, 1), ""},
	}
	for _, tt := range tests {
		if got := TimePeriod(tt.t); got != tt.want {
			t.Fatalf("TimePeriod(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}
