package processor

import (
	"strings"
	"time"

	"github.com/LJTian/NewsRadar/internal/classifier"
	"github.com/LJTian/NewsRadar/internal/collector"
)

// 摘要缺失时从正文截取的长度（按 rune）
const summaryMaxRunes = 300

// ProcessedNews 分类后、写入存储层前的统一结构
type ProcessedNews struct {
	Title       string
	URL         string
	Source      string
	Body        string
	Summary     string
	Author      string
	PublishedAt *time.Time
	ImageURL    string
	Tags        []string

	Keywords       []string
	Categories     []string
	RelevanceScore int
	TimePeriod     string
}

// HasKeyword 大小写不敏感
func (p ProcessedNews) HasKeyword(kw string) bool {
	kw = strings.ToLower(strings.TrimSpace(kw))
	for _, k := range p.Keywords {
		if k == kw {
			return true
		}
	}
	return false
}

// Filter 关键词与发布日期过滤条件，零值表示不过滤
type Filter struct {
	Keywords []string
	DateFrom *time.Time
	DateTo   *time.Time
}

// Match 判断一条记录是否通过过滤。
// 没有发布日期的记录不受日期条件约束；关键词条件要求至少命中一个。
func (f Filter) Match(n ProcessedNews) bool {
	if n.PublishedAt != nil {
		if f.DateFrom != nil && n.PublishedAt.Before(*f.DateFrom) {
			return false
		}
		if f.DateTo != nil && n.PublishedAt.After(*f.DateTo) {
			return false
		}
	}
	if len(f.Keywords) == 0 {
		return true
	}
	for _, kw := range f.Keywords {
		if n.HasKeyword(kw) {
			return true
		}
	}
	return false
}

// SimpleProcessor 做基础清洗并调用分类器
type SimpleProcessor struct {
	classifier *classifier.Classifier
}

// NewSimpleProcessor c 为 nil 时使用默认分类器
func NewSimpleProcessor(c *classifier.Classifier) *SimpleProcessor {
	if c == nil {
		c = classifier.New(classifier.DefaultOccurrenceCap)
	}
	return &SimpleProcessor{classifier: c}
}

// Classify 清洗单条记录并计算关键词、分类、相关度
func (p *SimpleProcessor) Classify(it collector.NewsItem) ProcessedNews {
	title := strings.TrimSpace(it.Title)
	body := strings.TrimSpace(it.Body)
	summary := strings.TrimSpace(it.Summary)
	if summary == "" {
		summary = truncateRunes(body, summaryMaxRunes)
	}

	res := p.classifier.Classify(title, body)
	cats := make([]string, 0, len(res.Categories))
	for _, c := range res.Categories {
		cats = append(cats, string(c))
	}

	return ProcessedNews{
		Title:          title,
		URL:            it.URL,
		Source:         it.Source,
		Body:           body,
		Summary:        summary,
		Author:         strings.TrimSpace(it.Author),
		PublishedAt:    it.PublishedAt,
		ImageURL:       it.ImageURL,
		Tags:           it.Tags,
		Keywords:       res.Keywords,
		Categories:     cats,
		RelevanceScore: res.Score,
		TimePeriod:     TimePeriod(it.PublishedAt),
	}
}

// Process 分类并过滤，保持输入顺序
func (p *SimpleProcessor) Process(items []collector.NewsItem, f Filter) []ProcessedNews {
	out := make([]ProcessedNews, 0, len(items))
	for _, it := range items {
		n := p.Classify(it)
		if !f.Match(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// TimePeriod 按发布年份划分时间段，范围外或无日期返回空串
func TimePeriod(t *time.Time) string {
	if t == nil {
		return ""
	}
	switch y := t.Year(); {
	case y >= 2002 && y <= 2018:
		return "2002-2018"
	case y >= 2019 && y <= 2022:
		return "2018-2022"
	case y >= 2023 && y <= 2024:
		return "2023-2024"
	}
	return ""
}

// truncateRunes 按 rune 截断并追加省略号
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return strings.TrimSpace(string(rs[:limit])) + "…"
}
