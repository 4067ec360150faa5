package classifier

import (
	"regexp"
	"sort"
	"strings"
)

// Category 话题分类
type Category string

const (
	Energy    Category = "energy"
	Financial Category = "financial"
	AI        Category = "ai"
)

// Categories 全部分类，顺序固定
var Categories = []Category{Energy, Financial, AI}

// ParseCategory 将外部输入（大小写不敏感）转换为 Category
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// 关键词词典：启动后只读
var dictionaries = map[Category][]string{
	Energy: {
		"energy", "electricity", "power grid", "blackout", "outage",
		"renewable energy", "solar", "wind power", "nuclear", "fossil fuel",
		"power plant", "transmission", "grid", "utility", "electrical",
	},
	Financial: {
		"financial", "economy", "stock market", "inflation", "recession",
		"gdp", "economic", "finance", "investment", "banking",
		"market", "cryptocurrency", "bitcoin", "trading", "fiscal",
	},
	AI: {
		"artificial intelligence", "ai", "machine learning", "deep learning",
		"neural network", "gpt", "llm", "large language model", "openai",
		"chatgpt", "automation", "robotics", "computer vision", "nlp",
		"natural language processing", "data center", "compute", "gpu",
	},
}

// DefaultOccurrenceCap 每个关键词最多贡献的分数，默认 1 即“命中的不同关键词个数”
const DefaultOccurrenceCap = 1

// Result 分类结果
type Result struct {
	Keywords   []string
	Categories []Category
	Score      int
}

// HasKeyword 大小写不敏感地判断是否命中某个关键词
func (r Result) HasKeyword(kw string) bool {
	kw = strings.ToLower(strings.TrimSpace(kw))
	for _, k := range r.Keywords {
		if k == kw {
			return true
		}
	}
	return false
}

type pattern struct {
	phrase   string
	category Category
	re       *regexp.Regexp
}

// Classifier 基于固定词典的关键词分类器，并发安全
type Classifier struct {
	occurrenceCap int
	patterns      []pattern
}

// New 创建分类器；occurrenceCap 小于 1 时使用 DefaultOccurrenceCap
func New(occurrenceCap int) *Classifier {
	if occurrenceCap < 1 {
		occurrenceCap = DefaultOccurrenceCap
	}
	c := &Classifier{occurrenceCap: occurrenceCap}
	for _, cat := range Categories {
		for _, phrase := range dictionaries[cat] {
			c.patterns = append(c.patterns, pattern{
				phrase:   phrase,
				category: cat,
				re:       compilePhrase(phrase),
			})
		}
	}
	return c
}

// compilePhrase 短语两端按单词边界匹配，短语内部允许任意空白
// 避免 "ai" 命中 "said"、"grid" 命中 "gridlock"
func compilePhrase(phrase string) *regexp.Regexp {
	words := strings.Fields(phrase)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b` + strings.Join(words, `\s+`) + `\b`)
}

var defaultClassifier = New(DefaultOccurrenceCap)

// Classify 使用默认分类器
func Classify(title, body string) Result {
	return defaultClassifier.Classify(title, body)
}

// Classify 对标题和正文做关键词匹配；标题与正文不区分权重
func (c *Classifier) Classify(title, body string) Result {
	text := strings.ToLower(title + " " + body)

	type hit struct {
		phrase string
		first  int
		count  int
	}
	var hits []hit
	seen := make(map[string]int)
	cats := make(map[Category]struct{})

	for _, p := range c.patterns {
		locs := p.re.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		cats[p.category] = struct{}{}
		if i, ok := seen[p.phrase]; ok {
			// 同一短语出现在多个词典中，只计一次
			if locs[0][0] < hits[i].first {
				hits[i].first = locs[0][0]
			}
			continue
		}
		seen[p.phrase] = len(hits)
		hits = append(hits, hit{phrase: p.phrase, first: locs[0][0], count: len(locs)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].first < hits[j].first })

	res := Result{
		Keywords:   make([]string, 0, len(hits)),
		Categories: make([]Category, 0, len(cats)),
	}
	for _, h := range hits {
		res.Keywords = append(res.Keywords, h.phrase)
		res.Score += min(h.count, c.occurrenceCap)
	}
	for cat := range cats {
		res.Categories = append(res.Categories, cat)
	}
	sort.Slice(res.Categories, func(i, j int) bool { return res.Categories[i] < res.Categories[j] })
	return res
}
