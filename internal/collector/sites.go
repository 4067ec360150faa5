package collector

import (
	"fmt"
	"strings"
	"time"
)

// NewNYTFetcher 纽约时报：商业、科技、气候、科学栏目，只收当年与上一年的文章链接
func NewNYTFetcher(opts Options) Fetcher {
	year := time.Now().Year()
	return &SiteFetcher{
		ID:      "nyt",
		BaseURL: "https://www.nytimes.com",
		Sections: []string{
			"/section/business",
			"/section/technology",
			"/section/climate",
			"/section/science",
		},
		Match:   containsAny(fmt.Sprintf("/%d/", year), fmt.Sprintf("/%d/", year-1)),
		Options: opts,
	}
}

// NewReutersFetcher 路透社：科技、商业、能源、可持续发展栏目
func NewReutersFetcher(opts Options) Fetcher {
	return &SiteFetcher{
		ID:      "reuters",
		BaseURL: "https://www.reuters.com",
		Sections: []string{
			"/technology/",
			"/business/",
			"/business/energy/",
			"/sustainability/",
		},
		Match:   containsAny("/article/", "/world/", "/technology/"),
		Options: opts,
	}
}

const openAIBlogURL = "https://openai.com/blog"

// NewOpenAIFetcher OpenAI 博客
func NewOpenAIFetcher(opts Options) Fetcher {
	blogOrResearch := containsAny("/blog/", "/research/")
	return &SiteFetcher{
		ID:      "openai",
		BaseURL: openAIBlogURL,
		Match: func(link string) bool {
			return blogOrResearch(link) && strings.TrimRight(link, "/") != openAIBlogURL
		},
		DefaultAuthor: "OpenAI",
		ExtraTags:     []string{"ai", "openai"},
		Options:       opts,
	}
}

// NewGoogleResearchFetcher Google Research 博客，列表页以 article 元素组织
func NewGoogleResearchFetcher(opts Options) Fetcher {
	return &SiteFetcher{
		ID:            "google_research",
		BaseURL:       "https://blog.research.google",
		LinkSelector:  "article a[href]",
		DefaultAuthor: "Google Research",
		ExtraTags:     []string{"ai", "google"},
		Options:       opts,
	}
}

// RegisterBuiltins 注册内置数据源
func RegisterBuiltins(r *Registry) {
	r.Register(SourceInfo{ID: "nyt", Name: "The New York Times", BaseURL: "https://www.nytimes.com"}, NewNYTFetcher, "new_york_times")
	r.Register(SourceInfo{ID: "reuters", Name: "Reuters", BaseURL: "https://www.reuters.com"}, NewReutersFetcher)
	r.Register(SourceInfo{ID: "openai", Name: "OpenAI Blog", BaseURL: openAIBlogURL}, NewOpenAIFetcher, "openai_blog")
	r.Register(SourceInfo{ID: "google_research", Name: "Google Research", BaseURL: "https://blog.research.google"}, NewGoogleResearchFetcher, "google")
	r.Register(SourceInfo{ID: "hackernews", Name: "Hacker News", BaseURL: "https://news.ycombinator.com"}, NewHackerNewsFetcher, "hn", "hacker_news")
}
