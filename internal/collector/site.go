package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/gocolly/colly/v2"
)

// SiteFetcher 通用的“栏目页 -> 文章链接 -> 文章页”抓取器。
// 各站点只需配置栏目、链接选择器与链接过滤规则。
type SiteFetcher struct {
	ID       string
	BaseURL  string
	Sections []string
	// 栏目页上收集链接的选择器，默认 a[href]
	LinkSelector string
	// 链接过滤，返回 false 的链接被丢弃
	Match func(link string) bool
	// 文章页缺少作者时使用
	DefaultAuthor string
	// 追加到每条记录的标签
	ExtraTags []string

	Options Options
}

func (s *SiteFetcher) Name() string {
	return s.ID
}

func (s *SiteFetcher) Fetch(ctx context.Context, maxArticles int) (*Batch, error) {
	opts := s.Options.withDefaults()
	batch := &Batch{}

	links, err := s.discover(ctx, opts, batch)
	if err != nil {
		return batch, err
	}
	log.Printf("%s: discovered %d links", s.ID, len(links))

	for _, link := range links {
		if len(batch.Items) >= maxArticles {
			break
		}
		if err := ctx.Err(); err != nil {
			batch.fail(fmt.Errorf("%s: stopped before %s: %w", s.ID, link, err))
			break
		}
		it, err := fetchArticle(ctx, opts, s.ID, link)
		if err != nil {
			log.Printf("%s: skip document: %v", s.ID, err)
			batch.fail(err)
			continue
		}
		if it.Author == "" {
			it.Author = s.DefaultAuthor
		}
		it.Tags = mergeTags(it.Tags, s.ExtraTags)
		batch.add(it)
	}
	return batch, nil
}

// discover 访问各栏目页并收集去重后的文章链接。
// 单个栏目失败记为文档错误；全部栏目失败才视为数据源不可用。
func (s *SiteFetcher) discover(ctx context.Context, opts Options, batch *Batch) ([]string, error) {
	base, err := url.Parse(s.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%s: invalid base url %q", s.ID, s.BaseURL)
	}

	selector := s.LinkSelector
	if selector == "" {
		selector = "a[href]"
	}

	c := colly.NewCollector(
		colly.AllowedDomains(base.Hostname()),
		colly.UserAgent(opts.UserAgent),
	)
	c.SetRequestTimeout(opts.Timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	var links []string
	seen := make(map[string]struct{})
	c.OnHTML(selector, func(e *colly.HTMLElement) {
		abs := resolveURL(e.Request.URL, e.Attr("href"))
		if abs == "" {
			return
		}
		link, err := CanonicalURL(abs)
		if err != nil {
			return
		}
		if u, err := url.Parse(link); err != nil || !sameSite(u.Hostname(), base.Hostname()) {
			return
		}
		if s.Match != nil && !s.Match(link) {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	sections := s.Sections
	if len(sections) == 0 {
		sections = []string{""}
	}

	var failed int
	var lastErr error
	for _, section := range sections {
		pageURL := strings.TrimRight(s.BaseURL, "/") + section
		if section == "" {
			pageURL = s.BaseURL
		}
		if err := ctx.Err(); err != nil {
			return links, fmt.Errorf("%s: %w", s.ID, err)
		}
		if err := c.Visit(pageURL); err != nil {
			if errors.Is(err, colly.ErrAlreadyVisited) {
				continue
			}
			failed++
			lastErr = fmt.Errorf("%s: listing %s: %w", s.ID, pageURL, err)
			log.Printf("%v", lastErr)
			batch.fail(lastErr)
		}
	}
	if failed == len(sections) {
		// 已记录的栏目错误与返回的数据源错误重复，去掉
		batch.Errors = batch.Errors[:len(batch.Errors)-failed]
		return nil, fmt.Errorf("%s: all %d listing pages failed, last: %w", s.ID, failed, lastErr)
	}
	return links, nil
}

func sameSite(host, base string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	base = strings.TrimPrefix(strings.ToLower(base), "www.")
	return host == base || strings.HasSuffix(host, "."+base)
}

func mergeTags(tags, extra []string) []string {
	for _, e := range extra {
		dup := false
		for _, t := range tags {
			if strings.EqualFold(t, e) {
				dup = true
				break
			}
		}
		if !dup {
			tags = append(tags, e)
		}
	}
	return tags
}

// containsAny 返回一个判断链接是否包含任一片段的过滤器
func containsAny(fragments ...string) func(string) bool {
	return func(link string) bool {
		for _, f := range fragments {
			if strings.Contains(link, f) {
				return true
			}
		}
		return false
	}
}
