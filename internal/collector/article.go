package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const (
	articleMaxBodyBytes = 5 << 20 // 5MB，防止超大 HTML
	untitled            = "Untitled"
)

// fetchDocument 在单次超时内拉取一个页面
func fetchDocument(ctx context.Context, opts Options, pageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, articleMaxBodyBytes))
}

// fetchArticle 拉取并解析单篇文章
func fetchArticle(ctx context.Context, opts Options, source, pageURL string) (NewsItem, error) {
	body, err := fetchDocument(ctx, opts, pageURL)
	if err != nil {
		return NewsItem{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	it, err := parseArticle(body, pageURL)
	if err != nil {
		return NewsItem{}, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	it.Source = source
	return it, nil
}

// parseArticle 从 HTML 中提取标题、正文、摘要、作者、日期、配图与标签。
// 元数据优先取 meta 标签，正文交给 readability。
func parseArticle(html []byte, pageURL string) (NewsItem, error) {
	canonical, err := CanonicalURL(pageURL)
	if err != nil {
		return NewsItem{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return NewsItem{}, err
	}

	it := NewsItem{URL: canonical}

	it.Title = firstNonEmpty(
		metaContent(doc, "property", "og:title"),
		doc.Find("title").First().Text(),
		doc.Find("h1").First().Text(),
	)

	var excerpt, byline, image string
	if u, err := url.Parse(pageURL); err == nil {
		if art, err := readability.FromReader(bytes.NewReader(html), u); err == nil {
			it.Body = collapseSpace(art.TextContent)
			excerpt = art.Excerpt
			byline = art.Byline
			image = art.Image
			if it.Title == "" {
				it.Title = art.Title
			}
		}
	}
	if it.Body == "" {
		// readability 失败时退化为段落文本
		var parts []string
		doc.Find("article p, main p").Each(func(_ int, s *goquery.Selection) {
			if t := collapseSpace(s.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		it.Body = strings.Join(parts, "\n")
	}

	it.Title = collapseSpace(it.Title)
	if it.Title == "" {
		it.Title = untitled
	}

	it.Summary = firstNonEmpty(
		metaContent(doc, "name", "description"),
		metaContent(doc, "property", "og:description"),
		excerpt,
	)

	var authors []string
	doc.Find(`meta[name="author"]`).Each(func(_ int, s *goquery.Selection) {
		if v := collapseSpace(s.AttrOr("content", "")); v != "" {
			authors = append(authors, v)
		}
	})
	if len(authors) > 0 {
		it.Author = strings.Join(authors, ", ")
	} else {
		it.Author = collapseSpace(byline)
	}

	it.PublishedAt = parseTime(firstNonEmpty(
		metaContent(doc, "property", "article:published_time"),
		metaContent(doc, "name", "date"),
		metaContent(doc, "itemprop", "datePublished"),
		doc.Find("time[datetime]").First().AttrOr("datetime", ""),
	))

	it.ImageURL = firstNonEmpty(metaContent(doc, "property", "og:image"), image)

	seen := make(map[string]struct{})
	addTag := func(tag string) {
		tag = collapseSpace(tag)
		if tag == "" {
			return
		}
		if _, ok := seen[strings.ToLower(tag)]; ok {
			return
		}
		seen[strings.ToLower(tag)] = struct{}{}
		it.Tags = append(it.Tags, tag)
	}
	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, s *goquery.Selection) {
		addTag(s.AttrOr("content", ""))
	})
	for _, kw := range strings.Split(metaContent(doc, "name", "keywords"), ",") {
		addTag(kw)
	}

	return it, nil
}

func metaContent(doc *goquery.Document, attr, name string) string {
	return strings.TrimSpace(doc.Find(fmt.Sprintf(`meta[%s="%s"]`, attr, name)).First().AttrOr("content", ""))
}

// htmlText 将一段 HTML 片段转为纯文本
func htmlText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return collapseSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpace(fragment)
	}
	return collapseSpace(doc.Text())
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"January 2, 2006",
	"Jan 2, 2006",
}

// parseTime 尽力解析日期，失败返回 nil
func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
