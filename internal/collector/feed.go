package collector

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mmcdole/gofeed"
)

// FeedSpec 通过配置文件声明的 RSS/Atom 数据源
type FeedSpec struct {
	ID      string
	Name    string
	URL     string
	Aliases []string
	// 为 true 时逐条抓取原文，否则直接使用 feed 中的内容
	FullText bool
}

// FeedFetcher 基于 gofeed 的 RSS/Atom 抓取器
type FeedFetcher struct {
	Spec    FeedSpec
	Options Options
}

func (f *FeedFetcher) Name() string {
	return f.Spec.ID
}

func (f *FeedFetcher) Fetch(ctx context.Context, maxArticles int) (*Batch, error) {
	opts := f.Options.withDefaults()
	batch := &Batch{}

	fctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	fp := gofeed.NewParser()
	fp.UserAgent = opts.UserAgent
	fp.Client = opts.Client
	feed, err := fp.ParseURLWithContext(f.Spec.URL, fctx)
	if err != nil {
		return batch, fmt.Errorf("%s: parse feed %s: %w", f.Spec.ID, f.Spec.URL, err)
	}

	for _, item := range feed.Items {
		if len(batch.Items) >= maxArticles {
			break
		}
		if err := ctx.Err(); err != nil {
			batch.fail(fmt.Errorf("%s: %w", f.Spec.ID, err))
			break
		}
		it, err := f.convert(ctx, opts, item)
		if err != nil {
			log.Printf("%s: skip feed item: %v", f.Spec.ID, err)
			batch.fail(err)
			continue
		}
		batch.add(it)
	}
	return batch, nil
}

// convert 将 feed 条目转为 NewsItem；FullText 时以原文解析结果为主，feed 字段兜底
func (f *FeedFetcher) convert(ctx context.Context, opts Options, item *gofeed.Item) (NewsItem, error) {
	link := strings.TrimSpace(item.Link)
	if link == "" && strings.HasPrefix(item.GUID, "http") {
		link = item.GUID
	}
	canonical, err := CanonicalURL(link)
	if err != nil {
		return NewsItem{}, fmt.Errorf("item %q: %w", item.Title, err)
	}

	it := NewsItem{
		Title:   collapseSpace(item.Title),
		URL:     canonical,
		Source:  f.Spec.ID,
		Summary: htmlText(item.Description),
		Body:    htmlText(item.Content),
		Tags:    mergeTags(nil, item.Categories),
	}
	if it.Body == "" {
		it.Body = it.Summary
	}
	var authors []string
	for _, p := range item.Authors {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			authors = append(authors, strings.TrimSpace(p.Name))
		}
	}
	it.Author = strings.Join(authors, ", ")
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		it.PublishedAt = &t
	} else if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		it.PublishedAt = &t
	}
	if item.Image != nil {
		it.ImageURL = item.Image.URL
	}

	if f.Spec.FullText {
		full, err := fetchArticle(ctx, opts, f.Spec.ID, link)
		if err != nil {
			return NewsItem{}, err
		}
		full.URL = canonical
		full.Title = firstNonEmpty(it.Title, full.Title)
		full.Summary = firstNonEmpty(full.Summary, it.Summary)
		full.Author = firstNonEmpty(full.Author, it.Author)
		full.ImageURL = firstNonEmpty(full.ImageURL, it.ImageURL)
		if full.PublishedAt == nil {
			full.PublishedAt = it.PublishedAt
		}
		full.Tags = mergeTags(full.Tags, it.Tags)
		it = full
	}

	if it.Title == "" {
		it.Title = untitled
	}
	return it, nil
}

// RegisterFeeds 注册配置文件中的 feed 数据源
func RegisterFeeds(r *Registry, specs []FeedSpec) {
	for _, spec := range specs {
		spec := spec
		spec.ID = NormalizeKey(spec.ID)
		name := spec.Name
		if name == "" {
			name = spec.ID
		}
		r.Register(SourceInfo{ID: spec.ID, Name: name, BaseURL: spec.URL}, func(opts Options) Fetcher {
			return &FeedFetcher{Spec: spec, Options: opts}
		}, spec.Aliases...)
	}
}
