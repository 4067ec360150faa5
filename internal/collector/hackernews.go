package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	hnBaseURL          = "https://hacker-news.firebaseio.com/v0"
	hnMaxResponseBytes = 1 << 20 // 1MB
	// 每次最多扫描的故事 id 数，避免 maxArticles 很大时长时间扫描
	hnMaxScan = 200
)

// HackerNewsFetcher 通过官方 Firebase API 抓取 Hacker News 热门故事
type HackerNewsFetcher struct {
	// 为空时使用官方地址，测试中指向 httptest
	BaseURL string
	Options Options
}

func NewHackerNewsFetcher(opts Options) Fetcher {
	return &HackerNewsFetcher{Options: opts}
}

func (h *HackerNewsFetcher) Name() string {
	return "hackernews"
}

type hnItem struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Type        string `json:"type"`
}

func (h *HackerNewsFetcher) Fetch(ctx context.Context, maxArticles int) (*Batch, error) {
	opts := h.Options.withDefaults()
	base := h.BaseURL
	if base == "" {
		base = hnBaseURL
	}
	batch := &Batch{}

	var ids []int
	if err := h.getJSON(ctx, opts, base+"/topstories.json", &ids); err != nil {
		return batch, fmt.Errorf("hackernews: fetch top stories: %w", err)
	}
	if len(ids) > hnMaxScan {
		ids = ids[:hnMaxScan]
	}

	for rank, id := range ids {
		if len(batch.Items) >= maxArticles {
			break
		}
		if err := ctx.Err(); err != nil {
			batch.fail(fmt.Errorf("hackernews: %w", err))
			break
		}

		var it hnItem
		if err := h.getJSON(ctx, opts, fmt.Sprintf("%s/item/%d.json", base, id), &it); err != nil {
			log.Printf("hackernews: fetch item %d: %v", id, err)
			batch.fail(fmt.Errorf("hackernews: item %d: %w", id, err))
			continue
		}
		if it.Title == "" || it.Type != "story" {
			continue
		}

		itemURL := it.URL
		if itemURL == "" {
			itemURL = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", it.ID)
		}
		canonical, err := CanonicalURL(itemURL)
		if err != nil {
			batch.fail(fmt.Errorf("hackernews: item %d: %w", id, err))
			continue
		}
		published := time.Unix(it.Time, 0).UTC()

		batch.add(NewsItem{
			Title:       collapseSpace(it.Title),
			URL:         canonical,
			Source:      "hackernews",
			Body:        htmlText(it.Text),
			Summary:     fmt.Sprintf("%d points, %d comments, rank %d on Hacker News", it.Score, it.Descendants, rank+1),
			Author:      it.By,
			PublishedAt: &published,
			Tags:        []string{"hackernews"},
		})
	}

	if len(batch.Items) == 0 {
		log.Println("hackernews: no items fetched")
	}
	return batch, nil
}

func (h *HackerNewsFetcher) getJSON(ctx context.Context, opts Options, url string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", opts.UserAgent)

	resp, err := opts.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, hnMaxResponseBytes)).Decode(v)
}
