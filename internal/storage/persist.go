package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/LJTian/NewsRadar/internal/processor"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// RecordFailure 单条记录入库失败
type RecordFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// PersistResult 一批记录的入库结果
type PersistResult struct {
	Scraped  int             `json:"scraped"`
	Stored   int             `json:"stored"`
	Failures []RecordFailure `json:"failures,omitempty"`
}

var errEmptyURL = errors.New("empty url")

// Persist 按顺序写入一批记录，以 URL 作为幂等键。
// 插入依赖 url 唯一索引 + ON CONFLICT DO NOTHING，冲突视为“已存在”而非失败；
// 单条失败只记录，不回滚也不影响后续记录。
func (s *Store) Persist(ctx context.Context, items []processor.ProcessedNews) PersistResult {
	res := PersistResult{Scraped: len(items)}

	for _, it := range items {
		if it.URL == "" {
			res.Failures = append(res.Failures, RecordFailure{URL: it.URL, Error: errEmptyURL.Error()})
			continue
		}
		a := newArticle(it, s.clock.stamp())

		tx := s.DB.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
			Create(a)
		if tx.Error != nil {
			log.Printf("store: persist %s: %v", it.URL, tx.Error)
			res.Failures = append(res.Failures, RecordFailure{URL: it.URL, Error: tx.Error.Error()})
			continue
		}
		if tx.RowsAffected > 0 {
			res.Stored++
		}
	}

	if res.Stored > 0 {
		s.invalidate(ctx)
	}
	return res
}

func newArticle(it processor.ProcessedNews, scrapedAt time.Time) *Article {
	title := truncateRunesDB(toValidUTF8(it.Title), 500)
	if title == "" {
		title = "Untitled"
	}
	var published *time.Time
	if it.PublishedAt != nil {
		t := it.PublishedAt.UTC()
		published = &t
	}
	return &Article{
		Title:          title,
		URL:            it.URL,
		Source:         it.Source,
		Content:        toValidUTF8(it.Body),
		Summary:        toValidUTF8(it.Summary),
		Author:         truncateRunesDB(toValidUTF8(it.Author), 500),
		PublishedAt:    published,
		ScrapedAt:      scrapedAt,
		Keywords:       jsonSlice(it.Keywords),
		Categories:     jsonSlice(it.Categories),
		RelevanceScore: it.RelevanceScore,
		TimePeriod:     it.TimePeriod,
		ImageURL:       truncateRunesDB(it.ImageURL, 1000),
		Tags:           jsonSlice(it.Tags),
	}
}

// jsonSlice 空切片存为 []，避免写入 null
func jsonSlice(vals []string) datatypes.JSONSlice[string] {
	if vals == nil {
		vals = []string{}
	}
	return datatypes.NewJSONSlice(vals)
}
