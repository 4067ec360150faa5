package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/NewsRadar/internal/classifier"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter 文章查询条件，所有条件可选且取交集
type Filter struct {
	Source       string     `json:"source,omitempty"`
	Category     string     `json:"category,omitempty"`
	Keyword      string     `json:"keyword,omitempty"`
	MinRelevance *int       `json:"minRelevance,omitempty"`
	DateFrom     *time.Time `json:"dateFrom,omitempty"`
	DateTo       *time.Time `json:"dateTo,omitempty"`
	Skip         int        `json:"skip"`
	// 0 表示默认 50；超过上限时截断
	Limit int `json:"limit"`
}

// Validate 在查询前拒绝非法参数
func (f Filter) Validate() error {
	if f.Skip < 0 {
		return fmt.Errorf("%w: skip must be >= 0", ErrInvalidRequest)
	}
	if f.Limit < 0 {
		return fmt.Errorf("%w: limit must be >= 0", ErrInvalidRequest)
	}
	if f.MinRelevance != nil && *f.MinRelevance < 0 {
		return fmt.Errorf("%w: minRelevance must be >= 0", ErrInvalidRequest)
	}
	if f.Category != "" {
		if _, ok := classifier.ParseCategory(f.Category); !ok {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidRequest, f.Category)
		}
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return fmt.Errorf("%w: dateFrom is after dateTo", ErrInvalidRequest)
	}
	return nil
}

func (f Filter) normalize(maxLimit int) Filter {
	if f.Limit == 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	f.Source = strings.TrimSpace(f.Source)
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	f.Keyword = strings.ToLower(strings.TrimSpace(f.Keyword))
	return f
}

// Find 按条件分页查询，发布日期倒序（无日期的排在最后），同日期按 id 倒序
func (s *Store) Find(ctx context.Context, f Filter) ([]Article, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f = f.normalize(s.maxLimit)

	key := s.cacheKey(ctx, "articles:list", f)
	var list []Article
	if s.loadCache(ctx, key, &list) {
		return list, nil
	}

	db := s.DB.WithContext(ctx).Model(&Article{})
	if f.Source != "" {
		db = db.Where("LOWER(source) = ?", strings.ToLower(f.Source))
	}
	if f.Category != "" {
		db = db.Where(jsonContains(s.DB, "categories", f.Category))
	}
	if f.Keyword != "" {
		db = db.Where(jsonContains(s.DB, "keywords", f.Keyword))
	}
	if f.MinRelevance != nil {
		db = db.Where("relevance_score >= ?", *f.MinRelevance)
	}
	if f.DateFrom != nil {
		db = db.Where("published_at >= ?", f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		db = db.Where("published_at <= ?", f.DateTo.UTC())
	}

	list = make([]Article, 0, f.Limit)
	err := db.Order("published_at IS NULL").
		Order("published_at DESC").
		Order("id DESC").
		Offset(f.Skip).
		Limit(f.Limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}

	s.storeCache(ctx, key, list)
	return list, nil
}

// Get 按 id 查询，不存在时返回 ErrNotFound
func (s *Store) Get(ctx context.Context, id uint) (*Article, error) {
	var a Article
	if err := s.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Delete 按 id 删除，不存在（包括重复删除）时返回 ErrNotFound
func (s *Store) Delete(ctx context.Context, id uint) error {
	tx := s.DB.WithContext(ctx).Delete(&Article{}, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	s.invalidate(ctx)
	return nil
}

// Stats 全量统计，不分页
type Stats struct {
	TotalArticles     int64            `json:"totalArticles"`
	BySource          map[string]int64 `json:"bySource"`
	ByCategory        map[string]int64 `json:"byCategory"`
	EarliestPublished *time.Time       `json:"earliestPublished"`
	LatestPublished   *time.Time       `json:"latestPublished"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	key := s.cacheKey(ctx, "articles:stats", nil)
	var st Stats
	if s.loadCache(ctx, key, &st) {
		return st, nil
	}

	st = Stats{
		BySource:   make(map[string]int64),
		ByCategory: make(map[string]int64, len(classifier.Categories)),
	}
	db := s.DB.WithContext(ctx)

	if err := db.Model(&Article{}).Count(&st.TotalArticles).Error; err != nil {
		return Stats{}, err
	}

	var rows []struct {
		Source string
		Count  int64
	}
	if err := db.Model(&Article{}).Select("source, COUNT(*) AS count").Group("source").Scan(&rows).Error; err != nil {
		return Stats{}, err
	}
	for _, r := range rows {
		st.BySource[r.Source] = r.Count
	}

	for _, c := range classifier.Categories {
		var n int64
		if err := db.Model(&Article{}).Where(jsonContains(s.DB, "categories", string(c))).Count(&n).Error; err != nil {
			return Stats{}, err
		}
		st.ByCategory[string(c)] = n
	}

	// 取整行再读 published_at，避免聚合函数在 SQLite 下丢失时间类型
	var earliest, latest []Article
	if err := db.Select("id", "published_at").Where("published_at IS NOT NULL").Order("published_at ASC").Limit(1).Find(&earliest).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Select("id", "published_at").Where("published_at IS NOT NULL").Order("published_at DESC").Limit(1).Find(&latest).Error; err != nil {
		return Stats{}, err
	}
	if len(earliest) > 0 {
		st.EarliestPublished = earliest[0].PublishedAt
	}
	if len(latest) > 0 {
		st.LatestPublished = latest[0].PublishedAt
	}

	s.storeCache(ctx, key, st)
	return st, nil
}

// jsonContains JSON 数组列包含某个值；datatypes.JSONArrayQuery 只支持 mysql / sqlite，PostgreSQL 用 jsonb @>
func jsonContains(db *gorm.DB, column, value string) clause.Expression {
	if db.Dialector.Name() == "postgres" {
		bs, _ := json.Marshal([]string{value})
		return gorm.Expr(column+" @> ?::jsonb", string(bs))
	}
	return datatypes.JSONArrayQuery(column).Contains(value)
}
