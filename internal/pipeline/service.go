package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/LJTian/NewsRadar/internal/collector"
	"github.com/LJTian/NewsRadar/internal/processor"
	"github.com/LJTian/NewsRadar/internal/storage"
	"github.com/google/uuid"
)

var ErrInvalidRequest = errors.New("invalid request")

const DefaultMaxArticles = 50

// Repository 核心流程依赖的持久化能力
type Repository interface {
	Persist(ctx context.Context, items []processor.ProcessedNews) storage.PersistResult
	Find(ctx context.Context, f storage.Filter) ([]storage.Article, error)
	Get(ctx context.Context, id uint) (*storage.Article, error)
	Delete(ctx context.Context, id uint) error
	Stats(ctx context.Context) (storage.Stats, error)
}

// ScrapeReport 一次抓取的汇总，数据源与单条记录的失败都作为数据返回
type ScrapeReport struct {
	RunID           string                  `json:"runId"`
	Status          string                  `json:"status"` // success / partial
	ArticlesScraped int                     `json:"articlesScraped"`
	ArticlesStored  int                     `json:"articlesStored"`
	Sources         []string                `json:"sources"`
	Errors          map[string][]string     `json:"errors,omitempty"`
	PersistFailures []storage.RecordFailure `json:"persistFailures,omitempty"`
	Message         string                  `json:"message"`
}

// Service 对外暴露的核心操作
type Service struct {
	registry    *collector.Registry
	dispatcher  *Dispatcher
	repo        Repository
	maxArticles int
}

// NewService maxArticles 为单个数据源单次抓取的上限
func NewService(reg *collector.Registry, d *Dispatcher, repo Repository, maxArticles int) *Service {
	if maxArticles <= 0 {
		maxArticles = DefaultMaxArticles
	}
	return &Service{registry: reg, dispatcher: d, repo: repo, maxArticles: maxArticles}
}

// ListSources 已注册的数据源 id，不访问网络
func (s *Service) ListSources() []string {
	return s.registry.Available()
}

// Scrape 抓取、分类、过滤、去重入库。只有请求参数非法时返回 error。
func (s *Service) Scrape(ctx context.Context, req Request) (ScrapeReport, error) {
	if req.MaxArticles < 1 || req.MaxArticles > s.maxArticles {
		return ScrapeReport{}, fmt.Errorf("%w: maxArticles must be between 1 and %d", ErrInvalidRequest, s.maxArticles)
	}
	if req.DateFrom != nil && req.DateTo != nil && req.DateFrom.After(*req.DateTo) {
		return ScrapeReport{}, fmt.Errorf("%w: dateFrom is after dateTo", ErrInvalidRequest)
	}

	runID := uuid.NewString()
	log.Printf("scrape %s: start sources=%v max=%d", runID, req.Sources, req.MaxArticles)

	res := s.dispatcher.Scrape(ctx, req)
	// 抓取阶段的超时不应影响入库
	persisted := s.repo.Persist(context.WithoutCancel(ctx), res.Records)

	report := ScrapeReport{
		RunID:           runID,
		Status:          "success",
		ArticlesScraped: persisted.Scraped,
		ArticlesStored:  persisted.Stored,
		Sources:         res.Sources,
		Errors:          res.Errors,
		PersistFailures: persisted.Failures,
	}
	if len(res.Errors) > 0 || len(persisted.Failures) > 0 {
		report.Status = "partial"
	}
	report.Message = fmt.Sprintf("Scraped %d articles, stored %d new articles", persisted.Scraped, persisted.Stored)
	if n := len(res.Errors); n > 0 {
		report.Message += fmt.Sprintf(", %d source(s) reported errors", n)
	}

	log.Printf("scrape %s: %s (status=%s)", runID, report.Message, report.Status)
	return report, nil
}

func (s *Service) FindArticles(ctx context.Context, f storage.Filter) ([]storage.Article, error) {
	return s.repo.Find(ctx, f)
}

func (s *Service) GetArticle(ctx context.Context, id uint) (*storage.Article, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) DeleteArticle(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) GetStats(ctx context.Context) (storage.Stats, error) {
	return s.repo.Stats(ctx)
}
