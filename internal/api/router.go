package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/NewsRadar/internal/pipeline"
	"github.com/LJTian/NewsRadar/internal/storage"
	"github.com/gin-gonic/gin"
)

const defaultScrapeArticles = 20

// Core 路由依赖的核心操作，由 pipeline.Service 实现
type Core interface {
	ListSources() []string
	Scrape(ctx context.Context, req pipeline.Request) (pipeline.ScrapeReport, error)
	FindArticles(ctx context.Context, f storage.Filter) ([]storage.Article, error)
	GetArticle(ctx context.Context, id uint) (*storage.Article, error)
	DeleteArticle(ctx context.Context, id uint) error
	GetStats(ctx context.Context) (storage.Stats, error)
}

type Server struct {
	core Core
}

func NewServer(core Core) *Server {
	return &Server{core: core}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/", s.info)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/sources", s.listSources)
		v1.POST("/scrape", s.scrape)
		v1.GET("/articles", s.listArticles)
		v1.GET("/articles/:id", s.getArticle)
		v1.DELETE("/articles/:id", s.deleteArticle)
		v1.GET("/stats", s.stats)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) info(c *gin.Context) {
	ok(c, gin.H{
		"name":    "NewsRadar",
		"sources": s.core.ListSources(),
		"endpoints": []string{
			"GET /api/v1/sources",
			"POST /api/v1/scrape",
			"GET /api/v1/articles",
			"GET /api/v1/articles/:id",
			"DELETE /api/v1/articles/:id",
			"GET /api/v1/stats",
		},
	})
}

func (s *Server) listSources(c *gin.Context) {
	ok(c, s.core.ListSources())
}

type scrapeBody struct {
	Sources        []string `json:"sources"`
	MaxArticles    *int     `json:"maxArticles"`
	KeywordsFilter []string `json:"keywordsFilter"`
	DateFrom       string   `json:"dateFrom"`
	DateTo         string   `json:"dateTo"`
}

func (s *Server) scrape(c *gin.Context) {
	var body scrapeBody
	// 允许空 body，全部使用默认值
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
			return
		}
	}

	req := pipeline.Request{
		Sources:     body.Sources,
		MaxArticles: defaultScrapeArticles,
		Keywords:    body.KeywordsFilter,
	}
	if body.MaxArticles != nil {
		req.MaxArticles = *body.MaxArticles
	}
	var err error
	if req.DateFrom, err = parseDate(body.DateFrom, false); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", "invalid dateFrom")
		return
	}
	if req.DateTo, err = parseDate(body.DateTo, true); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", "invalid dateTo")
		return
	}

	report, err := s.core.Scrape(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, report)
}

func (s *Server) listArticles(c *gin.Context) {
	var f storage.Filter
	var err error

	if f.Skip, err = queryInt(c, "skip"); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", "invalid skip")
		return
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}
	if v := c.Query("minRelevance"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid_request", "invalid minRelevance")
			return
		}
		f.MinRelevance = &n
	}
	if f.DateFrom, err = parseDate(c.Query("dateFrom"), false); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", "invalid dateFrom")
		return
	}
	if f.DateTo, err = parseDate(c.Query("dateTo"), true); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", "invalid dateTo")
		return
	}
	f.Source = c.Query("source")
	f.Category = c.Query("category")
	f.Keyword = c.Query("keyword")

	items, err := s.core.FindArticles(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	if items == nil {
		items = []storage.Article{}
	}
	ok(c, items)
}

func (s *Server) getArticle(c *gin.Context) {
	id, good := articleID(c)
	if !good {
		return
	}
	a, err := s.core.GetArticle(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, a)
}

func (s *Server) deleteArticle(c *gin.Context) {
	id, good := articleID(c)
	if !good {
		return
	}
	if err := s.core.DeleteArticle(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	ok(c, gin.H{"id": id, "deleted": true})
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.core.GetStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, st)
}

func articleID(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || n == 0 {
		fail(c, http.StatusBadRequest, "invalid_request", "invalid article id")
		return 0, false
	}
	return uint(n), true
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// parseDate 支持 2006-01-02 与 RFC3339；endOfDay 为 true 时纯日期取当天最后一刻
func parseDate(v string, endOfDay bool) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fail(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, storage.ErrInvalidRequest), errors.Is(err, pipeline.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		log.Printf("api: %s %s error: %v", c.Request.Method, c.Request.URL.Path, err)
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": msg,
	})
}
