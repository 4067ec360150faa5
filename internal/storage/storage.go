package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound       = errors.New("article not found")
	ErrInvalidRequest = errors.New("invalid request")
)

// Source 描述一个数据源，例如 nyt / reuters / openai
type Source struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"`
	Name    string `gorm:"size:128" json:"name"`
	BaseURL string `gorm:"size:256" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Article 已入库的文章，创建后不再修改，只能整条删除
type Article struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Title  string `gorm:"size:500" json:"title"`
	URL    string `gorm:"size:1000;uniqueIndex" json:"url"` // 规范化 URL，唯一去重键
	Source string `gorm:"size:64;index" json:"source"`

	Content string `gorm:"type:text" json:"content"`
	Summary string `gorm:"type:text" json:"summary"`
	Author  string `gorm:"size:500" json:"author"`

	PublishedAt *time.Time `gorm:"index" json:"publishedAt"`
	ScrapedAt   time.Time  `gorm:"index" json:"scrapedAt"`

	Keywords       datatypes.JSONSlice[string] `json:"keywords"`
	Categories     datatypes.JSONSlice[string] `json:"categories"`
	RelevanceScore int                         `gorm:"index" json:"relevanceScore"`
	TimePeriod     string                      `gorm:"size:20;index" json:"timePeriod"`
	ImageURL       string                      `gorm:"size:1000" json:"imageUrl"`
	Tags           datatypes.JSONSlice[string] `json:"tags"`
}

// Options 存储层配置
type Options struct {
	Driver    string // postgres / sqlite
	DSN       string
	RedisAddr string // 为空时不启用缓存
	CacheTTL  time.Duration
	// 查询单页上限
	MaxLimit int
}

const (
	defaultCacheTTL = 5 * time.Minute
	defaultMaxLimit = 100
	defaultLimit    = 50
)

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client

	cacheTTL time.Duration
	maxLimit int
	clock    *stampClock
}

// NewStore 按配置打开数据库并迁移表结构
func NewStore(opts Options) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(opts.Driver) {
	case "", "postgres":
		dialector = postgres.Open(opts.DSN)
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if opts.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: opts.RedisAddr,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("warn: redis ping failed: %v", err)
		}
	}

	return New(db, rdb, opts)
}

// New 基于已有连接构造 Store，测试中传入内存 SQLite
func New(db *gorm.DB, rdb *redis.Client, opts Options) (*Store, error) {
	if err := db.AutoMigrate(&Source{}, &Article{}); err != nil {
		return nil, err
	}
	s := &Store{
		DB:       db,
		Redis:    rdb,
		cacheTTL: opts.CacheTTL,
		maxLimit: opts.MaxLimit,
		clock:    processClock,
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultCacheTTL
	}
	if s.maxLimit <= 0 {
		s.maxLimit = defaultMaxLimit
	}
	return s, nil
}

// Close 关闭数据库与 redis 连接
func (s *Store) Close() error {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EnsureSource 确保某个数据源存在
func (s *Store) EnsureSource(ctx context.Context, code, name, baseURL string) (*Source, error) {
	src := &Source{}
	if err := s.DB.WithContext(ctx).Where("code = ?", code).First(src).Error; err == nil {
		return src, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	src = &Source{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  "active",
	}
	if err := s.DB.WithContext(ctx).Where("code = ?", code).FirstOrCreate(src).Error; err != nil {
		return nil, err
	}
	return src, nil
}

// stampClock 保证同一进程内的入库时间单调不减
var processClock = &stampClock{now: time.Now}

type stampClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func (c *stampClock) stamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度（例如 varchar(500)）
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
