package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppPort string

	DBDriver    string
	PostgresDSN string
	SQLitePath  string
	RedisAddr   string
	CacheTTL    time.Duration

	// 为空时不启动定时抓取
	CronSpec        string
	CronSources     []string
	CronMaxArticles int

	RequestTimeout       time.Duration
	UserAgent            string
	MaxArticlesPerScrape int
	ScrapeConcurrency    int
	ScrapeTimeout        time.Duration
	QueryMaxLimit        int

	FeedsFile string
}

func Load() *Config {
	// .env 不存在时直接使用环境变量
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warn: load .env: %v", err)
	}

	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "9000"),
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=newsradar password=newsradar dbname=newsradar port=5432 sslmode=disable TimeZone=UTC"),
		SQLitePath:  getEnv("SQLITE_PATH", "newsradar.db"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		CacheTTL:    getEnvDuration("CACHE_TTL", 5*time.Minute),

		CronSpec:        getEnv("CRON_SPEC", ""),
		CronSources:     getEnvList("CRON_SOURCES"),
		CronMaxArticles: getEnvInt("CRON_MAX_ARTICLES", 20),

		RequestTimeout:       getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		UserAgent:            getEnv("USER_AGENT", ""),
		MaxArticlesPerScrape: getEnvInt("MAX_ARTICLES_PER_SCRAPE", 50),
		ScrapeConcurrency:    getEnvInt("SCRAPE_CONCURRENCY", 4),
		ScrapeTimeout:        getEnvDuration("SCRAPE_TIMEOUT", 2*time.Minute),
		QueryMaxLimit:        getEnvInt("QUERY_MAX_LIMIT", 100),

		FeedsFile: getEnv("FEEDS_FILE", ""),
	}

	// 定时任务的单源上限不能超过单次抓取上限，否则每轮都会被拒绝
	if cfg.CronMaxArticles > cfg.MaxArticlesPerScrape {
		log.Printf("warn: CRON_MAX_ARTICLES=%d exceeds MAX_ARTICLES_PER_SCRAPE=%d, using %d",
			cfg.CronMaxArticles, cfg.MaxArticlesPerScrape, cfg.MaxArticlesPerScrape)
		cfg.CronMaxArticles = cfg.MaxArticlesPerScrape
	}

	log.Printf("config loaded: port=%s db=%s cron=%q redis=%q", cfg.AppPort, cfg.DBDriver, cfg.CronSpec, cfg.RedisAddr)
	return cfg
}

// DSN 按驱动返回连接串
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return c.PostgresDSN
}

// Feed FEEDS_FILE 中的一条 RSS/Atom 订阅
type Feed struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	FullText bool     `yaml:"full_text"`
	Aliases  []string `yaml:"aliases"`
}

type feedsFile struct {
	Feeds []Feed `yaml:"feeds"`
}

// LoadFeeds 读取订阅列表；path 为空时返回 nil
func LoadFeeds(path string) ([]Feed, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}
	var ff feedsFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse feeds file %s: %w", path, err)
	}
	for i, f := range ff.Feeds {
		if f.ID == "" || f.URL == "" {
			return nil, fmt.Errorf("feeds file %s: entry %d needs id and url", path, i)
		}
	}
	return ff.Feeds, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("warn: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

// getEnvDuration 支持 "30s" 这类写法，纯数字按秒处理
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("warn: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

// getEnvList 逗号分隔，忽略空项
func getEnvList(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
