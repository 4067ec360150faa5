package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/LJTian/NewsRadar/internal/config"
	"github.com/LJTian/NewsRadar/internal/pipeline"
	"github.com/LJTian/NewsRadar/internal/storage"
)

// 一个仅执行一次抓取任务的命令行入口：适合手动触发采集
func main() {
	sources := flag.String("sources", "", "comma separated source ids, empty for all")
	maxArticles := flag.Int("max", 10, "max articles per source")
	keywords := flag.String("keywords", "", "comma separated keyword filter")
	flag.Parse()

	cfg := config.Load()

	store, err := storage.NewStore(storage.Options{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DSN(),
		MaxLimit: cfg.QueryMaxLimit,
	})
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}
	defer store.Close()

	reg, err := cfg.BuildRegistry()
	if err != nil {
		log.Fatalf("init registry failed: %v", err)
	}

	// 与 cmd/api 保持一致
	for _, src := range reg.Sources() {
		if _, err := store.EnsureSource(context.Background(), src.ID, src.Name, src.BaseURL); err != nil {
			log.Fatalf("ensure source %s failed: %v", src.ID, err)
		}
	}

	d := pipeline.NewDispatcher(reg, nil, cfg.ScrapeConcurrency, cfg.ScrapeTimeout)
	svc := pipeline.NewService(reg, d, store, cfg.MaxArticlesPerScrape)

	report, err := svc.Scrape(context.Background(), pipeline.Request{
		Sources:     splitList(*sources),
		MaxArticles: *maxArticles,
		Keywords:    splitList(*keywords),
	})
	if err != nil {
		log.Fatalf("scrape failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatalf("encode report: %v", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
