package main

import (
	"context"
	"log"

	"github.com/LJTian/NewsRadar/internal/api"
	"github.com/LJTian/NewsRadar/internal/config"
	"github.com/LJTian/NewsRadar/internal/pipeline"
	"github.com/LJTian/NewsRadar/internal/scheduler"
	"github.com/LJTian/NewsRadar/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	store, err := storage.NewStore(storage.Options{
		Driver:    cfg.DBDriver,
		DSN:       cfg.DSN(),
		RedisAddr: cfg.RedisAddr,
		CacheTTL:  cfg.CacheTTL,
		MaxLimit:  cfg.QueryMaxLimit,
	})
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}
	defer store.Close()

	reg, err := cfg.BuildRegistry()
	if err != nil {
		log.Fatalf("init registry failed: %v", err)
	}

	// 确保各个数据源存在
	for _, src := range reg.Sources() {
		if _, err := store.EnsureSource(context.Background(), src.ID, src.Name, src.BaseURL); err != nil {
			log.Fatalf("ensure source %s failed: %v", src.ID, err)
		}
	}

	d := pipeline.NewDispatcher(reg, nil, cfg.ScrapeConcurrency, cfg.ScrapeTimeout)
	svc := pipeline.NewService(reg, d, store, cfg.MaxArticlesPerScrape)

	if cfg.CronSpec != "" {
		s, err := scheduler.New(cfg.CronSpec, svc, pipeline.Request{
			Sources:     cfg.CronSources,
			MaxArticles: cfg.CronMaxArticles,
		})
		if err != nil {
			log.Fatalf("init scheduler failed: %v", err)
		}
		s.Start()
		defer s.Stop()
	}

	r := gin.Default()
	apiServer := api.NewServer(svc)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
