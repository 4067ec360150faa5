package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/LJTian/NewsRadar/internal/pipeline"
	"github.com/robfig/cron/v3"
)

// DefaultStartupDelay 延迟执行首轮抓取，避免与服务启动争抢资源
const DefaultStartupDelay = 15 * time.Second

// Scraper 由 pipeline.Service 实现
type Scraper interface {
	Scrape(ctx context.Context, req pipeline.Request) (pipeline.ScrapeReport, error)
}

type Scheduler struct {
	cron    *cron.Cron
	job     cron.Job
	scraper Scraper
	req     pipeline.Request

	StartupDelay time.Duration

	mu    sync.Mutex
	timer *time.Timer
	// 首轮抓取（定时器触发）是否仍在进行
	wg sync.WaitGroup
}

// New 按 spec 周期执行 req；首轮与定时任务共用同一个 job，上一轮未结束时跳过
func New(spec string, scraper Scraper, req pipeline.Request) (*Scheduler, error) {
	s := &Scheduler{
		cron:         cron.New(),
		scraper:      scraper,
		req:          req,
		StartupDelay: DefaultStartupDelay,
	}
	s.job = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(cron.FuncJob(s.runOnce))

	_, err := s.cron.AddJob(spec, s.job)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wg.Add(1)
	s.timer = time.AfterFunc(s.StartupDelay, func() {
		defer s.wg.Done()
		s.job.Run()
	})
}

// Stop 停止调度并等待正在执行的任务（包括首轮）结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.timer != nil && s.timer.Stop() {
		// 定时器尚未触发，首轮不会再执行
		s.wg.Done()
	}
	s.timer = nil
	s.mu.Unlock()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce() (pipeline.ScrapeReport, error) {
	log.Println("start scrape job...")
	report, err := s.scraper.Scrape(context.Background(), s.req)
	if err != nil {
		log.Printf("scrape job error: %v", err)
		return report, err
	}
	log.Printf("scrape job done: run=%s status=%s scraped=%d stored=%d",
		report.RunID, report.Status, report.ArticlesScraped, report.ArticlesStored)
	return report, nil
}

func (s *Scheduler) runOnce() {
	_, _ = s.RunOnce()
}
