package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LJTian/NewsRadar/internal/collector"
	"github.com/LJTian/NewsRadar/internal/processor"
)

const (
	DefaultConcurrency = 4
	MaxConcurrency     = 8
	DefaultTimeout     = 2 * time.Minute

	msgTimedOut = "timed out"
)

// Request 一次抓取的参数
type Request struct {
	// 为空时抓取全部已注册数据源
	Sources     []string   `json:"sources"`
	MaxArticles int        `json:"maxArticles"`
	Keywords    []string   `json:"keywordsFilter"`
	DateFrom    *time.Time `json:"dateFrom"`
	DateTo      *time.Time `json:"dateTo"`
}

// Result 分类并过滤后的记录，以及按数据源汇总的错误
type Result struct {
	// 按请求中数据源的顺序、各源内部按发现顺序排列
	Records []processor.ProcessedNews
	Errors  map[string][]string
	Sources []string
}

func (r *Result) addError(source, msg string) {
	r.Errors[source] = append(r.Errors[source], msg)
}

// Dispatcher 用有界 worker 池并发执行各数据源，并按提交顺序合并结果
type Dispatcher struct {
	registry    *collector.Registry
	processor   *processor.SimpleProcessor
	concurrency int
	timeout     time.Duration
}

// NewDispatcher concurrency 被限制在 [1, MaxConcurrency]；timeout<=0 时只受调用方 ctx 约束
func NewDispatcher(reg *collector.Registry, p *processor.SimpleProcessor, concurrency int, timeout time.Duration) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}
	if p == nil {
		p = processor.NewSimpleProcessor(nil)
	}
	return &Dispatcher{registry: reg, processor: p, concurrency: concurrency, timeout: timeout}
}

type task struct {
	idx     int
	name    string
	fetcher collector.Fetcher
}

// slot 保存单个数据源的结果；done 关闭后才可读取
type slot struct {
	done    chan struct{}
	records []processor.ProcessedNews
	errs    []string
}

// Scrape 运行请求中的各数据源。
// 未知数据源、数据源整体失败、单篇文档失败都记录在 Result.Errors 中，不会中断其它数据源；
// 超时后已完成的数据源结果保留，未完成的记为 timed out。
func (d *Dispatcher) Scrape(ctx context.Context, req Request) Result {
	sources := req.Sources
	if len(sources) == 0 {
		sources = d.registry.Available()
	}
	res := Result{
		Errors:  make(map[string][]string),
		Sources: sources,
	}

	slots := make([]*slot, len(sources))
	tasks := make([]task, 0, len(sources))
	resolved := make(map[string]bool)
	for i, name := range sources {
		id, ok := d.registry.Resolve(name)
		if !ok {
			res.addError(name, fmt.Sprintf("unknown source: %s", name))
			continue
		}
		// 同一数据源（含别名）只抓一次
		if resolved[id] {
			continue
		}
		resolved[id] = true

		f, err := d.registry.Get(id)
		if err != nil {
			res.addError(name, err.Error())
			continue
		}
		slots[i] = &slot{done: make(chan struct{})}
		tasks = append(tasks, task{idx: i, name: name, fetcher: f})
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	filter := processor.Filter{Keywords: req.Keywords, DateFrom: req.DateFrom, DateTo: req.DateTo}
	allDone := make(chan struct{})
	go func() {
		defer close(allDone)
		var wg sync.WaitGroup
		sem := make(chan struct{}, d.concurrency)
		for _, t := range tasks {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(t task) {
				defer wg.Done()
				defer func() { <-sem }()
				d.run(ctx, t, req.MaxArticles, filter, slots[t.idx])
			}(t)
		}
		wg.Wait()
	}()

	select {
	case <-allDone:
	case <-ctx.Done():
	}

	for i, name := range sources {
		s := slots[i]
		if s == nil {
			continue
		}
		select {
		case <-s.done:
			res.Records = append(res.Records, s.records...)
			for _, e := range s.errs {
				res.addError(name, e)
			}
		default:
			log.Printf("dispatcher: %s did not finish before deadline", name)
			res.addError(name, msgTimedOut)
		}
	}
	return res
}

func (d *Dispatcher) run(ctx context.Context, t task, maxArticles int, filter processor.Filter, s *slot) {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatcher: %s panic: %v", t.name, r)
			s.errs = append(s.errs, fmt.Sprintf("panic: %v", r))
		}
	}()

	start := time.Now()
	log.Printf("dispatcher: fetch from %s...", t.name)
	batch, err := t.fetcher.Fetch(ctx, maxArticles)
	if batch != nil {
		for _, e := range batch.Errors {
			s.errs = append(s.errs, e.Error())
		}
		s.records = d.processor.Process(batch.Items, filter)
	}
	if err != nil {
		log.Printf("dispatcher: fetch %s error: %v", t.name, err)
		s.errs = append(s.errs, err.Error())
	}
	fetched := 0
	if batch != nil {
		fetched = len(batch.Items)
	}
	log.Printf("dispatcher: %s done in %s, fetched=%d kept=%d errors=%d",
		t.name, time.Since(start).Round(time.Millisecond), fetched, len(s.records), len(s.errs))
}
