package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/NewsRadar/internal/collector"
	"github.com/LJTian/NewsRadar/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeFetcher struct {
	name    string
	items   []collector.NewsItem
	docErrs []error
	err     error
	delay   time.Duration
	// 非 nil 时阻塞直到关闭，不理会 ctx
	block <-chan struct{}

	running    *int32
	maxRunning *int32
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) Fetch(ctx context.Context, maxArticles int) (*collector.Batch, error) {
	if f.running != nil {
		n := atomic.AddInt32(f.running, 1)
		defer atomic.AddInt32(f.running, -1)
		for {
			m := atomic.LoadInt32(f.maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(f.maxRunning, m, n) {
				break
			}
		}
	}
	if f.block != nil {
		<-f.block
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	items := f.items
	if len(items) > maxArticles {
		items = items[:maxArticles]
	}
	return &collector.Batch{Items: items, Errors: f.docErrs}, nil
}

func item(source, path, title string, published *time.Time) collector.NewsItem {
	return collector.NewsItem{
		Title:       title,
		URL:         "https://example.com/" + source + "/" + path,
		Source:      source,
		PublishedAt: published,
	}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func registryWith(fetchers ...*fakeFetcher) *collector.Registry {
	reg := collector.NewRegistry(collector.Options{})
	for _, f := range fetchers {
		f := f
		reg.Register(collector.SourceInfo{ID: f.name}, func(collector.Options) collector.Fetcher { return f })
	}
	return reg
}

func TestScrapeKeepsSubmissionOrder(t *testing.T) {
	a := &fakeFetcher{name: "alpha", delay: 50 * time.Millisecond, items: []collector.NewsItem{
		item("alpha", "1", "Solar one", nil), item("alpha", "2", "Solar two", nil),
	}}
	b := &fakeFetcher{name: "beta", items: []collector.NewsItem{
		item("beta", "1", "Bitcoin one", nil), item("beta", "2", "Bitcoin two", nil),
	}}
	c := &fakeFetcher{name: "gamma", delay: 10 * time.Millisecond, items: []collector.NewsItem{
		item("gamma", "1", "GPU one", nil),
	}}
	d := NewDispatcher(registryWith(a, b, c), nil, 3, time.Second)

	res := d.Scrape(context.Background(), Request{Sources: []string{"alpha", "beta", "gamma"}, MaxArticles: 10})
	require.Empty(t, res.Errors)

	var got []string
	for _, r := range res.Records {
		got = append(got, r.URL)
	}
	assert.Equal(t, []string{
		"https://example.com/alpha/1",
		"https://example.com/alpha/2",
		"https://example.com/beta/1",
		"https://example.com/beta/2",
		"https://example.com/gamma/1",
	}, got)
	assert.Equal(t, []string{"energy"}, res.Records[0].Categories)
}

func TestScrapeIsolatesFailingSource(t *testing.T) {
	a := &fakeFetcher{name: "a", err: errors.New("connection refused")}
	b := &fakeFetcher{name: "b", items: []collector.NewsItem{item("b", "1", "Inflation", nil)},
		docErrs: []error{errors.New("fetch https://example.com/b/2: status 500")}}
	d := NewDispatcher(registryWith(a, b), nil, 2, time.Second)

	res := d.Scrape(context.Background(), Request{Sources: []string{"a", "b", "missing"}, MaxArticles: 5})

	require.Len(t, res.Records, 1)
	assert.Equal(t, "b", res.Records[0].Source)
	assert.Equal(t, []string{"connection refused"}, res.Errors["a"])
	assert.Len(t, res.Errors["b"], 1)
	assert.Equal(t, []string{"unknown source: missing"}, res.Errors["missing"])
}

func TestScrapeDeadlineReportsUnfinishedSources(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	slow := &fakeFetcher{name: "slow", block: release, items: []collector.NewsItem{item("slow", "1", "x", nil)}}
	fast := &fakeFetcher{name: "fast", items: []collector.NewsItem{item("fast", "1", "Nuclear", nil)}}
	d := NewDispatcher(registryWith(slow, fast), nil, 2, 100*time.Millisecond)

	start := time.Now()
	res := d.Scrape(context.Background(), Request{Sources: []string{"slow", "fast"}, MaxArticles: 5})
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "fast", res.Records[0].Source)
	assert.Equal(t, []string{msgTimedOut}, res.Errors["slow"])
	assert.NotContains(t, res.Errors, "fast")
}

func TestScrapeRespectsConcurrencyLimit(t *testing.T) {
	var running, maxRunning int32
	var fetchers []*fakeFetcher
	var names []string
	for i := 0; i < 6; i++ {
		f := &fakeFetcher{
			name:       fmt.Sprintf("s%d", i),
			delay:      30 * time.Millisecond,
			running:    &running,
			maxRunning: &maxRunning,
		}
		fetchers = append(fetchers, f)
		names = append(names, f.name)
	}
	d := NewDispatcher(registryWith(fetchers...), nil, 2, 5*time.Second)

	res := d.Scrape(context.Background(), Request{Sources: names, MaxArticles: 1})
	assert.Empty(t, res.Errors)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxRunning), int32(2))
}

func TestScrapeFilters(t *testing.T) {
	f := &fakeFetcher{name: "mixed", items: []collector.NewsItem{
		item("mixed", "1", "Bitcoin surges", date(2024, 7, 16)),
		item("mixed", "2", "Solar farm opens", date(2024, 7, 16)),
		item("mixed", "3", "Market update", nil),
	}}
	d := NewDispatcher(registryWith(f), nil, 1, time.Second)

	res := d.Scrape(context.Background(), Request{MaxArticles: 10, Keywords: []string{"bitcoin"}})
	require.Len(t, res.Records, 1)
	assert.Equal(t, "https://example.com/mixed/1", res.Records[0].URL)

	res = d.Scrape(context.Background(), Request{MaxArticles: 10, DateFrom: date(2024, 7, 15), DateTo: date(2024, 7, 20)})
	assert.Len(t, res.Records, 3, "records without a date pass through")

	res = d.Scrape(context.Background(), Request{MaxArticles: 10, DateFrom: date(2024, 7, 15), DateTo: date(2024, 7, 10)})
	require.Len(t, res.Records, 1)
	assert.Nil(t, res.Records[0].PublishedAt)
}

func TestScrapeEmptySourcesMeansAll(t *testing.T) {
	a := &fakeFetcher{name: "b_source"}
	b := &fakeFetcher{name: "a_source"}
	d := NewDispatcher(registryWith(a, b), nil, 2, time.Second)

	res := d.Scrape(context.Background(), Request{MaxArticles: 1})
	assert.Equal(t, []string{"a_source", "b_source"}, res.Sources)
}

func newTestService(t *testing.T, fetchers ...*fakeFetcher) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "svc.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	store, err := storage.New(db, nil, storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := registryWith(fetchers...)
	return NewService(reg, NewDispatcher(reg, nil, 2, time.Second), store, 20)
}

func TestServiceScrapeIsolationAndIdempotency(t *testing.T) {
	a := &fakeFetcher{name: "a", err: errors.New("unreachable")}
	b := &fakeFetcher{name: "b", items: []collector.NewsItem{
		item("b", "1", "GDP grows", nil), item("b", "2", "Grid outage", nil),
	}}
	svc := newTestService(t, a, b)
	ctx := context.Background()

	assert.Equal(t, []string{"a", "b"}, svc.ListSources())

	report, err := svc.Scrape(ctx, Request{Sources: []string{"a", "b"}, MaxArticles: 5})
	require.NoError(t, err)
	assert.Equal(t, "partial", report.Status)
	assert.Equal(t, 2, report.ArticlesScraped)
	assert.Equal(t, 2, report.ArticlesStored)
	assert.Equal(t, []string{"unreachable"}, report.Errors["a"])
	assert.NotEmpty(t, report.RunID)

	again, err := svc.Scrape(ctx, Request{Sources: []string{"b"}, MaxArticles: 5})
	require.NoError(t, err)
	assert.Equal(t, "success", again.Status)
	assert.Equal(t, 2, again.ArticlesScraped)
	assert.Equal(t, 0, again.ArticlesStored)

	list, err := svc.FindArticles(ctx, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 2)

	st, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.TotalArticles)

	got, err := svc.GetArticle(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, list[0].URL, got.URL)

	require.NoError(t, svc.DeleteArticle(ctx, got.ID))
	_, err = svc.GetArticle(ctx, got.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteArticle(ctx, got.ID), storage.ErrNotFound)
}

func TestServiceScrapeRejectsInvalidRequest(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, req := range []Request{
		{MaxArticles: 0},
		{MaxArticles: 21},
		{MaxArticles: 5, DateFrom: date(2024, 7, 20), DateTo: date(2024, 7, 1)},
	} {
		_, err := svc.Scrape(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidRequest, "request %+v", req)
	}
}
