package collector

import (
	"context"
	"net/http"
	"time"
)

// NewsItem 采集后、分类前的统一结构
type NewsItem struct {
	Title   string
	URL     string // 规范化后的 URL，作为去重键
	Source  string
	Body    string
	Summary string
	Author  string
	// 来源未提供可靠日期时为 nil，不做猜测
	PublishedAt *time.Time
	ImageURL    string
	Tags        []string
}

// Batch 一次 Fetch 的结果：成功的条目与单篇文档的失败
type Batch struct {
	Items  []NewsItem
	Errors []error
}

func (b *Batch) add(it NewsItem) {
	b.Items = append(b.Items, it)
}

func (b *Batch) fail(err error) {
	b.Errors = append(b.Errors, err)
}

// Fetcher 抽象每一个数据源。
// 返回的 error 表示整个数据源不可用；单篇文档失败记录在 Batch.Errors 中。
// maxArticles 限制的是成功产出的条目数，而非尝试次数。
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, maxArticles int) (*Batch, error)
}

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Options 各数据源共享的抓取参数
type Options struct {
	// 单次网络请求超时
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	return o
}
