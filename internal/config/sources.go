package config

import (
	"log"

	"github.com/LJTian/NewsRadar/internal/collector"
)

// Spec 转为采集层的 feed 声明
func (f Feed) Spec() collector.FeedSpec {
	return collector.FeedSpec{
		ID:       f.ID,
		Name:     f.Name,
		URL:      f.URL,
		Aliases:  f.Aliases,
		FullText: f.FullText,
	}
}

// BuildRegistry 内置站点加上 FEEDS_FILE 中的订阅
func (c *Config) BuildRegistry() (*collector.Registry, error) {
	reg := collector.NewRegistry(collector.Options{
		Timeout:   c.RequestTimeout,
		UserAgent: c.UserAgent,
	})
	collector.RegisterBuiltins(reg)

	feeds, err := LoadFeeds(c.FeedsFile)
	if err != nil {
		return nil, err
	}
	specs := make([]collector.FeedSpec, 0, len(feeds))
	for _, f := range feeds {
		specs = append(specs, f.Spec())
	}
	collector.RegisterFeeds(reg, specs)
	log.Printf("registered sources: %v", reg.Available())
	return reg, nil
}
