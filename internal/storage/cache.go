package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// 每次写入或删除时自增，查询缓存的 key 中带上该代数，旧缓存自然失效。
// 不做按 key 通配删除，旧 key 依赖 TTL 过期。
const cacheGenKey = "articles:gen"

func (s *Store) generation(ctx context.Context) int64 {
	n, err := s.Redis.Get(ctx, cacheGenKey).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("warn: redis get %s: %v", cacheGenKey, err)
		}
		return 0
	}
	return n
}

// cacheKey 返回带代数的缓存 key；未启用 redis 时返回空串
func (s *Store) cacheKey(ctx context.Context, prefix string, params any) string {
	if s.Redis == nil {
		return ""
	}
	bs, _ := json.Marshal(params)
	sum := sha1.Sum(bs)
	return fmt.Sprintf("%s:%d:%s", prefix, s.generation(ctx), hex.EncodeToString(sum[:]))
}

func (s *Store) loadCache(ctx context.Context, key string, v any) bool {
	if key == "" {
		return false
	}
	bs, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(bs, v) == nil
}

func (s *Store) storeCache(ctx context.Context, key string, v any) {
	if key == "" {
		return
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, bs, s.cacheTTL).Err(); err != nil {
		log.Printf("warn: redis set %s: %v", key, err)
	}
}

func (s *Store) invalidate(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Incr(ctx, cacheGenKey).Err(); err != nil {
		log.Printf("warn: redis incr %s: %v", cacheGenKey, err)
	}
}
