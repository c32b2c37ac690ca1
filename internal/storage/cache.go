package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	listGenerationKey = "news:list:gen"
	loadTimeout       = 10 * time.Second
)

// PageCache 列表分页的 Redis 缓存。
// 缓存 key 带一个代数（generation），写操作只需 INCR 代数，旧 key 随 TTL 自然过期，不做通配删除。
type PageCache struct {
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
	log   zerolog.Logger
}

// NewPageCache rdb 为 nil 时返回 nil，调用方直接读数据库
func NewPageCache(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *PageCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PageCache{rdb: rdb, ttl: ttl, log: log.With().Str("component", "page_cache").Logger()}
}

func (c *PageCache) key(ctx context.Context, page, limit int) (string, error) {
	gen, err := c.rdb.Get(ctx, listGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		gen = 0
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("news:list:%d:%d:%d", gen, page, limit), nil
}

// GetOrLoad 命中缓存直接返回；未命中时同一 key 只会有一个 load 在执行
func (c *PageCache) GetOrLoad(ctx context.Context, page, limit int, load func(context.Context) (*Page, error)) (*Page, error) {
	key, err := c.key(ctx, page, limit)
	if err != nil {
		c.log.Warn().Err(err).Msg("redis unavailable, reading news list from database")
		return load(ctx)
	}

	if bs, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var cached Page
		if err := json.Unmarshal(bs, &cached); err == nil {
			return &cached, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// 共享的加载不随单个请求取消，只受 loadTimeout 限制
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		p, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if bs, err := json.Marshal(p); err == nil {
			if err := c.rdb.Set(loadCtx, key, bs, c.ttl).Err(); err != nil {
				c.log.Warn().Err(err).Str("key", key).Msg("write news list cache failed")
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Page), nil
}

// Invalidate 使所有分页缓存失效
func (c *PageCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Incr(ctx, listGenerationKey).Err(); err != nil {
		c.log.Warn().Err(err).Msg("bump news list cache generation failed")
	}
}
