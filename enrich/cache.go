package enrich

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/tracksim/core"
)

// DefaultCacheTTL 是展示字段缓存的默认有效期。
const DefaultCacheTTL = 24 * time.Hour

// CachedEnricher 在任意 Fetcher 前面加一层 core.Store 缓存。
// 只缓存成功且非空的结果；缓存读写失败按未命中处理。
type CachedEnricher struct {
	Next   Fetcher
	Store  core.Store
	TTL    time.Duration
	Prefix string
	Logger zerolog.Logger

	// OnLookup 在每次查询后回调，hit 表示缓存命中
	OnLookup func(hit bool)
}

// NewCachedEnricher 创建缓存富化器。
func NewCachedEnricher(next Fetcher, store core.Store, ttl time.Duration) *CachedEnricher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedEnricher{Next: next, Store: store, TTL: ttl, Prefix: "tracksim:enrich", Logger: zerolog.Nop()}
}

func (c *CachedEnricher) key(trackID int64) string {
	return c.Prefix + ":" + strconv.FormatInt(trackID, 10)
}

func (c *CachedEnricher) Fetch(ctx context.Context, trackID int64) (Display, error) {
	key := c.key(trackID)
	if raw, err := c.Store.Get(ctx, key); err == nil {
		var d Display
		if err := json.Unmarshal(raw, &d); err == nil {
			c.observe(true)
			return d, nil
		}
		c.Logger.Warn().Str("key", key).Msg("corrupt enrich cache entry")
	} else if !core.IsStoreNotFound(err) {
		c.Logger.Warn().Err(err).Str("store", c.Store.Name()).Msg("enrich cache read failed")
	}
	c.observe(false)

	d, err := c.Next.Fetch(ctx, trackID)
	if err != nil {
		return Display{}, err
	}
	if d.IsZero() {
		return d, nil
	}
	if raw, err := json.Marshal(d); err == nil {
		if err := c.Store.Set(ctx, key, raw, int(c.TTL/time.Second)); err != nil {
			c.Logger.Warn().Err(err).Str("store", c.Store.Name()).Msg("enrich cache write failed")
		}
	}
	return d, nil
}

func (c *CachedEnricher) Enrich(ctx context.Context, it *core.Item) {
	if err := apply(ctx, c, it); err != nil {
		c.Logger.Debug().Err(err).Int64("track_id", it.ID).Msg("enrich failed")
	}
}

func (c *CachedEnricher) observe(hit bool) {
	if c.OnLookup != nil {
		c.OnLookup(hit)
	}
}
