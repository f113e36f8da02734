package storage

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/analytics/internal/config"
	"github.com/gosight/gosight/analytics/internal/timeseries"
)

const listerKeyPrefix = "lister:"

// ListerCache fronts a ListerResolver with Redis. Cache failures fall
// through to the resolver.
type ListerCache struct {
	redis *redis.Client
	next  timeseries.ListerResolver
	ttl   time.Duration
}

func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewListerCache(rdb *redis.Client, next timeseries.ListerResolver, ttl time.Duration) *ListerCache {
	return &ListerCache{redis: rdb, next: next, ttl: ttl}
}

func (c *ListerCache) ResolveListers(ctx context.Context, listingIDs []string) (map[string]timeseries.Lister, error) {
	out := make(map[string]timeseries.Lister, len(listingIDs))
	if len(listingIDs) == 0 {
		return out, nil
	}

	missing := listingIDs
	keys := make([]string, len(listingIDs))
	for i, id := range listingIDs {
		keys[i] = listerKeyPrefix + id
	}

	cached, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		log.Warn().Err(err).Msg("Lister cache read failed")
	} else {
		missing = nil
		for i, v := range cached {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, listingIDs[i])
				continue
			}
			id, typ, _ := strings.Cut(s, "|")
			out[listingIDs[i]] = timeseries.Lister{ID: id, Type: typ}
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	resolved, err := c.next.ResolveListers(ctx, missing)
	if err != nil {
		return nil, err
	}

	pipe := c.redis.Pipeline()
	for id, l := range resolved {
		out[id] = l
		pipe.Set(ctx, listerKeyPrefix+id, l.ID+"|"+l.Type, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Int("count", len(resolved)).Msg("Lister cache write failed")
	}

	return out, nil
}
