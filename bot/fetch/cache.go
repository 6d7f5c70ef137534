package fetch

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	contractx "github.com/witbridge/nestbot/bot/contract"
)

const (
	sourceIDsKey     = "news_source_ids"
	defaultSourceTTL = 24 * time.Hour
)

// SourceCache decorates a NewsProvider with a process-wide TTL cache over the
// source-id list. The list is not user-specific, so one entry serves every
// session; concurrent misses collapse into a single upstream fetch.
type SourceCache struct {
	inner contractx.NewsProvider
	cache *gocache.Cache
	group singleflight.Group
}

func NewSourceCache(inner contractx.NewsProvider, ttl time.Duration) *SourceCache {
	if ttl <= 0 {
		ttl = defaultSourceTTL
	}
	return &SourceCache{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (s *SourceCache) SourceIDs(ctx context.Context) ([]string, error) {
	if cached, ok := s.cache.Get(sourceIDsKey); ok {
		return cached.([]string), nil
	}

	ids, err, _ := s.group.Do(sourceIDsKey, func() (any, error) {
		// Re-check under the flight: a finished peer may have populated it.
		if cached, ok := s.cache.Get(sourceIDsKey); ok {
			return cached, nil
		}

		fresh, err := s.inner.SourceIDs(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.SetDefault(sourceIDsKey, fresh)
		log.Debug().Int("sources", len(fresh)).Msg("refreshed news source cache")
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return ids.([]string), nil
}

func (s *SourceCache) TopStory(ctx context.Context, sourceID string) (string, error) {
	return s.inner.TopStory(ctx, sourceID)
}
