package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/gwas-risk-server/internal/domain"
)

// CacheStats represents reference-SNP cache performance counters
type CacheStats struct {
	MemoryHits    int64 `json:"memory_hits"`
	RedisHits     int64 `json:"redis_hits"`
	StoreLookups  int64 `json:"store_lookups"`
	TotalRequests int64 `json:"total_requests"`
	ErrorCount    int64 `json:"error_count"`
}

// CachedRefSNPStore wraps a ReferenceSNPStore with two cache tiers: an
// in-memory LRU for hot rsIDs and an optional Redis tier for warm ones.
// A circuit breaker guards the backing store; while open, lookups fail fast
// and the resolver degrades to the no-strand-check mode.
type CachedRefSNPStore struct {
	inner domain.ReferenceSNPStore

	memory *lru.Cache
	redis  *redis.Client // nil disables the warm tier
	ttl    time.Duration

	breaker *gobreaker.CircuitBreaker

	log     *logrus.Logger
	stats   CacheStats
	statsMu sync.Mutex
}

// notInReference is the cached negative entry for rsIDs absent from the store
var notInReference = &domain.ReferenceSNP{}

// NewCachedRefSNPStore creates the cached store. redisClient may be nil.
func NewCachedRefSNPStore(inner domain.ReferenceSNPStore, redisClient *redis.Client, cfg domain.CacheConfig, logger *logrus.Logger) (*CachedRefSNPStore, error) {
	size := cfg.MemorySize
	if size == 0 {
		size = 10000
	}
	ttl := cfg.DefaultTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	memory, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "refsnp-store",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// An absent rsID is an answer, not a store failure.
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Reference SNP store breaker state changed")
		},
	})

	return &CachedRefSNPStore{
		inner:   inner,
		memory:  memory,
		redis:   redisClient,
		ttl:     ttl,
		breaker: breaker,
		log:     logger,
	}, nil
}

// Find implements domain.ReferenceSNPStore with read-through caching.
// Negative results (ErrNotFound) are cached as well; repeated lookups of
// catalog rsIDs missing from dbSNP are common.
func (c *CachedRefSNPStore) Find(ctx context.Context, rsID int64) (*domain.ReferenceSNP, error) {
	c.bump(func(s *CacheStats) { s.TotalRequests++ })

	if v, ok := c.memory.Get(rsID); ok {
		c.bump(func(s *CacheStats) { s.MemoryHits++ })
		return c.unwrap(v.(*domain.ReferenceSNP))
	}

	if entry, ok := c.fromRedis(ctx, rsID); ok {
		c.bump(func(s *CacheStats) { s.RedisHits++ })
		c.memory.Add(rsID, entry)
		return c.unwrap(entry)
	}

	c.bump(func(s *CacheStats) { s.StoreLookups++ })
	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Find(ctx, rsID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.memory.Add(rsID, notInReference)
			c.toRedis(ctx, rsID, notInReference)
			return nil, domain.ErrNotFound
		}
		c.bump(func(s *CacheStats) { s.ErrorCount++ })
		return nil, fmt.Errorf("reference SNP lookup for rs%d: %w", rsID, err)
	}

	entry := v.(*domain.ReferenceSNP)
	c.memory.Add(rsID, entry)
	c.toRedis(ctx, rsID, entry)
	return entry, nil
}

// Stats returns a copy of the cache counters
func (c *CachedRefSNPStore) Stats() CacheStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *CachedRefSNPStore) unwrap(entry *domain.ReferenceSNP) (*domain.ReferenceSNP, error) {
	if entry == notInReference || entry.RsID == 0 {
		return nil, domain.ErrNotFound
	}
	return entry, nil
}

func (c *CachedRefSNPStore) fromRedis(ctx context.Context, rsID int64) (*domain.ReferenceSNP, bool) {
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, redisKey(rsID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).Debug("Redis reference SNP read failed")
		}
		return nil, false
	}
	var entry domain.ReferenceSNP
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

func (c *CachedRefSNPStore) toRedis(ctx context.Context, rsID int64, entry *domain.ReferenceSNP) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisKey(rsID), raw, c.ttl).Err(); err != nil {
		c.log.WithError(err).Debug("Redis reference SNP write failed")
	}
}

func (c *CachedRefSNPStore) bump(fn func(*CacheStats)) {
	c.statsMu.Lock()
	fn(&c.stats)
	c.statsMu.Unlock()
}

func redisKey(rsID int64) string {
	return fmt.Sprintf("refsnp:%d", rsID)
}
