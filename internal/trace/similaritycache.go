package trace

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// similarityCacheTTL bounds how long a cached LLM-classified similarity score
// is trusted before a fresh classification is allowed to re-pay for it.
const similarityCacheTTL = 24 * time.Hour

// SimilarityCache fronts an LLM-backed Classifier so that repeat dispatches
// of the same goal against the same candidate trace never re-pay for a
// classification (§11): a cache miss costs one paid call, a hit costs none.
type SimilarityCache interface {
	Get(ctx context.Context, goalSignature, candidateSignature Signature) (score float64, found bool, err error)
	Set(ctx context.Context, goalSignature, candidateSignature Signature, score float64) error
}

func cacheKey(goalSig, candidateSig Signature) string {
	return fmt.Sprintf("simcache:%s:%s", goalSig, candidateSig)
}

// InMemorySimilarityCache is the default SimilarityCache: a process-local
// map guarded by a mutex. Entries never expire; a process restart clears it,
// which is acceptable since misses just fall back to classification.
type InMemorySimilarityCache struct {
	mu      sync.RWMutex
	entries map[string]float64
}

// NewInMemorySimilarityCache constructs an empty InMemorySimilarityCache.
func NewInMemorySimilarityCache() *InMemorySimilarityCache {
	return &InMemorySimilarityCache{entries: make(map[string]float64)}
}

func (c *InMemorySimilarityCache) Get(_ context.Context, goalSig, candidateSig Signature) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	score, ok := c.entries[cacheKey(goalSig, candidateSig)]
	return score, ok, nil
}

func (c *InMemorySimilarityCache) Set(_ context.Context, goalSig, candidateSig Signature, score float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(goalSig, candidateSig)] = score
	return nil
}

// RedisSimilarityCache is a Redis-backed SimilarityCache, for deployments
// where the cache should survive process restarts and be shared across
// dispatcher instances. Grounded on the reference service's orchestrator
// dedupe store, which uses the same get/set-with-TTL shape over Redis.
type RedisSimilarityCache struct {
	client *redis.Client
}

// NewRedisSimilarityCache connects to addr and verifies reachability.
func NewRedisSimilarityCache(addr string) (*RedisSimilarityCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("similarity cache redis ping failed: %w", err)
	}
	return &RedisSimilarityCache{client: client}, nil
}

func (c *RedisSimilarityCache) Get(ctx context.Context, goalSig, candidateSig Signature) (float64, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(goalSig, candidateSig)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	score, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse cached similarity score: %w", err)
	}
	return score, true, nil
}

func (c *RedisSimilarityCache) Set(ctx context.Context, goalSig, candidateSig Signature, score float64) error {
	return c.client.Set(ctx, cacheKey(goalSig, candidateSig), strconv.FormatFloat(score, 'f', -1, 64), similarityCacheTTL).Err()
}

// Close releases the underlying Redis client.
func (c *RedisSimilarityCache) Close() error {
	return c.client.Close()
}

// CachedClassifier wraps an underlying Classifier (typically LLM-backed)
// with a SimilarityCache, so FindSmart only pays for at most one
// classification per (goal, candidate) pair regardless of how many times
// the goal is dispatched (§4.4, §11).
type CachedClassifier struct {
	underlying Classifier
	cache      SimilarityCache
}

// NewCachedClassifier builds a CachedClassifier.
func NewCachedClassifier(underlying Classifier, cache SimilarityCache) *CachedClassifier {
	return &CachedClassifier{underlying: underlying, cache: cache}
}

func (c *CachedClassifier) Classify(ctx context.Context, goal string, candidate ExecutionTrace) (float64, error) {
	goalSig := NewSignature(goal)
	if score, found, err := c.cache.Get(ctx, goalSig, candidate.GoalSignature); err == nil && found {
		return score, nil
	}

	score, err := c.underlying.Classify(ctx, goal, candidate)
	if err != nil {
		return 0, err
	}
	if err := c.cache.Set(ctx, goalSig, candidate.GoalSignature, score); err != nil {
		return score, fmt.Errorf("cache similarity score: %w", err)
	}
	return score, nil
}
