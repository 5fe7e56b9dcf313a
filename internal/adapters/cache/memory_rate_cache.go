package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
	"github.com/zatekoja/ratebenchmark/internal/domain/providers"
)

// DefaultRateCacheTTL is how long fetched dataset rows stay fresh.
const DefaultRateCacheTTL = 24 * time.Hour

// entryStore is the key/value backing of MemoryRateCache
type entryStore interface {
	get(key string) (*entities.RateCacheEntry, bool)
	put(key string, entry *entities.RateCacheEntry)
	len() int
}

// MemoryRateCache implements RateCacheStore in process memory. Expired
// entries are not removed on read; they report CacheExpired until a fresh
// fetch overwrites them. With a positive capacity the least recently used
// entry is evicted once the capacity is reached.
type MemoryRateCache struct {
	store entryStore
	ttl   time.Duration
	clock providers.Clock
}

// NewMemoryRateCache creates a new in-memory rate cache. capacity <= 0 means unbounded.
func NewMemoryRateCache(ttl time.Duration, capacity int, clock providers.Clock) (*MemoryRateCache, error) {
	if ttl <= 0 {
		ttl = DefaultRateCacheTTL
	}
	if clock == nil {
		clock = providers.SystemClock{}
	}

	var store entryStore
	if capacity > 0 {
		c, err := lru.New[string, *entities.RateCacheEntry](capacity)
		if err != nil {
			return nil, fmt.Errorf("failed to create LRU rate cache: %w", err)
		}
		store = &lruStore{cache: c}
	} else {
		store = &mapStore{items: make(map[string]*entities.RateCacheEntry)}
	}

	return &MemoryRateCache{store: store, ttl: ttl, clock: clock}, nil
}

// Get retrieves the entry for key and classifies its freshness
func (c *MemoryRateCache) Get(_ context.Context, key entities.RateCacheKey) entities.CacheLookup {
	entry, ok := c.store.get(key.String())
	if !ok {
		return entities.CacheLookup{Status: entities.CacheAbsent}
	}

	out := copyEntry(entry)
	if !entry.IsValid(c.clock.Now(), c.ttl) {
		return entities.CacheLookup{Status: entities.CacheExpired, Entry: out}
	}
	return entities.CacheLookup{Status: entities.CacheValid, Entry: out}
}

// Put stores rows for key, replacing any previous entry
func (c *MemoryRateCache) Put(_ context.Context, key entities.RateCacheKey, rows []entities.RawRateRow, fetchedAt time.Time) error {
	c.store.put(key.String(), copyEntry(&entities.RateCacheEntry{Rows: rows, FetchedAt: fetchedAt}))
	return nil
}

// Len returns the number of stored entries, fresh or expired
func (c *MemoryRateCache) Len() int {
	return c.store.len()
}

// TTL returns the freshness window
func (c *MemoryRateCache) TTL() time.Duration {
	return c.ttl
}

func copyEntry(entry *entities.RateCacheEntry) *entities.RateCacheEntry {
	rows := make([]entities.RawRateRow, len(entry.Rows))
	copy(rows, entry.Rows)
	return &entities.RateCacheEntry{Rows: rows, FetchedAt: entry.FetchedAt}
}

type lruStore struct {
	cache *lru.Cache[string, *entities.RateCacheEntry]
}

func (s *lruStore) get(key string) (*entities.RateCacheEntry, bool) {
	return s.cache.Get(key)
}

func (s *lruStore) put(key string, entry *entities.RateCacheEntry) {
	s.cache.Add(key, entry)
}

func (s *lruStore) len() int {
	return s.cache.Len()
}

type mapStore struct {
	mu    sync.RWMutex
	items map[string]*entities.RateCacheEntry
}

func (s *mapStore) get(key string) (*entities.RateCacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.items[key]
	return entry, ok
}

func (s *mapStore) put(key string, entry *entities.RateCacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry
}

func (s *mapStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
