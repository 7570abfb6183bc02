package access

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// CacheConfig controls the decision cache. TTL is in seconds. Backend selects
// the store implementation: "memory" (default) or "ristretto". The ristretto
// knobs are ignored by the memory backend.
type CacheConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	TTL         int64  `json:"ttl" yaml:"ttl"`
	Backend     string `json:"backend,omitempty" yaml:"backend,omitempty"`
	NumCounters int64  `json:"num_counters,omitempty" yaml:"num_counters,omitempty"`
	MaxCost     int64  `json:"max_cost,omitempty" yaml:"max_cost,omitempty"`
	BufferItems int64  `json:"buffer_items,omitempty" yaml:"buffer_items,omitempty"`
}

// Store is an expiring key/value store. A zero ttl means the store's default.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	Clear()
}

type ttlEntry struct {
	value     any
	expiresAt time.Time
}

// TTLStore is a mutex-guarded map with absolute expiration timestamps
// computed at write time. Expiry is lazy: entries are evicted when a read
// finds them stale; there is no background sweep.
type TTLStore struct {
	mu         sync.RWMutex
	entries    map[string]ttlEntry
	defaultTTL time.Duration
	now        func() time.Time
}

func NewTTLStore(defaultTTL time.Duration) *TTLStore {
	return &TTLStore{
		entries:    make(map[string]ttlEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (s *TTLStore) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		// re-check under the write lock; another writer may have refreshed it
		if cur, still := s.entries[key]; still && s.now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (s *TTLStore) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.mu.Lock()
	s.entries[key] = ttlEntry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

func (s *TTLStore) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *TTLStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]ttlEntry)
	s.mu.Unlock()
}

// RistrettoStore adapts a ristretto cache to the Store interface for
// high-throughput deployments. Ristretto handles expiry and admission
// internally; Wait is called after writes so reads-after-write behave like
// the memory backend.
type RistrettoStore struct {
	cache      *ristretto.Cache
	defaultTTL time.Duration
}

func NewRistrettoStore(cfg CacheConfig) (*RistrettoStore, error) {
	numCounters := cfg.NumCounters
	if numCounters <= 0 {
		numCounters = 1e6
	}
	maxCost := cfg.MaxCost
	if maxCost <= 0 {
		maxCost = 1 << 26
	}
	bufferItems := cfg.BufferItems
	if bufferItems <= 0 {
		bufferItems = 64
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto cache: %w", err)
	}
	return &RistrettoStore{cache: c, defaultTTL: time.Duration(cfg.TTL) * time.Second}, nil
}

func (s *RistrettoStore) Get(key string) (any, bool) {
	return s.cache.Get(key)
}

func (s *RistrettoStore) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.cache.SetWithTTL(key, value, 1, ttl)
	s.cache.Wait()
}

func (s *RistrettoStore) Delete(key string) {
	s.cache.Del(key)
}

func (s *RistrettoStore) Clear() {
	s.cache.Clear()
}

// DecisionCache memoizes per-user role lists, attribute maps and decisions on
// top of a Store. It keeps a per-user index of the keys it wrote so
// InvalidateUser removes exactly that user's entries without scanning the
// whole store. When disabled it degrades to a pass-through: reads miss and
// writes are dropped.
type DecisionCache struct {
	store      Store
	enabled    bool
	defaultTTL time.Duration

	mu     sync.Mutex
	byUser map[string]map[string]struct{}
}

// NewDecisionCache builds a cache per the config. Disabled configs still
// return a usable (pass-through) cache.
func NewDecisionCache(cfg CacheConfig) (*DecisionCache, error) {
	var store Store
	switch cfg.Backend {
	case "", "memory":
		store = NewTTLStore(time.Duration(cfg.TTL) * time.Second)
	case "ristretto":
		rs, err := NewRistrettoStore(cfg)
		if err != nil {
			return nil, err
		}
		store = rs
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	return &DecisionCache{
		store:      store,
		enabled:    cfg.Enabled,
		defaultTTL: time.Duration(cfg.TTL) * time.Second,
		byUser:     make(map[string]map[string]struct{}),
	}, nil
}

// Get returns the raw cached value under key.
func (c *DecisionCache) Get(key string) (any, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.store.Get(key)
}

// Set writes a value with the default TTL.
func (c *DecisionCache) Set(key string, value any) {
	c.SetTTL(key, value, 0)
}

// SetTTL writes a value with a per-write TTL override; zero means default.
func (c *DecisionCache) SetTTL(key string, value any, ttl time.Duration) {
	if !c.enabled {
		return
	}
	c.store.Set(key, value, ttl)
}

func (c *DecisionCache) Delete(key string) {
	c.store.Delete(key)
}

func (c *DecisionCache) Clear() {
	c.store.Clear()
	c.mu.Lock()
	c.byUser = make(map[string]map[string]struct{})
	c.mu.Unlock()
}

func rolesKey(userID string) string { return "roles:" + userID }
func attrsKey(userID string) string { return "attrs:" + userID }

// DecisionKey builds the composite decision key. The context is serialized
// with encoding/json, which emits map keys in sorted order, so two equal
// contexts produce the same key regardless of construction order.
func DecisionKey(userID, resource, action string, context map[string]any) string {
	ctxJSON, err := json.Marshal(context)
	if err != nil {
		ctxJSON = []byte("{}")
	}
	return "decision:" + userID + ":" + resource + ":" + action + ":" + string(ctxJSON)
}

func (c *DecisionCache) GetRoles(userID string) ([]string, bool) {
	v, ok := c.Get(rolesKey(userID))
	if !ok {
		return nil, false
	}
	roles, ok := v.([]string)
	return roles, ok
}

func (c *DecisionCache) SetRoles(userID string, roles []string) {
	c.Set(rolesKey(userID), roles)
	c.track(userID, rolesKey(userID))
}

func (c *DecisionCache) GetAttributes(userID string) (AttributeValues, bool) {
	v, ok := c.Get(attrsKey(userID))
	if !ok {
		return nil, false
	}
	attrs, ok := v.(AttributeValues)
	return attrs, ok
}

func (c *DecisionCache) SetAttributes(userID string, attrs AttributeValues) {
	c.Set(attrsKey(userID), attrs)
	c.track(userID, attrsKey(userID))
}

func (c *DecisionCache) GetDecision(key string) (bool, bool) {
	v, ok := c.Get(key)
	if !ok {
		return false, false
	}
	allowed, ok := v.(bool)
	return allowed, ok
}

func (c *DecisionCache) SetDecision(userID, key string, allowed bool) {
	c.Set(key, allowed)
	c.track(userID, key)
}

// InvalidateUser deletes the user's cached roles, attributes and every
// decision written for them. Other users' entries are untouched.
func (c *DecisionCache) InvalidateUser(userID string) {
	c.store.Delete(rolesKey(userID))
	c.store.Delete(attrsKey(userID))
	c.mu.Lock()
	keys := c.byUser[userID]
	delete(c.byUser, userID)
	c.mu.Unlock()
	for key := range keys {
		c.store.Delete(key)
	}
}

func (c *DecisionCache) track(userID, key string) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	set, ok := c.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		c.byUser[userID] = set
	}
	set[key] = struct{}{}
	c.mu.Unlock()
}
