package trusty

import (
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
)

// CacheConfig sizes the decision cache. Zero values fall back to defaults
// suitable for a single-process service.
type CacheConfig struct {
	NumCounters int64         `json:"num_counters" yaml:"num_counters"`
	MaxCost     int64         `json:"max_cost" yaml:"max_cost"`
	BufferItems int64         `json:"buffer_items" yaml:"buffer_items"`
	TTL         time.Duration `json:"ttl" yaml:"ttl"`
}

// DecisionCache memoizes decisions keyed by the full request. It is an
// opt-in extension: correctness requires that every grant-affecting
// mutation (roles, permissions, memberships) clears it synchronously, which
// Directory does.
type DecisionCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewDecisionCache(cfg CacheConfig) (*DecisionCache, error) {
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 1e5
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = 1e4
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &DecisionCache{cache: c, ttl: cfg.TTL}, nil
}

func (c *DecisionCache) Get(req *IsAllowedRequest) (allowed, ok bool) {
	v, ok := c.cache.Get(decisionKey(req))
	if !ok {
		return false, false
	}
	allowed, ok = v.(bool)
	return allowed, ok
}

func (c *DecisionCache) Set(req *IsAllowedRequest, allowed bool) {
	c.cache.SetWithTTL(decisionKey(req), allowed, 1, c.ttl)
}

// Clear drops every cached decision. Ristretto cannot enumerate entries per
// user, so invalidation is all-or-nothing.
func (c *DecisionCache) Clear() {
	c.cache.Clear()
}

// Wait blocks until pending writes are visible. Tests use it; the hot path
// never does.
func (c *DecisionCache) Wait() {
	c.cache.Wait()
}

func decisionKey(req *IsAllowedRequest) string {
	return strings.Join([]string{req.ExternalUserID, req.Namespace, req.Action, req.Resource}, "\x1f")
}
