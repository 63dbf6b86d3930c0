package tokenizer

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const defaultEncodeCacheTTL = 10 * time.Minute

// Cached memoizes Encode results. Chat clients resend the same system prompt
// and conversation prefix on every turn, so prompt encodings repeat a lot.
type Cached struct {
	Tokenizer
	cache *ttlcache.Cache[string, []int]
}

// NewCached wraps t with an encode cache holding up to capacity prompts.
// A zero ttl selects the default of ten minutes.
func NewCached(t Tokenizer, ttl time.Duration, capacity uint64) *Cached {
	if ttl <= 0 {
		ttl = defaultEncodeCacheTTL
	}
	opts := []ttlcache.Option[string, []int]{
		ttlcache.WithTTL[string, []int](ttl),
		ttlcache.WithDisableTouchOnHit[string, []int](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []int](capacity))
	}
	c := ttlcache.New[string, []int](opts...)
	go c.Start()
	return &Cached{Tokenizer: t, cache: c}
}

// Encode returns a private copy of the cached ids; callers may modify it.
func (c *Cached) Encode(text string) ([]int, error) {
	if item := c.cache.Get(text); item != nil {
		return append([]int(nil), item.Value()...), nil
	}
	ids, err := c.Tokenizer.Encode(text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, append([]int(nil), ids...), ttlcache.DefaultTTL)
	return ids, nil
}

// Len reports the number of cached prompts.
func (c *Cached) Len() int { return c.cache.Len() }

// Close stops the expiration loop.
func (c *Cached) Close() { c.cache.Stop() }
