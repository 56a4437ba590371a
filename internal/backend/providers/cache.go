package providers

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"media-organizer/internal/backend/store"
)

// DefaultCacheTTL is how long provider responses stay valid.
const DefaultCacheTTL = 30 * 24 * time.Hour

var whitespacePattern = regexp.MustCompile(`\s+`)

// NormalizeQuery lowercases, trims, and collapses whitespace so that
// equivalent queries share one cache entry.
func NormalizeQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	return whitespacePattern.ReplaceAllString(normalized, " ")
}

// ResponseCache stores provider responses in the catalog database so
// repeated lookups do not hit external APIs.
type ResponseCache struct {
	store store.Store
	ttl   time.Duration
}

// NewResponseCache creates a cache over the given store.
func NewResponseCache(st store.Store) *ResponseCache {
	return &ResponseCache{store: st, ttl: DefaultCacheTTL}
}

// Get unmarshals a cached response into out. Missing, expired, or
// corrupt entries are all treated as a miss.
func (c *ResponseCache) Get(provider, queryKey string, out interface{}) bool {
	if c == nil {
		return false
	}
	data, err := c.store.GetCachedResponse(provider, queryKey)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// Put caches a response. Marshal or write failures are reported but the
// caller treats them as non-fatal.
func (c *ResponseCache) Put(provider, queryKey string, value interface{}) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.store.PutCachedResponse(provider, queryKey, data, c.ttl)
}
