package engine

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"specbuddy/internal/session"
)

// cachedResponse represents a cached assistant reply
type cachedResponse struct {
	Response  string
	Timestamp time.Time
}

// responseCache memoizes collection replies keyed by persona and the
// exact turn sequence, so an identical conversation prefix does not
// re-hit the provider.
type responseCache struct {
	entries sync.Map
}

// cacheKey derives the lookup key from the persona and all turns.
func cacheKey(persona string, turns []session.Turn) string {
	h := sha256.New()
	h.Write([]byte(persona))
	for _, t := range turns {
		h.Write([]byte(t.Role))
		h.Write([]byte(t.Content))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (c *responseCache) get(key string) (string, bool) {
	if val, ok := c.entries.Load(key); ok {
		return val.(cachedResponse).Response, true
	}
	return "", false
}

func (c *responseCache) put(key, response string) {
	c.entries.Store(key, cachedResponse{
		Response:  response,
		Timestamp: time.Now(),
	})
}
