package handlers

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Forecast and analytics payloads are expensive to rebuild on every
// dashboard poll, so results are held in a small in-process TTL cache.

type forecastCacheEntry struct {
	value     any
	expiresAt time.Time
}

const forecastCacheMaxEntries = 500

var (
	forecastCacheMu sync.Mutex
	forecastCache   = map[string]forecastCacheEntry{}
)

func forecastCacheKey(prefix string, cafeID int64, parts ...string) string {
	segments := make([]string, 0, 2+len(parts))
	segments = append(segments, prefix, fmt.Sprint(cafeID))
	segments = append(segments, parts...)
	return strings.Join(segments, "|")
}

func getForecastCache(key string) (any, bool) {
	forecastCacheMu.Lock()
	defer forecastCacheMu.Unlock()

	entry, ok := forecastCache[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(forecastCache, key)
		return nil, false
	}
	return entry.value, true
}

func setForecastCache(key string, value any, ttl time.Duration) {
	forecastCacheMu.Lock()
	defer forecastCacheMu.Unlock()

	forecastCache[key] = forecastCacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
	if len(forecastCache) > forecastCacheMaxEntries {
		forecastCache = map[string]forecastCacheEntry{}
	}
}

func invalidateForecastCacheForCafe(cafeID int64, prefixes ...string) {
	forecastCacheMu.Lock()
	defer forecastCacheMu.Unlock()

	cafeKey := fmt.Sprint(cafeID)
	if len(prefixes) == 0 {
		for key := range forecastCache {
			if strings.Contains(key, "|"+cafeKey+"|") || strings.HasSuffix(key, "|"+cafeKey) {
				delete(forecastCache, key)
			}
		}
		return
	}

	for key := range forecastCache {
		for _, prefix := range prefixes {
			prefixKey := prefix + "|" + cafeKey
			if strings.HasPrefix(key, prefixKey+"|") || key == prefixKey {
				delete(forecastCache, key)
				break
			}
		}
	}
}
