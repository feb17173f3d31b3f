package config

import "time"

// CacheConfig configures the Redis response cache used for the read-mostly
// venue statistics endpoint.
type CacheConfig struct {
	Enabled      bool            // CACHE_ENABLED
	Methods      map[string]bool // upper-case HTTP methods eligible for caching
	TTL          time.Duration   // lifetime of a cached response
	Prefix       string          // Redis key prefix
	MaxBodyBytes int             // larger responses are not cached
}

// LoadCacheConfig reads the CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      envList("CACHE_METHODS", "GET"),
		TTL:          envDur("CACHE_TTL", 60*time.Second),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20), // 1 MiB
	}
}
