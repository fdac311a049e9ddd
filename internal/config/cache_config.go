package config

import (
	"fmt"
	"time"
)

const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// CacheConfig describes the shared key-value store backing the rate limiter
// and the token denylist.
type CacheConfig struct {
	Backend       string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	DefaultTTL    time.Duration
}

func NewCacheConfig() *CacheConfig {
	return &CacheConfig{
		Backend:       getEnv("CACHE_BACKEND", CacheBackendRedis),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		DefaultTTL:    15 * time.Minute,
	}
}

func (c *CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
