package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orakle-ai/orakle/config"
)

// Cache stores fused search responses in Redis keyed by a request hash.
// A nil *Cache is valid and caches nothing; every Redis failure is soft.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewCache connects to Redis when configured; returns nil otherwise.
func NewCache(cfg config.RedisConfig, ttl time.Duration) *Cache {
	if !cfg.Enabled() {
		return nil
	}
	logger := log.New(log.Writer(), "[SEARCH-CACHE] ", log.LstdFlags)
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Printf("redis unavailable (%s:%s), search cache disabled: %v", cfg.Host, cfg.Port, err)
		return nil
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

func cacheKey(req Request) string {
	engines := append([]string(nil), req.Engines...)
	payload, _ := json.Marshal(struct {
		Query      string   `json:"q"`
		SearchType string   `json:"t"`
		NumResults int      `json:"n"`
		Engines    []string `json:"e"`
		Recency    string   `json:"r"`
	}{strings.TrimSpace(strings.ToLower(req.Query)), req.SearchType, req.NumResults, engines, req.Recency})
	sum := sha256.Sum256(payload)
	return "orakle:search:" + hex.EncodeToString(sum[:])
}

// Get returns a cached response for the request, if any.
func (c *Cache) Get(ctx context.Context, req Request) (Response, bool) {
	if c == nil {
		return Response{}, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey(req)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Printf("cache get failed: %v", err)
		}
		return Response{}, false
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Printf("cache entry corrupt, dropping: %v", err)
		_ = c.rdb.Del(ctx, cacheKey(req)).Err()
		return Response{}, false
	}
	return resp, true
}

// Set stores a successful response. Error responses are never cached.
func (c *Cache) Set(ctx context.Context, req Request, resp Response) {
	if c == nil || resp.Status != "ok" {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(req), raw, c.ttl).Err(); err != nil {
		c.logger.Printf("cache set failed: %v", err)
	}
}
