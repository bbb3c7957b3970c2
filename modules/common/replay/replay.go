package replay

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache - 멱등성 토큰별 최종 응답 캐시
// 같은 토큰으로 재시도된 요청은 원장을 거치지 않고 최초 응답을 그대로 받는다.
// 캐시 실패는 로깅만 하고 무시한다 (원장 멱등성이 최종 방어선).
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache - 응답 캐시 생성 (rdb가 nil이면 캐시 동작 없이 통과)
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func cacheKey(token string) string {
	return "replay:" + token
}

// Store - 완료된 배치 응답 저장
func (c *Cache) Store(ctx context.Context, token string, response interface{}) {
	if c == nil || c.rdb == nil || token == "" {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		log.Printf("⚠️  [Replay] Failed to marshal response for token %s: %v", token, err)
		return
	}

	if err := c.rdb.Set(ctx, cacheKey(token), payload, c.ttl).Err(); err != nil {
		log.Printf("⚠️  [Replay] Failed to cache response for token %s: %v", token, err)
		return
	}

	log.Printf("💾 [Replay] Cached response for token %s (%d bytes)", token, len(payload))
}

// Load - 저장된 응답 조회. 없으면 (false, nil)
func (c *Cache) Load(ctx context.Context, token string, out interface{}) bool {
	if c == nil || c.rdb == nil || token == "" {
		return false
	}

	payload, err := c.rdb.Get(ctx, cacheKey(token)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("⚠️  [Replay] Failed to load cached response for token %s: %v", token, err)
		}
		return false
	}

	if err := json.Unmarshal(payload, out); err != nil {
		log.Printf("⚠️  [Replay] Failed to unmarshal cached response for token %s: %v", token, err)
		return false
	}

	log.Printf("🔁 [Replay] Served cached response for token %s", token)
	return true
}
