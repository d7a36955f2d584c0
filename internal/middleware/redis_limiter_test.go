package middleware

import (
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

func TestRedisLimiterFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	rl := NewRedisLimiter(client, discardLogger())
	t.Cleanup(func() { rl.Close() })

	for i := 0; i < 3; i++ {
		if !rl.Allow("key", 1, time.Minute) {
			t.Fatalf("request %d denied with redis unreachable", i+1)
		}
	}
}
