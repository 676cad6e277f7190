// Package ratelimit はIP単位のリクエスト頻度制限ミドルウェアを提供します。
// Redisが使えるときは redis_rate (GCRA) で全インスタンス共通に数え、
// 使えないときはプロセス内の token bucket にフォールバックします。
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"scholarly_library/internal/api"
)

const (
	cleanupInterval = 5 * time.Minute
	entryTTL        = 10 * time.Minute
	keyPrefix       = "ratelimit:"
)

// Config はリミッターの設定です。
type Config struct {
	// Requests per Window.
	Requests int
	Window   time.Duration
	Burst    int
	// FailOpen はRedisとフォールバックの両方が使えないときに通過させるかどうかです。
	FailOpen bool
}

func (c Config) limit() redis_rate.Limit {
	burst := c.Burst
	if burst <= 0 {
		burst = c.Requests
	}
	return redis_rate.Limit{Rate: c.Requests, Burst: burst, Period: c.Window}
}

// Limiter limits requests per client IP and route.
type Limiter struct {
	redis    *redis_rate.Limiter
	fallback *localLimiter
	limit    redis_rate.Limit
	failOpen bool
}

// New は Limiter を生成します。rdb が nil の場合はプロセス内のみで制限します。
// Close で後始末用のゴルーチンを止めてください。
func New(rdb *redis.Client, cfg Config) *Limiter {
	l := &Limiter{
		fallback: newLocalLimiter(),
		limit:    cfg.limit(),
		failOpen: cfg.FailOpen,
	}
	if rdb != nil {
		l.redis = redis_rate.NewLimiter(rdb)
	}
	return l
}

// Close stops the fallback janitor.
func (l *Limiter) Close() {
	l.fallback.stop()
}

// Middleware returns the gin handler enforcing the limit.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyPrefix + c.FullPath() + ":" + c.ClientIP()

		res, err := l.allow(c.Request.Context(), key)
		if err != nil {
			if l.failOpen {
				slog.Warn("rate limiter error, failing open", "error", err, "key", key)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "Service unavailable"})
			return
		}

		setHeaders(c, res, l.limit)

		if res.Allowed == 0 {
			retryAfter := max(int(res.RetryAfter.Seconds()), 1)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			slog.Warn("rate limit exceeded", "key", key, "remote_addr", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, api.ErrorResponse{
				Error: fmt.Sprintf("Too many requests. Retry after %d seconds.", retryAfter),
			})
			return
		}
		c.Next()
	}
}

func (l *Limiter) allow(ctx context.Context, key string) (*redis_rate.Result, error) {
	if l.redis != nil {
		res, err := l.redis.Allow(ctx, key, l.limit)
		if err == nil {
			return res, nil
		}
		slog.Warn("redis rate limiter unavailable, using local fallback", "error", err)
	}
	return l.fallback.allow(key, l.limit)
}

func setHeaders(c *gin.Context, res *redis_rate.Result, limit redis_rate.Limit) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess atomic.Int64
}

type localLimiter struct {
	limiters sync.Map
	done     chan struct{}
	once     sync.Once
}

func newLocalLimiter() *localLimiter {
	l := &localLimiter{done: make(chan struct{})}
	go l.cleanup()
	return l
}

func (l *localLimiter) stop() {
	l.once.Do(func() { close(l.done) })
}

// cleanup は一定時間アクセスのないエントリーを削除します。
func (l *localLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-entryTTL).Unix()
			l.limiters.Range(func(key, value any) bool {
				if e, ok := value.(*limiterEntry); ok && e.lastAccess.Load() < cutoff {
					l.limiters.Delete(key)
				}
				return true
			})
		}
	}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid rate limit %v", limit)
	}
	perSec := float64(limit.Rate) / limit.Period.Seconds()

	v, ok := l.limiters.Load(key)
	if !ok {
		v, _ = l.limiters.LoadOrStore(key, &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(perSec), limit.Burst),
		})
	}
	entry := v.(*limiterEntry)
	entry.lastAccess.Store(time.Now().Unix())

	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  max(int(entry.limiter.Tokens())-1, 0),
		RetryAfter: -1,
		ResetAfter: time.Duration(float64(time.Second) / perSec),
	}
	if entry.limiter.Allow() {
		res.Allowed = 1
	} else {
		res.RetryAfter = time.Duration(float64(time.Second) / perSec)
	}
	return res, nil
}
