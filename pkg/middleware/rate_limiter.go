package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// KeyFunc picks the throttle bucket of a request. An empty key skips the
// limiter.
type KeyFunc func(c *gin.Context) string

// RateFunc is read on every request so the rate can follow a runtime setting.
type RateFunc func() limiter.Rate

// MetricsObserver 限流结果上报
type MetricsObserver interface {
	OnAllow(route string, key string)
	OnDeny(route string, key string)
}

// RateLimiter 按 key 限流，每种速率缓存一个 limiter 实例
type RateLimiter struct {
	store    limiter.Store
	rate     RateFunc
	key      KeyFunc
	observer MetricsObserver

	mu       sync.Mutex
	limiters map[string]*limiter.Limiter
}

// NewRateLimiter 构造函数；store 为空时使用内存存储
func NewRateLimiter(store limiter.Store, rate RateFunc, key KeyFunc) *RateLimiter {
	if store == nil {
		store = memory.NewStore()
	}
	return &RateLimiter{
		store:    store,
		rate:     rate,
		key:      key,
		limiters: make(map[string]*limiter.Limiter),
	}
}

func (l *RateLimiter) WithObserver(observer MetricsObserver) *RateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = observer
	return l
}

// Fixed returns a RateFunc for a constant "<limit>-<period>" rate such as
// "5-H". Malformed input falls back to 10 per second.
func Fixed(formatted string) RateFunc {
	r, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		r = limiter.Rate{Period: time.Second, Limit: 10}
	}
	return func() limiter.Rate { return r }
}

// Middleware 返回 Gin 中间件；超限时按 DRF 的格式返回 429
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := l.key(c)
		if key == "" {
			c.Next()
			return
		}
		rate := l.rate()
		if rate.Limit <= 0 {
			c.Next()
			return
		}

		lim, id := l.getLimiter(rate)
		// 速率变化后换一组计数
		lctx, err := lim.Get(c, id+":"+key)
		if err != nil {
			c.Next()
			return
		}
		setStandardHeaders(c, lctx)
		if lctx.Reached {
			retry := time.Until(time.Unix(lctx.Reset, 0))
			setRetryAfter(c, retry)
			l.report(c, key, false)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail": fmt.Sprintf("Request was throttled. Expected available in %d seconds.", seconds(retry)),
			})
			return
		}

		l.report(c, key, true)
		c.Next()
	}
}

func (l *RateLimiter) report(c *gin.Context, key string, allowed bool) {
	l.mu.Lock()
	obs := l.observer
	l.mu.Unlock()
	if obs == nil {
		return
	}
	r := c.FullPath()
	if r == "" {
		r = c.Request.URL.Path
	}
	if allowed {
		obs.OnAllow(r, key)
	} else {
		obs.OnDeny(r, key)
	}
}

func (l *RateLimiter) getLimiter(rate limiter.Rate) (*limiter.Limiter, string) {
	id := strconv.FormatInt(rate.Limit, 10) + "/" + rate.Period.String()

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[id]; ok {
		return lim, id
	}
	lim := limiter.New(l.store, rate)
	l.limiters[id] = lim
	return lim, id
}

func setStandardHeaders(c *gin.Context, ctx limiter.Context) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.Itoa(seconds(time.Until(time.Unix(ctx.Reset, 0)))))
}

func setRetryAfter(c *gin.Context, d time.Duration) {
	c.Header("Retry-After", strconv.Itoa(seconds(d)))
}

func seconds(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d.Seconds())
}
