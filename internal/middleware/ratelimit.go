package middleware

import (
	"net/http"
	"sync"
	"time"

	"rift-go/pkg/log"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitMessage 是超过上传频率限制时返回给客户端的提示。
const RateLimitMessage = "Too many uploads from this IP, please try again after 5 minutes"

// IPRateLimiter 对每个客户端 IP 维护一个令牌桶：容量为 maxRequests，每 window/maxRequests 补充一个令牌。
type IPRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter 创建限流器，window 内最多允许 maxRequests 个请求。
func NewIPRateLimiter(window time.Duration, maxRequests int) *IPRateLimiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(maxRequests)),
		burst:    maxRequests,
		window:   window,
		now:      time.Now,
	}
}

// Allow 消耗 ip 的一个令牌，令牌不足时返回 false。
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// sweep 回收超过一个窗口未出现的 IP，此时它们的令牌桶必然已经补满。
func (l *IPRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.window {
			delete(l.visitors, ip)
		}
	}
}

// RateLimit 返回按客户端 IP 限流的中间件，超限时返回 429。
func RateLimit(l *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.Allow(ip) {
			log.Warnf("[RateLimit] 上传频率超限, IP: %s", ip)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": RateLimitMessage})
			return
		}
		c.Next()
	}
}
