package handler

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"crowdfunding/internal/logger"
	"crowdfunding/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// callerKey 鉴权通过后调用者账户存放在 gin.Context 中的 key
const callerKey = "caller"

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if query := c.Request.URL.RawQuery; query != "" {
			path = path + "?" + query
		}

		c.Next()

		logger.Info("[HTTP] %d | %13v | %15s | %-7s %s | caller=%s",
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
			c.Request.Method,
			path,
			c.GetString(callerKey),
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
				response.Abort(c, http.StatusInternalServerError, response.CodeServerError, "服务器内部错误")
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// AuthMiddleware 校验 Bearer JWT（HS256），sub 即调用者账户
func AuthMiddleware(secret []byte, issuer string) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (interface{}, error) { return secret, nil }

	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "缺少访问令牌")
			return
		}

		claims := &jwt.RegisteredClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
			logger.Warn("[Auth] 令牌校验失败: %v", err)
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "访问令牌无效")
			return
		}
		if claims.Subject == "" {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "访问令牌缺少 sub")
			return
		}

		c.Set(callerKey, claims.Subject)
		c.Next()
	}
}

// SignToken 为账户签发访问令牌
func SignToken(secret []byte, issuer, account string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   account,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func callerFrom(c *gin.Context) string {
	return c.GetString(callerKey)
}

// RateLimiter 按调用者限流，未鉴权的请求按客户端 IP
//
// 每个 key 一个令牌桶，每 512 次请求清理一次空闲超过 idleTTL 的 key
type RateLimiter struct {
	mu      sync.Mutex
	byKey   map[string]*limiterEntry
	rps     rate.Limit
	burst   int
	hits    uint64
	idleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		byKey:   make(map[string]*limiterEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
	}
}

func (l *RateLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(callerKey)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !l.Allow(key, time.Now()) {
			response.Abort(c, http.StatusTooManyRequests, response.CodeTooManyRequests, "请求过于频繁")
			return
		}
		c.Next()
	}
}
