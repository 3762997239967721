package router

import (
	"fmt"
	"strconv"

	"github.com/dujiao-next/orderflow/internal/config"
	handlershared "github.com/dujiao-next/orderflow/internal/http/handlers/shared"
	"github.com/dujiao-next/orderflow/internal/http/response"
	"github.com/dujiao-next/orderflow/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// 固定窗口计数：首个请求设置过期，返回 {count, ttl}
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("TTL", KEYS[1])}
`)

type limitDecision struct {
	allowed    bool
	remaining  int
	retryAfter int
}

func decideLimit(count, ttl int64, rule config.RateLimitRuleConfig) limitDecision {
	remaining := rule.MaxRequests - int(count)
	if remaining >= 0 {
		return limitDecision{allowed: true, remaining: remaining}
	}
	retry := int(ttl)
	if retry < 1 {
		retry = rule.WindowSeconds
	}
	return limitDecision{retryAfter: retry}
}

// userRateLimit 按登录用户限流写接口（下单、申请退款）；Redis 未启用或出错时放行
func userRateLimit(client *redis.Client, prefix, scene string, rule config.RateLimitRuleConfig) gin.HandlerFunc {
	if client == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:rl:%s:%s", prefix, scene, rateLimitSubject(c))
		counts, err := fixedWindowScript.Run(c.Request.Context(), client, []string{key}, rule.WindowSeconds).Int64Slice()
		if err != nil || len(counts) < 2 {
			logger.FromContext(c.Request.Context()).Warnw("rate_limit_unavailable", "scene", scene, "error", err)
			c.Next()
			return
		}
		decision := decideLimit(counts[0], counts[1], rule)
		if !decision.allowed {
			c.Header("Retry-After", strconv.Itoa(decision.retryAfter))
			response.Error(c, response.CodeTooManyRequests, handlershared.Message("error.too_many_requests"))
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.remaining))
		c.Next()
	}
}

// rateLimitSubject 已登录用 user:<id>，否则用客户端 IP
func rateLimitSubject(c *gin.Context) string {
	if uid, ok := c.Get(userIDContextKey); ok {
		if id, ok := uid.(uint); ok && id > 0 {
			return "user:" + strconv.FormatUint(uint64(id), 10)
		}
	}
	return "ip:" + c.ClientIP()
}
