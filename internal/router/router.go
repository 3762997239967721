package router

import (
	"net/http"
	"strings"

	"github.com/dujiao-next/orderflow/internal/cache"
	"github.com/dujiao-next/orderflow/internal/config"
	"github.com/dujiao-next/orderflow/internal/constants"
	adminhandlers "github.com/dujiao-next/orderflow/internal/http/handlers/admin"
	publichandlers "github.com/dujiao-next/orderflow/internal/http/handlers/public"
	"github.com/dujiao-next/orderflow/internal/logger"
	"github.com/dujiao-next/orderflow/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	redisClient := cache.Client()
	limitOrderCreate := userRateLimit(redisClient, redisPrefix, "order_create", cfg.RateLimit.OrderCreate)
	limitRefundApply := userRateLimit(redisClient, redisPrefix, "refund_apply", cfg.RateLimit.RefundApply)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		// 用户接口
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey))
		{
			user.GET("/cart", publicHandler.GetCart)
			user.PUT("/cart/items", publicHandler.UpsertCartItem)

			user.POST("/orders/cart", limitOrderCreate, publicHandler.CreateOrderFromCart)
			user.POST("/orders/direct", limitOrderCreate, publicHandler.CreateDirectOrder)
			user.GET("/orders", publicHandler.ListOrders)
			user.GET("/orders/:id", publicHandler.GetOrder)
			user.POST("/orders/:id/cancel", publicHandler.CancelOrder)
			user.POST("/orders/:id/refunds", limitRefundApply, publicHandler.ApplyRefund)
			user.GET("/orders/:id/refunds", publicHandler.ListOrderRefunds)
			user.GET("/refunds/:id", publicHandler.GetRefund)
		}

		// 管理端接口
		admin := apiV1.Group("/admin")
		admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey), AdminRBACMiddleware(c.AuthzService))
		{
			admin.GET("/orders", adminHandler.AdminListOrders)
			admin.GET("/orders/:id", adminHandler.AdminGetOrder)
			admin.PATCH("/orders/:id/status", adminHandler.AdminUpdateOrderStatus)
			admin.GET("/orders/:id/refunds", adminHandler.AdminListOrderRefunds)

			admin.POST("/refunds/:id/process", adminHandler.AdminProcessRefund)
			admin.POST("/refunds/:id/close", adminHandler.AdminCloseRefund)
			admin.POST("/refunds/:id/sync", adminHandler.AdminSyncRefund)

			// 权限管理（写操作仅超级管理员）
			admin.GET("/authz/roles", adminHandler.ListAuthzRoles)
			admin.GET("/authz/admins/:id/roles", adminHandler.GetAdminRoles)
			admin.PUT("/authz/admins/:id/roles", adminHandler.SetAdminRoles)
		}
	}

	return r
}
