package provider

import (
	"time"

	"github.com/dujiao-next/orderflow/internal/authz"
	"github.com/dujiao-next/orderflow/internal/cache"
	"github.com/dujiao-next/orderflow/internal/config"
	"github.com/dujiao-next/orderflow/internal/logger"
	"github.com/dujiao-next/orderflow/internal/models"
	"github.com/dujiao-next/orderflow/internal/payment"
	"github.com/dujiao-next/orderflow/internal/payment/wechatpay"
	"github.com/dujiao-next/orderflow/internal/queue"
	"github.com/dujiao-next/orderflow/internal/repository"
	"github.com/dujiao-next/orderflow/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	OrderRepo        repository.OrderRepository
	SKURepo          repository.ProductSKURepository
	CartRepo         repository.CartRepository
	AddressRepo      repository.AddressRepository
	RefundRepo       repository.RefundRepository
	CompensationRepo repository.StockCompensationRepository

	// Services
	AuthzService  *authz.Service
	TokenService  *service.TokenService
	StockLedger   service.StockLedger
	OrderService  *service.OrderService
	RefundService *service.RefundService
	CartService   *service.CartService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.OrderRepo = repository.NewOrderRepository(db)
	c.SKURepo = repository.NewProductSKURepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.AddressRepo = repository.NewAddressRepository(db)
	c.RefundRepo = repository.NewRefundRepository(db)
	c.CompensationRepo = repository.NewStockCompensationRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	orderCfg := c.Config.Order
	c.TokenService = service.NewTokenService(c.Config.JWT, c.Config.UserJWT)
	c.StockLedger = service.NewSKUStockLedger(c.SKURepo)
	c.OrderService = service.NewOrderService(
		c.OrderRepo,
		c.SKURepo,
		c.CartRepo,
		c.AddressRepo,
		c.CompensationRepo,
		c.StockLedger,
		c.QueueClient,
		service.OrderOptions{
			PaymentExpireMinutes:    orderCfg.PaymentExpireMinutes,
			MaxItemQuantity:         orderCfg.MaxItemQuantity,
			IdempotencyTTL:          time.Duration(orderCfg.IdempotencyTTLSeconds) * time.Second,
			CacheTTL:                time.Duration(orderCfg.CacheTTLSeconds) * time.Second,
			PresaleBalanceWindow:    time.Duration(orderCfg.PresaleBalanceWindowHours) * time.Hour,
			CompensationMaxAttempts: orderCfg.CompensationMaxAttempts,
			CompensationRetryDelay:  time.Duration(orderCfg.CompensationRetryDelaySecs) * time.Second,
		},
	)
	c.RefundService = service.NewRefundService(
		c.OrderService,
		c.OrderRepo,
		c.RefundRepo,
		c.buildRefundGateway(),
		service.RefundOptions{
			GatewayTimeout: time.Duration(c.Config.Refund.GatewayTimeoutSeconds) * time.Second,
			QueryDelay:     time.Duration(c.Config.Refund.QueryDelaySeconds) * time.Second,
			QueryMaxRetry:  c.Config.Refund.QueryMaxRetry,
		},
	)
	c.CartService = service.NewCartService(c.CartRepo, c.SKURepo, orderCfg.MaxItemQuantity)
}

// buildRefundGateway 未启用或配置错误时返回 nil，退款处理将以 ErrGatewayUnavailable 失败
func (c *Container) buildRefundGateway() payment.RefundGateway {
	if !c.Config.Wechatpay.Enabled {
		logger.Warnw("provider_refund_gateway_disabled")
		return nil
	}
	gateway, err := wechatpay.NewGateway(wechatpay.FromAppConfig(c.Config.Wechatpay))
	if err != nil {
		logger.Errorw("provider_init_refund_gateway_failed", "error", err)
		return nil
	}
	return gateway
}
