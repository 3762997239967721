package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dujiao-next/orderflow/internal/constants"
	"github.com/dujiao-next/orderflow/internal/queue"
	"github.com/dujiao-next/orderflow/internal/repository"

	"github.com/oklog/ulid/v2"
)

// OrderOptions 订单服务参数
type OrderOptions struct {
	PaymentExpireMinutes    int
	MaxItemQuantity         int
	IdempotencyTTL          time.Duration
	CacheTTL                time.Duration
	PresaleBalanceWindow    time.Duration
	CompensationMaxAttempts int
	CompensationRetryDelay  time.Duration
	Currency                string
}

// TaskQueue 延迟任务投递，*queue.Client 为生产实现；未启用时各方法为空操作
type TaskQueue interface {
	Enabled() bool
	EnqueueOrderTimeoutCancel(payload queue.OrderTimeoutCancelPayload, delay time.Duration) error
	EnqueueStockCompensate(payload queue.StockCompensatePayload, delay time.Duration, maxRetry int) error
	EnqueueRefundQuery(payload queue.RefundQueryPayload, delay time.Duration, maxRetry int) error
}

// OrderService 订单服务：下单、状态流转、查询
type OrderService struct {
	orderRepo        repository.OrderRepository
	skuRepo          repository.ProductSKURepository
	cartRepo         repository.CartRepository
	addressRepo      repository.AddressRepository
	compensationRepo repository.StockCompensationRepository
	ledger           StockLedger
	queueClient      TaskQueue
	options          OrderOptions
	now              func() time.Time
}

// NewOrderService 创建订单服务
func NewOrderService(orderRepo repository.OrderRepository, skuRepo repository.ProductSKURepository, cartRepo repository.CartRepository, addressRepo repository.AddressRepository, compensationRepo repository.StockCompensationRepository, ledger StockLedger, queueClient TaskQueue, options OrderOptions) *OrderService {
	if ledger == nil {
		ledger = NewSKUStockLedger(skuRepo)
	}
	if queueClient == nil {
		queueClient, _ = queue.NewClient(nil)
	}
	return &OrderService{
		orderRepo:        orderRepo,
		skuRepo:          skuRepo,
		cartRepo:         cartRepo,
		addressRepo:      addressRepo,
		compensationRepo: compensationRepo,
		ledger:           ledger,
		queueClient:      queueClient,
		options:          normalizeOrderOptions(options),
		now:              time.Now,
	}
}

func normalizeOrderOptions(options OrderOptions) OrderOptions {
	if options.PaymentExpireMinutes <= 0 {
		options.PaymentExpireMinutes = 15
	}
	if options.MaxItemQuantity <= 0 {
		options.MaxItemQuantity = 999
	}
	if options.IdempotencyTTL <= 0 {
		options.IdempotencyTTL = 10 * time.Minute
	}
	if options.PresaleBalanceWindow <= 0 {
		options.PresaleBalanceWindow = 72 * time.Hour
	}
	if options.CompensationMaxAttempts <= 0 {
		options.CompensationMaxAttempts = 10
	}
	if options.CompensationRetryDelay <= 0 {
		options.CompensationRetryDelay = 30 * time.Second
	}
	if strings.TrimSpace(options.Currency) == "" {
		options.Currency = constants.SiteCurrencyDefault
	}
	return options
}

func (s *OrderService) paymentExpireDuration() time.Duration {
	return time.Duration(s.options.PaymentExpireMinutes) * time.Minute
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	randPart := randNumeric(6)
	return fmt.Sprintf("OF%s%s", now, randPart)
}

func generateRefundNo() string {
	return "RF" + ulid.Make().String()
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}
