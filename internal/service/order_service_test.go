package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dujiao-next/orderflow/internal/constants"
	"github.com/dujiao-next/orderflow/internal/models"
	"github.com/dujiao-next/orderflow/internal/payment"
	"github.com/dujiao-next/orderflow/internal/queue"
	"github.com/dujiao-next/orderflow/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type orderTestEnv struct {
	db               *gorm.DB
	orders           *OrderService
	refunds          *RefundService
	ledger           *countingLedger
	gateway          *fakeRefundGateway
	skuRepo          repository.ProductSKURepository
	orderRepo        repository.OrderRepository
	compensationRepo repository.StockCompensationRepository
}

func setupOrderServiceTest(t *testing.T) *orderTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:order_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	skuRepo := repository.NewProductSKURepository(db)
	orderRepo := repository.NewOrderRepository(db)
	cartRepo := repository.NewCartRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	compensationRepo := repository.NewStockCompensationRepository(db)
	queueClient, _ := queue.NewClient(nil)

	ledger := newCountingLedger(NewSKUStockLedger(skuRepo))
	orders := NewOrderService(orderRepo, skuRepo, cartRepo, addressRepo, compensationRepo, ledger, queueClient, OrderOptions{
		PaymentExpireMinutes: 15,
		MaxItemQuantity:      99,
	})
	gateway := &fakeRefundGateway{}
	refunds := NewRefundService(orders, orderRepo, refundRepo, gateway, RefundOptions{GatewayTimeout: time.Second})
	return &orderTestEnv{
		db:               db,
		orders:           orders,
		refunds:          refunds,
		ledger:           ledger,
		gateway:          gateway,
		skuRepo:          skuRepo,
		orderRepo:        orderRepo,
		compensationRepo: compensationRepo,
	}
}

// countingLedger 统计调用次数，可注入回补失败
type countingLedger struct {
	inner StockLedger
	stats *ledgerStats
}

type ledgerStats struct {
	mu          sync.Mutex
	deducts     int
	restores    int
	failRestore bool
}

func newCountingLedger(inner StockLedger) *countingLedger {
	return &countingLedger{inner: inner, stats: &ledgerStats{}}
}

func (l *countingLedger) CheckAndDeduct(skuID uint, quantity int) error {
	l.stats.mu.Lock()
	l.stats.deducts++
	l.stats.mu.Unlock()
	return l.inner.CheckAndDeduct(skuID, quantity)
}

func (l *countingLedger) Restore(skuID uint, quantity int) error {
	l.stats.mu.Lock()
	l.stats.restores++
	fail := l.stats.failRestore
	l.stats.mu.Unlock()
	if fail {
		return errors.New("ledger unavailable")
	}
	return l.inner.Restore(skuID, quantity)
}

func (l *countingLedger) WithTx(tx *gorm.DB) StockLedger {
	return &countingLedger{inner: l.inner.WithTx(tx), stats: l.stats}
}

func (l *countingLedger) setFailRestore(fail bool) {
	l.stats.mu.Lock()
	l.stats.failRestore = fail
	l.stats.mu.Unlock()
}

func (l *countingLedger) deductCount() int {
	l.stats.mu.Lock()
	defer l.stats.mu.Unlock()
	return l.stats.deducts
}

// fakeRefundGateway 默认同步退款成功；refundState/queryState 模拟渠道异步受理
type fakeRefundGateway struct {
	mu          sync.Mutex
	err         error
	refundState payment.RefundState
	queryState  payment.RefundState
	calls       int
	queries     int
	requests    []payment.RefundRequest
}

func (g *fakeRefundGateway) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return fakeRefundResult(req.RefundNo, g.refundState), nil
}

func (g *fakeRefundGateway) QueryRefund(ctx context.Context, refundNo string) (*payment.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries++
	if g.err != nil {
		return nil, g.err
	}
	return fakeRefundResult(refundNo, g.queryState), nil
}

func (g *fakeRefundGateway) setStates(refund, query payment.RefundState) {
	g.mu.Lock()
	g.refundState = refund
	g.queryState = query
	g.mu.Unlock()
}

func fakeRefundResult(refundNo string, state payment.RefundState) *payment.RefundResult {
	if state == "" {
		state = payment.RefundSucceeded
	}
	providerStatus := map[payment.RefundState]string{
		payment.RefundSucceeded: "SUCCESS",
		payment.RefundPending:   "PROCESSING",
		payment.RefundFailed:    "CLOSED",
	}[state]
	return &payment.RefundResult{ProviderRefundID: "WX" + refundNo, State: state, ProviderStatus: providerStatus}
}

// spyTaskQueue 记录投递的任务，Enabled 为 false 以保持补偿走同步路径
type spyTaskQueue struct {
	mu             sync.Mutex
	timeouts       []queue.OrderTimeoutCancelPayload
	timeoutDelays  []time.Duration
	compensations  []queue.StockCompensatePayload
	refundQueries  []queue.RefundQueryPayload
	refundMaxRetry []int
}

func (q *spyTaskQueue) Enabled() bool { return false }

func (q *spyTaskQueue) EnqueueOrderTimeoutCancel(payload queue.OrderTimeoutCancelPayload, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.timeouts = append(q.timeouts, payload)
	q.timeoutDelays = append(q.timeoutDelays, delay)
	return nil
}

func (q *spyTaskQueue) EnqueueStockCompensate(payload queue.StockCompensatePayload, delay time.Duration, maxRetry int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.compensations = append(q.compensations, payload)
	return nil
}

func (q *spyTaskQueue) EnqueueRefundQuery(payload queue.RefundQueryPayload, delay time.Duration, maxRetry int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refundQueries = append(q.refundQueries, payload)
	q.refundMaxRetry = append(q.refundMaxRetry, maxRetry)
	return nil
}

func createTestSKU(t *testing.T, db *gorm.DB, code string, stock int, price string, mutate func(*models.ProductSKU)) *models.ProductSKU {
	t.Helper()
	sku := &models.ProductSKU{
		SPUID:       1,
		SKUCode:     code,
		Title:       "商品 " + code,
		PriceAmount: models.NewMoneyFromDecimal(decimal.RequireFromString(price)),
		Stock:       stock,
		OnSale:      true,
	}
	if mutate != nil {
		mutate(sku)
	}
	if err := db.Create(sku).Error; err != nil {
		t.Fatalf("create sku failed: %v", err)
	}
	if !sku.OnSale {
		if err := db.Model(sku).Update("on_sale", false).Error; err != nil {
			t.Fatalf("mark sku off sale failed: %v", err)
		}
	}
	return sku
}

func createTestAddress(t *testing.T, db *gorm.DB, userID uint) *models.Address {
	t.Helper()
	address := &models.Address{
		UserID:   userID,
		Receiver: "张三",
		Phone:    "13800000000",
		Region:   "上海市",
		Detail:   "测试路 1 号",
	}
	if err := db.Create(address).Error; err != nil {
		t.Fatalf("create address failed: %v", err)
	}
	return address
}

func addTestCartItem(t *testing.T, db *gorm.DB, userID uint, sku *models.ProductSKU, quantity int) {
	t.Helper()
	item := &models.CartItem{
		UserID:            userID,
		SKUID:             sku.ID,
		SPUID:             sku.SPUID,
		Quantity:          quantity,
		UnitPriceSnapshot: sku.PriceAmount,
		Selected:          true,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("create cart item failed: %v", err)
	}
}

func mustStock(t *testing.T, db *gorm.DB, skuID uint) int {
	t.Helper()
	var sku models.ProductSKU
	if err := db.First(&sku, skuID).Error; err != nil {
		t.Fatalf("load sku failed: %v", err)
	}
	return sku.Stock
}

func mustOrder(t *testing.T, db *gorm.DB, orderID uint) *models.Order {
	t.Helper()
	var order models.Order
	if err := db.Preload("Items").First(&order, orderID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	return &order
}

func TestBuildDirectDeductsStockAndPersists(t *testing.T) {
	env := setupOrderServiceTest(t)
	sku := createTestSKU(t, env.db, "A1", 5, "100.00", nil)
	address := createTestAddress(t, env.db, 1)

	order, err := env.orders.BuildDirect(context.Background(), BuildDirectInput{
		UserID:    1,
		AddressID: address.ID,
		SKUID:     sku.ID,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("build direct failed: %v", err)
	}
	if order.Status != constants.OrderStatusPendingPayment {
		t.Fatalf("unexpected status: %s", order.Status)
	}
	if order.Version != 0 {
		t.Fatalf("new order version should be 0, got %d", order.Version)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("200")) || !order.ActualAmount.Equal(order.TotalAmount.Decimal) {
		t.Fatalf("unexpected amounts: total=%s actual=%s", order.TotalAmount.String(), order.ActualAmount.String())
	}
	if order.ExpiresAt == nil {
		t.Fatalf("expires_at should be set")
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 || !order.Items[0].Subtotal.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("unexpected items: %+v", order.Items)
	}
	if got := mustStock(t, env.db, sku.ID); got != 3 {
		t.Fatalf("stock should be 3, got %d", got)
	}
}

func TestBuildFromCartMergesLinesAndClearsCart(t *testing.T) {
	env := setupOrderServiceTest(t)
	skuA := createTestSKU(t, env.db, "A1", 10, "10.00", nil)
	skuB := createTestSKU(t, env.db, "B1", 10, "2.50", nil)
	address := createTestAddress(t, env.db, 7)
	addTestCartItem(t, env.db, 7, skuA, 2)
	addTestCartItem(t, env.db, 7, skuB, 4)

	order, err := env.orders.BuildFromCart(context.Background(), BuildFromCartInput{UserID: 7, AddressID: address.ID})
	if err != nil {
		t.Fatalf("build from cart failed: %v", err)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("30")) {
		t.Fatalf("unexpected total: %s", order.TotalAmount.String())
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	var remaining int64
	if err := env.db.Model(&models.CartItem{}).Where("user_id = ?", 7).Count(&remaining).Error; err != nil {
		t.Fatalf("count cart failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("cart should be cleared, remaining %d", remaining)
	}
	if mustStock(t, env.db, skuA.ID) != 8 || mustStock(t, env.db, skuB.ID) != 6 {
		t.Fatalf("unexpected stock after build")
	}
}

func TestBuildFromCartCompensatesDeductedStock(t *testing.T) {
	env := setupOrderServiceTest(t)
	skuA := createTestSKU(t, env.db, "A1", 10, "10.00", nil)
	skuB := createTestSKU(t, env.db, "B1", 10, "10.00", nil)
	skuC := createTestSKU(t, env.db, "C1", 1, "10.00", nil)
	address := createTestAddress(t, env.db, 3)
	addTestCartItem(t, env.db, 3, skuA, 2)
	addTestCartItem(t, env.db, 3, skuB, 3)
	addTestCartItem(t, env.db, 3, skuC, 5)

	_, err := env.orders.BuildFromCart(context.Background(), BuildFromCartInput{UserID: 3, AddressID: address.ID})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
	for _, sku := range []*models.ProductSKU{skuA, skuB} {
		if got := mustStock(t, env.db, sku.ID); got != 10 {
			t.Fatalf("sku %d stock should be restored to 10, got %d", sku.ID, got)
		}
	}
	if got := mustStock(t, env.db, skuC.ID); got != 1 {
		t.Fatalf("failed sku stock should stay 1, got %d", got)
	}
	var orders int64
	env.db.Model(&models.Order{}).Count(&orders)
	if orders != 0 {
		t.Fatalf("no order should be persisted, got %d", orders)
	}
	var cartLines int64
	env.db.Model(&models.CartItem{}).Where("user_id = ?", 3).Count(&cartLines)
	if cartLines != 3 {
		t.Fatalf("cart should be untouched, got %d lines", cartLines)
	}
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	env := setupOrderServiceTest(t)
	sku := createTestSKU(t, env.db, "A1", 10, "10.00", nil)
	offSale := createTestSKU(t, env.db, "OFF", 10, "10.00", func(s *models.ProductSKU) { s.OnSale = false })
	address := createTestAddress(t, env.db, 1)
	ctx := context.Background()

	if _, err := env.orders.BuildFromCart(ctx, BuildFromCartInput{UserID: 1, AddressID: address.ID}); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got: %v", err)
	}
	if _, err := env.orders.BuildDirect(ctx, BuildDirectInput{UserID: 1, AddressID: address.ID, SKUID: sku.ID, Quantity: 0}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero quantity, got: %v", err)
	}
	if _, err := env.orders.BuildDirect(ctx, BuildDirectInput{UserID: 1, AddressID: address.ID, SKUID: sku.ID, Quantity: 100}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for quantity above max, got: %v", err)
	}
	if _, err := env.orders.BuildDirect(ctx, BuildDirectInput{UserID: 2, AddressID: address.ID, SKUID: sku.ID, Quantity: 1}); !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound for foreign address, got: %v", err)
	}
	if _, err := env.orders.BuildDirect(ctx, BuildDirectInput{UserID: 1, AddressID: address.ID, SKUID: 9999, Quantity: 1}); !errors.Is(err, ErrProductSKUNotFound) {
		t.Fatalf("expected ErrProductSKUNotFound, got: %v", err)
	}
	if _, err := env.orders.BuildDirect(ctx, BuildDirectInput{UserID: 1, AddressID: address.ID, SKUID: offSale.ID, Quantity: 1}); !errors.Is(err, ErrSkuUnavailable) {
		t.Fatalf("expected ErrSkuUnavailable, got: %v", err)
	}
	if env.ledger.deductCount() != 0 {
		t.Fatalf("no deduction expected for rejected builds, got %d", env.ledger.deductCount())
	}
}

func TestBuildPresaleSkipsStockLedger(t *testing.T) {
	env := setupOrderServiceTest(t)
	sku := createTestSKU(t, env.db, "PRE", 0, "300.00", func(s *models.ProductSKU) {
		s.PresaleFlag = true
		s.PresaleType = constants.PresaleTypeDeposit
		s.DepositAmount = models.NewMoneyFromDecimal(decimal.RequireFromString("50"))
	})
	address := createTestAddress(t, env.db, 1)

	order, err := env.orders.BuildDirect(context.Background(), BuildDirectInput{
		UserID:    1,
		AddressID: address.ID,
		SKUID:     sku.ID,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("build presale failed: %v", err)
	}
	if env.ledger.deductCount() != 0 {
		t.Fatalf("presale must not call the stock ledger, got %d deductions", env.ledger.deductCount())
	}
	if order.Status != constants.OrderStatusPresaleDepositPending || !order.PresaleFlag {
		t.Fatalf("unexpected presale status: %s", order.Status)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("600")) ||
		!order.ActualAmount.Equal(decimal.RequireFromString("100")) ||
		!order.DepositAmount.Equal(decimal.RequireFromString("100")) ||
		!order.BalanceAmount.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("unexpected presale amounts: total=%s actual=%s deposit=%s balance=%s",
			order.TotalAmount.String(), order.ActualAmount.String(), order.DepositAmount.String(), order.BalanceAmount.String())
	}
	if got := mustStock(t, env.db, sku.ID); got != 0 {
		t.Fatalf("presale stock should stay 0, got %d", got)
	}
}

func TestBuildPresaleLimitPerUser(t *testing.T) {
	env := setupOrderServiceTest(t)
	sku := createTestSKU(t, env.db, "PRE", 0, "100.00", func(s *models.ProductSKU) {
		s.PresaleFlag = true
		s.PresaleType = constants.PresaleTypeFull
		s.PresaleLimit = 2
	})
	address := createTestAddress(t, env.db, 1)
	ctx := context.Background()

	first, err := env.orders.BuildDirect(ctx, BuildDirectInput{UserID: 1, AddressID: address.ID, SKUID: sku.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("first presale build failed: %v", err)
	}
	if !first.ActualAmount.Equal(first.TotalAmount.Decimal) || !first.DepositAmount.IsZero() {
		t.Fatalf("full presale should be due in full, actual=%s deposit=%s", first.ActualAmount.String(), first.DepositAmount.String())
	}
	if _, err := env.orders.BuildDirect(ctx, BuildDirectInput{UserID: 1, AddressID: address.ID, SKUID: sku.ID, Quantity: 1}); !errors.Is(err, ErrPresaleLimitExceeded) {
		t.Fatalf("expected ErrPresaleLimitExceeded, got: %v", err)
	}
	if _, err := env.orders.CancelOrder(ctx, first.ID, 1); err != nil {
		t.Fatalf("cancel presale failed: %v", err)
	}
	if _, err := env.orders.BuildDirect(ctx, BuildDirectInput{UserID: 1, AddressID: address.ID, SKUID: sku.ID, Quantity: 1}); err != nil {
		t.Fatalf("cancelled orders should not count toward the limit: %v", err)
	}
}

func TestBuildMixedPresaleTypesConflict(t *testing.T) {
	env := setupOrderServiceTest(t)
	normal := createTestSKU(t, env.db, "N1", 5, "10.00", nil)
	deposit := createTestSKU(t, env.db, "PD", 0, "100.00", func(s *models.ProductSKU) {
		s.PresaleFlag = true
		s.PresaleType = constants.PresaleTypeDeposit
		s.DepositAmount = models.NewMoneyFromDecimal(decimal.RequireFromString("20"))
	})
	full := createTestSKU(t, env.db, "PF", 0, "100.00", func(s *models.ProductSKU) {
		s.PresaleFlag = true
		s.PresaleType = constants.PresaleTypeFull
	})
	address := createTestAddress(t, env.db, 1)
	addTestCartItem(t, env.db, 1, normal, 2)
	addTestCartItem(t, env.db, 1, deposit, 1)
	addTestCartItem(t, env.db, 1, full, 1)

	_, err := env.orders.BuildFromCart(context.Background(), BuildFromCartInput{UserID: 1, AddressID: address.ID})
	if !errors.Is(err, ErrPresaleTypeConflict) {
		t.Fatalf("expected ErrPresaleTypeConflict, got: %v", err)
	}
	if got := mustStock(t, env.db, normal.ID); got != 5 {
		t.Fatalf("normal line stock should be restored, got %d", got)
	}
}

func TestBuildMixedOrderChargesDepositPlusNormalLines(t *testing.T) {
	env := setupOrderServiceTest(t)
	normal := createTestSKU(t, env.db, "N1", 5, "10.00", nil)
	deposit := createTestSKU(t, env.db, "PD", 0, "100.00", func(s *models.ProductSKU) {
		s.PresaleFlag = true
		s.PresaleType = constants.PresaleTypeDeposit
		s.DepositAmount = models.NewMoneyFromDecimal(decimal.RequireFromString("20"))
	})
	address := createTestAddress(t, env.db, 1)
	addTestCartItem(t, env.db, 1, normal, 2)
	addTestCartItem(t, env.db, 1, deposit, 1)
	ctx := context.Background()

	order, err := env.orders.BuildFromCart(ctx, BuildFromCartInput{UserID: 1, AddressID: address.ID})
	if err != nil {
		t.Fatalf("build mixed failed: %v", err)
	}
	if !order.ActualAmount.Equal(decimal.RequireFromString("40")) || !order.BalanceAmount.Equal(decimal.RequireFromString("80")) {
		t.Fatalf("unexpected mixed amounts: actual=%s balance=%s", order.ActualAmount.String(), order.BalanceAmount.String())
	}
	if got := mustStock(t, env.db, normal.ID); got != 3 {
		t.Fatalf("normal line should deduct stock, got %d", got)
	}

	if _, err := env.orders.CancelOrder(ctx, order.ID, 1); err != nil {
		t.Fatalf("cancel mixed order failed: %v", err)
	}
	if got := mustStock(t, env.db, normal.ID); got != 5 {
		t.Fatalf("normal line stock should be restored on presale cancel, got %d", got)
	}
}

func TestBuildCompensationFailureRecordsRetry(t *testing.T) {
	env := setupOrderServiceTest(t)
	skuA := createTestSKU(t, env.db, "A1", 10, "10.00", nil)
	skuB := createTestSKU(t, env.db, "B1", 0, "10.00", nil)
	address := createTestAddress(t, env.db, 1)
	addTestCartItem(t, env.db, 1, skuA, 2)
	addTestCartItem(t, env.db, 1, skuB, 1)
	env.ledger.setFailRestore(true)
	ctx := context.Background()

	_, err := env.orders.BuildFromCart(ctx, BuildFromCartInput{UserID: 1, AddressID: address.ID})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("caller should receive the original error, got: %v", err)
	}
	if got := mustStock(t, env.db, skuA.ID); got != 8 {
		t.Fatalf("restore failed so stock stays deducted, got %d", got)
	}
	pending, err := env.compensationRepo.ListPending(10)
	if err != nil {
		t.Fatalf("list compensations failed: %v", err)
	}
	if len(pending) != 1 || pending[0].SKUID != skuA.ID || pending[0].Quantity != 2 {
		t.Fatalf("unexpected compensation rows: %+v", pending)
	}

	env.ledger.setFailRestore(false)
	if err := env.orders.RetryStockCompensation(ctx, pending[0].ID); err != nil {
		t.Fatalf("retry compensation failed: %v", err)
	}
	if err := env.orders.RetryStockCompensation(ctx, pending[0].ID); err != nil {
		t.Fatalf("second retry should be a no-op: %v", err)
	}
	if got := mustStock(t, env.db, skuA.ID); got != 10 {
		t.Fatalf("stock should be restored exactly once, got %d", got)
	}
	row, _ := env.compensationRepo.GetByID(pending[0].ID)
	if row == nil || row.Status != constants.StockCompensationStatusDone {
		t.Fatalf("compensation should be done: %+v", row)
	}
}

func TestLedgerNeverGoesNegativeUnderConcurrency(t *testing.T) {
	env := setupOrderServiceTest(t)
	sku := createTestSKU(t, env.db, "HOT", 3, "1.00", nil)
	ledger := NewSKUStockLedger(env.skuRepo)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.CheckAndDeduct(sku.ID, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientStock) {
				t.Errorf("unexpected deduct error: %v", err)
			}
		}()
	}
	wg.Wait()
	if succeeded != 3 {
		t.Fatalf("exactly 3 deductions should succeed, got %d", succeeded)
	}
	if got := mustStock(t, env.db, sku.ID); got != 0 {
		t.Fatalf("stock should be 0, got %d", got)
	}
}
