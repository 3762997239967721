package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/orderflow/internal/constants"
	"github.com/dujiao-next/orderflow/internal/logger"
	"github.com/dujiao-next/orderflow/internal/models"
	"github.com/dujiao-next/orderflow/internal/payment"
	"github.com/dujiao-next/orderflow/internal/queue"
	"github.com/dujiao-next/orderflow/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultGatewayTimeout = 10 * time.Second
	defaultQueryDelay     = time.Minute
	defaultQueryMaxRetry  = 20
	refundSettleAttempts  = 3
	refundFailReasonLimit = 500
)

// outstandingRefundStatuses 已申请但尚未结算的退款单状态
var outstandingRefundStatuses = []string{
	constants.RefundStatusPending,
	constants.RefundStatusProcessing,
}

// RefundService 退款服务：申请、处理、查询
type RefundService struct {
	orders         *OrderService
	orderRepo      repository.OrderRepository
	refundRepo     repository.RefundRepository
	gateway        payment.RefundGateway
	gatewayTimeout time.Duration
	queryDelay     time.Duration
	queryMaxRetry  int
}

// RefundOptions 渠道调用超时与异步退款查询节奏
type RefundOptions struct {
	GatewayTimeout time.Duration
	QueryDelay     time.Duration
	QueryMaxRetry  int
}

// NewRefundService 创建退款服务
func NewRefundService(orders *OrderService, orderRepo repository.OrderRepository, refundRepo repository.RefundRepository, gateway payment.RefundGateway, opts RefundOptions) *RefundService {
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = defaultGatewayTimeout
	}
	if opts.QueryDelay <= 0 {
		opts.QueryDelay = defaultQueryDelay
	}
	if opts.QueryMaxRetry <= 0 {
		opts.QueryMaxRetry = defaultQueryMaxRetry
	}
	return &RefundService{
		orders:         orders,
		orderRepo:      orderRepo,
		refundRepo:     refundRepo,
		gateway:        gateway,
		gatewayTimeout: opts.GatewayTimeout,
		queryDelay:     opts.QueryDelay,
		queryMaxRetry:  opts.QueryMaxRetry,
	}
}

// RefundLineInput 逐项退款输入
type RefundLineInput struct {
	OrderItemID uint
	Quantity    int
}

// ApplyRefundInput 退款申请输入
type ApplyRefundInput struct {
	OrderID uint
	UserID  uint
	Reason  string
	Amount  models.Money
	Lines   []RefundLineInput
}

// ProcessRefundInput 退款处理输入
type ProcessRefundInput struct {
	RefundID   uint
	OperatorID uint
}

// ApplyRefund 申请退款：校验额度，创建 pending 退款单并将订单置为 refunding；不调用支付渠道
func (s *RefundService) ApplyRefund(ctx context.Context, input ApplyRefundInput) (*models.RefundRecord, error) {
	if input.OrderID == 0 || input.UserID == 0 {
		return nil, fmt.Errorf("%w: order id and user id are required", ErrValidation)
	}
	log := logger.FromContext(ctx)
	order, err := s.orderRepo.GetByIDAndUser(input.OrderID, input.UserID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !refundableStatuses[order.Status] {
		return nil, fmt.Errorf("%w: order status %s", ErrRefundNotAllowed, order.Status)
	}

	outstanding, err := s.refundRepo.SumAmountByStatuses(order.ID, outstandingRefundStatuses)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	ceiling := order.RefundableAmount().Decimal.Sub(outstanding.Decimal)
	if ceiling.IsNegative() {
		ceiling = decimal.Zero
	}
	amount, lines, err := resolveRefundAmount(order, input, ceiling)
	if err != nil {
		return nil, err
	}

	now := s.orders.now()
	record := &models.RefundRecord{
		RefundNo:  generateRefundNo(),
		OrderID:   order.ID,
		UserID:    input.UserID,
		Reason:    strings.TrimSpace(input.Reason),
		Amount:    models.NewMoneyFromDecimal(amount),
		Lines:     lines,
		Status:    constants.RefundStatusPending,
		AppliedAt: now,
	}
	fromStatus := order.Status
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.refundRepo.WithTx(tx).Create(record); err != nil {
			return err
		}
		if order.Status == constants.OrderStatusRefunding {
			if err := s.orders.touchVersion(tx, order, nil); err != nil {
				return err
			}
		} else if err := s.orders.transitionInTx(tx, order, constants.OrderStatusRefunding, statusChange{}, now); err != nil {
			return err
		}
		orderRepo := s.orderRepo.WithTx(tx)
		for _, line := range lines {
			affected, err := orderRepo.AddItemRefund(line.OrderItemID, line.Quantity, line.RefundAmount)
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("%w: item %d", ErrOverRefund, line.OrderItemID)
			}
		}
		return nil
	})
	if err != nil {
		log.Warnw("refund_apply_failed", "order_id", order.ID, "user_id", input.UserID, "error", err)
		if errors.Is(err, ErrOverRefund) || errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	s.orders.invalidateOrderCache(ctx, order.ID)
	log.Infow("refund_applied",
		"refund_id", record.ID,
		"refund_no", record.RefundNo,
		"order_id", order.ID,
		"order_status_from", fromStatus,
		"amount", record.Amount.String(),
		"itemized", record.Itemized(),
	)
	return record, nil
}

// resolveRefundAmount 计算退款金额；逐项退款时按行计算并覆盖调用方金额
func resolveRefundAmount(order *models.Order, input ApplyRefundInput, ceiling decimal.Decimal) (decimal.Decimal, models.RefundLines, error) {
	if len(input.Lines) == 0 {
		amount := input.Amount.Decimal.Round(2)
		if !amount.IsPositive() {
			return decimal.Zero, nil, fmt.Errorf("%w: refund amount must be positive", ErrValidation)
		}
		if amount.GreaterThan(ceiling) {
			return decimal.Zero, nil, fmt.Errorf("%w: requested %s, refundable %s", ErrOverRefund, amount.StringFixed(2), ceiling.StringFixed(2))
		}
		return amount, nil, nil
	}

	itemByID := make(map[uint]*models.OrderItem, len(order.Items))
	for i := range order.Items {
		itemByID[order.Items[i].ID] = &order.Items[i]
	}
	requested := make(map[uint]int, len(input.Lines))
	orderedIDs := make([]uint, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.OrderItemID == 0 || line.Quantity <= 0 {
			return decimal.Zero, nil, fmt.Errorf("%w: invalid refund line", ErrValidation)
		}
		if _, ok := itemByID[line.OrderItemID]; !ok {
			return decimal.Zero, nil, fmt.Errorf("%w: item %d does not belong to order", ErrValidation, line.OrderItemID)
		}
		if _, seen := requested[line.OrderItemID]; !seen {
			orderedIDs = append(orderedIDs, line.OrderItemID)
		}
		requested[line.OrderItemID] += line.Quantity
	}

	total := decimal.Zero
	lines := make(models.RefundLines, 0, len(orderedIDs))
	for _, itemID := range orderedIDs {
		item := itemByID[itemID]
		quantity := requested[itemID]
		if quantity > item.RefundableQuantity() {
			return decimal.Zero, nil, fmt.Errorf("%w: item %d refundable %d, requested %d", ErrOverRefund, item.ID, item.RefundableQuantity(), quantity)
		}
		amount := itemRefundAmount(item, quantity)
		total = total.Add(amount)
		lines = append(lines, models.RefundLine{
			OrderItemID:  item.ID,
			SKUID:        item.SKUID,
			Quantity:     quantity,
			RefundAmount: models.NewMoneyFromDecimal(amount),
		})
	}
	if total.GreaterThan(ceiling) {
		return decimal.Zero, nil, fmt.Errorf("%w: requested %s, refundable %s", ErrOverRefund, total.StringFixed(2), ceiling.StringFixed(2))
	}
	return total, lines, nil
}

// itemRefundAmount 按数量比例折算小计；退完最后一件时取剩余金额，避免舍入误差累计
func itemRefundAmount(item *models.OrderItem, quantity int) decimal.Decimal {
	if item.Quantity <= 0 {
		return decimal.Zero
	}
	if quantity >= item.RefundableQuantity() {
		remaining := item.Subtotal.Decimal.Sub(item.RefundedAmount.Decimal)
		if remaining.IsNegative() {
			return decimal.Zero
		}
		return remaining.Round(2)
	}
	return item.Subtotal.Decimal.
		Mul(decimal.NewFromInt(int64(quantity))).
		Div(decimal.NewFromInt(int64(item.Quantity))).
		Round(2)
}

// ProcessRefund 处理退款：调用支付渠道，渠道确认成功后结算订单；渠道受理中时保持 processing 并投递查询任务，
// 失败时订单保持 refunding 等待人工处理
func (s *RefundService) ProcessRefund(ctx context.Context, input ProcessRefundInput) (*models.RefundRecord, error) {
	if input.RefundID == 0 {
		return nil, fmt.Errorf("%w: refund id is required", ErrValidation)
	}
	log := logger.FromContext(ctx).With("refund_id", input.RefundID, "operator_id", input.OperatorID)
	record, err := s.refundRepo.GetByID(input.RefundID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if record == nil {
		return nil, ErrRefundNotFound
	}
	if record.Status != constants.RefundStatusPending {
		return nil, fmt.Errorf("%w: refund is %s", ErrInvalidRefundState, record.Status)
	}
	order, err := s.orderRepo.GetByID(record.OrderID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	// 渠道未配置时退款单保持 pending，配置恢复后可直接重试
	if s.gateway == nil {
		log.Warnw("refund_gateway_unavailable", "refund_no", record.RefundNo, "order_id", order.ID)
		return nil, ErrGatewayUnavailable
	}

	now := s.orders.now()
	affected, err := s.refundRepo.TransitionStatus(record.ID, constants.RefundStatusPending, map[string]interface{}{
		"status":       constants.RefundStatusProcessing,
		"operator_id":  input.OperatorID,
		"processed_at": now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: refund already taken", ErrInvalidRefundState)
	}

	result, gatewayErr := s.callGateway(ctx, order, record)
	if gatewayErr != nil {
		s.markFailed(ctx, record, gatewayErr.Error())
		log.Errorw("refund_gateway_failed",
			"refund_no", record.RefundNo,
			"order_id", order.ID,
			"order_status", order.Status,
			"error", gatewayErr,
		)
		return nil, fmt.Errorf("%w: %w", ErrGatewayFailure, gatewayErr)
	}

	switch result.State {
	case payment.RefundSucceeded:
		if err := s.settle(ctx, record, result); err != nil {
			return nil, err
		}
		return s.reloadRecord(record), nil
	case payment.RefundFailed:
		s.markFailed(ctx, record, "provider status "+result.ProviderStatus)
		log.Warnw("refund_provider_rejected", "refund_no", record.RefundNo, "provider_status", result.ProviderStatus)
		return nil, fmt.Errorf("%w: provider status %s", ErrGatewayFailure, result.ProviderStatus)
	default:
		s.awaitProvider(ctx, record, result)
		return s.reloadRecord(record), nil
	}
}

// SyncRefund 查询渠道结果推进 processing 退款单；渠道仍在处理时返回 ErrRefundPending 供任务重试
func (s *RefundService) SyncRefund(ctx context.Context, refundID uint) (*models.RefundRecord, error) {
	if refundID == 0 {
		return nil, fmt.Errorf("%w: refund id is required", ErrValidation)
	}
	log := logger.FromContext(ctx).With("refund_id", refundID)
	record, err := s.refundRepo.GetByID(refundID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if record == nil {
		return nil, ErrRefundNotFound
	}
	if record.Status != constants.RefundStatusProcessing {
		return record, nil
	}
	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}

	gatewayCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.gatewayTimeout)
	defer cancel()
	result, err := s.gateway.QueryRefund(gatewayCtx, record.RefundNo)
	if err != nil {
		log.Warnw("refund_query_failed", "refund_no", record.RefundNo, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGatewayFailure, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty query result", ErrGatewayFailure)
	}

	switch result.State {
	case payment.RefundSucceeded:
		if err := s.settle(ctx, record, result); err != nil {
			return nil, err
		}
		return s.reloadRecord(record), nil
	case payment.RefundFailed:
		s.markFailed(ctx, record, "provider status "+result.ProviderStatus)
		log.Warnw("refund_provider_closed", "refund_no", record.RefundNo, "provider_status", result.ProviderStatus)
		return s.reloadRecord(record), nil
	default:
		return nil, fmt.Errorf("%w: refund %s provider status %s", ErrRefundPending, record.RefundNo, result.ProviderStatus)
	}
}

// awaitProvider 渠道已受理但未完成：记录渠道退款号并投递延迟查询
func (s *RefundService) awaitProvider(ctx context.Context, record *models.RefundRecord, result *payment.RefundResult) {
	log := logger.FromContext(ctx).With("refund_id", record.ID, "refund_no", record.RefundNo)
	if result.ProviderRefundID != "" {
		if _, err := s.refundRepo.TransitionStatus(record.ID, constants.RefundStatusProcessing, map[string]interface{}{
			"provider_refund_id": result.ProviderRefundID,
		}); err != nil {
			log.Errorw("refund_store_provider_id_failed", "error", err)
		}
	}
	if err := s.orders.queueClient.EnqueueRefundQuery(queue.RefundQueryPayload{RefundID: record.ID}, s.queryDelay, s.queryMaxRetry); err != nil {
		log.Errorw("refund_enqueue_query_failed", "error", err)
	}
	log.Infow("refund_pending_provider",
		"provider_refund_id", result.ProviderRefundID,
		"provider_status", result.ProviderStatus,
		"query_delay", s.queryDelay,
	)
}

// settle 结算退款单与订单，版本冲突时有限次重试
func (s *RefundService) settle(ctx context.Context, record *models.RefundRecord, result *payment.RefundResult) error {
	log := logger.FromContext(ctx).With("refund_id", record.ID)
	var err error
	for attempt := 1; attempt <= refundSettleAttempts; attempt++ {
		err = models.DB.Transaction(func(tx *gorm.DB) error {
			return s.settleInTx(tx, record, result, s.orders.now())
		})
		if err == nil || !errors.Is(err, ErrVersionConflict) {
			break
		}
		log.Warnw("refund_settle_version_conflict", "attempt", attempt, "error", err)
	}
	if err != nil {
		log.Errorw("refund_settle_failed",
			"partial_failure", true,
			"refund_no", record.RefundNo,
			"provider_refund_id", result.ProviderRefundID,
			"order_id", record.OrderID,
			"error", err,
		)
		return fmt.Errorf("%w: refund %s accepted by gateway but settlement failed: %v", ErrPartialFailure, record.RefundNo, err)
	}
	s.orders.invalidateOrderCache(ctx, record.OrderID)
	log.Infow("refund_succeeded",
		"refund_no", record.RefundNo,
		"provider_refund_id", result.ProviderRefundID,
		"order_id", record.OrderID,
		"amount", record.Amount.String(),
	)
	return nil
}

func (s *RefundService) markFailed(ctx context.Context, record *models.RefundRecord, reason string) {
	if _, err := s.refundRepo.TransitionStatus(record.ID, constants.RefundStatusProcessing, map[string]interface{}{
		"status":      constants.RefundStatusFailed,
		"fail_reason": truncateRunes(reason, refundFailReasonLimit),
	}); err != nil {
		logger.FromContext(ctx).Errorw("refund_mark_failed_error", "refund_id", record.ID, "error", err)
	}
}

// settleInTx 退款单置为 success，并经状态机推进订单（含库存回补）
func (s *RefundService) settleInTx(tx *gorm.DB, record *models.RefundRecord, result *payment.RefundResult, now time.Time) error {
	affected, err := s.refundRepo.WithTx(tx).TransitionStatus(record.ID, constants.RefundStatusProcessing, map[string]interface{}{
		"status":             constants.RefundStatusSuccess,
		"provider_refund_id": result.ProviderRefundID,
		"succeeded_at":       now,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: refund %d left processing", ErrInvalidRefundState, record.ID)
	}

	order, err := s.orderRepo.WithTx(tx).GetByID(record.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	refunded := order.RefundedAmount.Decimal.Add(record.Amount.Decimal)
	target := constants.OrderStatusPartialRefunded
	if refunded.GreaterThanOrEqual(order.PaidAmount.Decimal) {
		target = constants.OrderStatusRefunded
	}
	extra := map[string]interface{}{
		"refunded_amount": models.NewMoneyFromDecimal(refunded),
	}

	if order.Status == target {
		extra["refund_time"] = now
		if err := s.orders.touchVersion(tx, order, extra); err != nil {
			return err
		}
		return s.orders.restoreStockForStatus(tx, order, target)
	}
	return s.orders.transitionInTx(tx, order, target, statusChange{Extra: extra}, now)
}

func (s *RefundService) callGateway(ctx context.Context, order *models.Order, record *models.RefundRecord) (*payment.RefundResult, error) {
	gatewayCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.gatewayTimeout)
	defer cancel()
	result, err := s.gateway.Refund(gatewayCtx, payment.RefundRequest{
		OrderNo:       order.OrderNo,
		TransactionNo: order.TransactionNo,
		RefundNo:      record.RefundNo,
		AmountMinor:   record.Amount.MinorUnits(),
		TotalMinor:    order.PaidAmount.MinorUnits(),
		Currency:      order.Currency,
		Reason:        record.Reason,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("empty gateway result")
	}
	return result, nil
}

// CloseRefund 关闭 pending/failed 退款单并回退逐项占用；订单状态留给人工处理
func (s *RefundService) CloseRefund(ctx context.Context, refundID uint, operatorID uint) (*models.RefundRecord, error) {
	if refundID == 0 {
		return nil, fmt.Errorf("%w: refund id is required", ErrValidation)
	}
	record, err := s.refundRepo.GetByID(refundID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if record == nil {
		return nil, ErrRefundNotFound
	}
	if record.Status != constants.RefundStatusPending && record.Status != constants.RefundStatusFailed {
		return nil, fmt.Errorf("%w: refund is %s", ErrInvalidRefundState, record.Status)
	}

	now := s.orders.now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		affected, err := s.refundRepo.WithTx(tx).TransitionStatus(record.ID, record.Status, map[string]interface{}{
			"status":       constants.RefundStatusClosed,
			"operator_id":  operatorID,
			"processed_at": now,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: refund changed concurrently", ErrInvalidRefundState)
		}
		if !record.Itemized() {
			return nil
		}
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByID(record.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if err := s.orders.touchVersion(tx, order, nil); err != nil {
			return err
		}
		for _, line := range record.Lines {
			affected, err := orderRepo.RevertItemRefund(line.OrderItemID, line.Quantity, line.RefundAmount)
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("%w: item %d bookkeeping changed", ErrVersionConflict, line.OrderItemID)
			}
		}
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Warnw("refund_close_failed", "refund_id", refundID, "operator_id", operatorID, "error", err)
		return nil, err
	}
	s.orders.invalidateOrderCache(ctx, record.OrderID)
	logger.FromContext(ctx).Infow("refund_closed",
		"refund_id", record.ID,
		"refund_no", record.RefundNo,
		"order_id", record.OrderID,
		"operator_id", operatorID,
	)
	return s.reloadRecord(record), nil
}

// QueryRefundStatus 用户查询退款单
func (s *RefundService) QueryRefundStatus(ctx context.Context, refundID uint, userID uint) (*models.RefundRecord, error) {
	if refundID == 0 || userID == 0 {
		return nil, fmt.Errorf("%w: refund id and user id are required", ErrValidation)
	}
	record, err := s.refundRepo.GetByIDAndUser(refundID, userID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if record == nil {
		return nil, ErrRefundNotFound
	}
	return record, nil
}

// ListRefundsForOrder 订单下的退款单列表
func (s *RefundService) ListRefundsForOrder(ctx context.Context, filter repository.RefundListFilter) ([]models.RefundRecord, int64, error) {
	if filter.OrderID == 0 {
		return nil, 0, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	records, total, err := s.refundRepo.List(filter)
	if err != nil {
		return nil, 0, ErrOrderFetchFailed
	}
	return records, total, nil
}

func (s *RefundService) reloadRecord(record *models.RefundRecord) *models.RefundRecord {
	fresh, err := s.refundRepo.GetByID(record.ID)
	if err != nil || fresh == nil {
		return record
	}
	return fresh
}

func truncateRunes(raw string, limit int) string {
	runes := []rune(raw)
	if limit <= 0 || len(runes) <= limit {
		return raw
	}
	return string(runes[:limit])
}
