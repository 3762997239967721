package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/orderflow/internal/cache"
	"github.com/dujiao-next/orderflow/internal/constants"
	"github.com/dujiao-next/orderflow/internal/logger"
	"github.com/dujiao-next/orderflow/internal/models"
	"github.com/dujiao-next/orderflow/internal/queue"

	"gorm.io/gorm"
)

// UpdateStatusInput 订单状态变更输入
type UpdateStatusInput struct {
	OrderID         uint
	Target          string
	ExpectedVersion *int64
	PayMethod       string
	TransactionNo   string
	LogisticsNo     string
	CancelReason    string
	OperatorID      uint
}

// statusChange 状态变更携带的附加字段
type statusChange struct {
	PayMethod     string
	TransactionNo string
	LogisticsNo   string
	CancelReason  string
	Extra         map[string]interface{}
}

// UpdateStatus 校验流转表后以版本号条件更新订单状态
func (s *OrderService) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	target := strings.TrimSpace(input.Target)
	if input.OrderID == 0 || target == "" {
		return nil, fmt.Errorf("%w: order id and target status are required", ErrValidation)
	}
	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if input.ExpectedVersion != nil && *input.ExpectedVersion != order.Version {
		return nil, fmt.Errorf("%w: expected version %d, current %d", ErrVersionConflict, *input.ExpectedVersion, order.Version)
	}
	if input.OperatorID != 0 {
		ctx = logger.WithContext(ctx, "operator_id", input.OperatorID)
	}
	return s.applyTransition(ctx, order, target, statusChange{
		PayMethod:     input.PayMethod,
		TransactionNo: input.TransactionNo,
		LogisticsNo:   input.LogisticsNo,
		CancelReason:  input.CancelReason,
	})
}

// CancelOrder 用户取消未支付订单
func (s *OrderService) CancelOrder(ctx context.Context, orderID uint, userID uint) (*models.Order, error) {
	if orderID == 0 || userID == 0 {
		return nil, fmt.Errorf("%w: order id and user id are required", ErrValidation)
	}
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	target, ok := cancelTargetFor(order.Status)
	if !ok {
		return nil, fmt.Errorf("%w: cannot cancel order in %s", ErrInvalidTransition, order.Status)
	}
	return s.applyTransition(ctx, order, target, statusChange{CancelReason: constants.CancelReasonUser})
}

// CancelExpiredOrder 已过支付期限的未支付订单置为超时取消；未到期或已离开待支付状态时原样返回
func (s *OrderService) CancelExpiredOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	if orderID == 0 {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	target, ok := cancelTargetFor(order.Status)
	if !ok || order.ExpiresAt == nil || order.ExpiresAt.After(s.now()) {
		return order, nil
	}
	return s.applyTransition(ctx, order, target, statusChange{CancelReason: constants.CancelReasonTimeout})
}

// HandleOrderTimeout 超时任务入口；任务早于到期时间触发时以下一个 Attempt 重新投递
func (s *OrderService) HandleOrderTimeout(ctx context.Context, payload queue.OrderTimeoutCancelPayload) (*models.Order, error) {
	order, err := s.CancelExpiredOrder(ctx, payload.OrderID)
	if err != nil {
		return nil, err
	}
	if _, unpaid := cancelTargetFor(order.Status); !unpaid || order.ExpiresAt == nil || !order.ExpiresAt.After(s.now()) {
		return order, nil
	}
	logger.FromContext(ctx).Debugw("order_timeout_fired_early", "order_id", order.ID, "attempt", payload.Attempt, "expires_at", order.ExpiresAt)
	if err := s.enqueueTimeoutCancel(ctx, order, payload.Attempt+1); err != nil {
		return order, err
	}
	return order, nil
}

// SweepExpiredOrders 批量取消已过期未支付订单，返回成功取消数量；单条失败记录日志后继续
func (s *OrderService) SweepExpiredOrders(ctx context.Context, limit int) (int, error) {
	statuses := []string{constants.OrderStatusPendingPayment, constants.OrderStatusPresaleDepositPending}
	ids, err := s.orderRepo.ListExpiredIDs(statuses, s.now(), limit)
	if err != nil {
		return 0, ErrOrderFetchFailed
	}
	log := logger.FromContext(ctx)
	cancelled := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return cancelled, err
		}
		order, err := s.CancelExpiredOrder(ctx, id)
		switch {
		case err == nil:
			if order != nil && isTerminalStatus(order.Status) {
				cancelled++
			}
		case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrInvalidTransition):
			log.Debugw("order_expiry_sweep_skipped", "order_id", id, "error", err)
		default:
			log.Warnw("order_expiry_sweep_failed", "order_id", id, "error", err)
		}
	}
	return cancelled, nil
}

// applyTransition 在事务内执行状态变更并刷新缓存
func (s *OrderService) applyTransition(ctx context.Context, order *models.Order, target string, change statusChange) (*models.Order, error) {
	log := logger.FromContext(ctx)
	from := order.Status
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		return s.transitionInTx(tx, order, target, change, s.now())
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrInvalidTransition) {
			log.Warnw("order_status_update_rejected",
				"order_id", order.ID,
				"from", from,
				"to", target,
				"error", err,
			)
		} else {
			log.Errorw("order_status_update_failed",
				"order_id", order.ID,
				"from", from,
				"to", target,
				"error", err,
			)
		}
		return nil, err
	}
	s.invalidateOrderCache(ctx, order.ID)
	log.Infow("order_status_updated",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"from", from,
		"to", target,
		"version", order.Version,
	)
	return s.reloadOrder(order)
}

// transitionInTx 流转校验、版本条件更新与库存回补，必须在事务内调用
func (s *OrderService) transitionInTx(tx *gorm.DB, order *models.Order, target string, change statusChange, now time.Time) error {
	if !isTransitionAllowed(order.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	}
	updates, err := s.transitionUpdates(tx, order, target, change, now)
	if err != nil {
		return err
	}
	for key, value := range change.Extra {
		updates[key] = value
	}
	affected, err := s.orderRepo.WithTx(tx).UpdateWithVersion(order.ID, order.Version, updates)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: order %d version %d", ErrVersionConflict, order.ID, order.Version)
	}
	if err := s.restoreStockForStatus(tx, order, target); err != nil {
		return err
	}
	order.Status = target
	order.Version++
	return nil
}

// touchVersion 不改状态的版本号条件更新（金额或明细变化）
func (s *OrderService) touchVersion(tx *gorm.DB, order *models.Order, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = s.now()
	affected, err := s.orderRepo.WithTx(tx).UpdateWithVersion(order.ID, order.Version, updates)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: order %d version %d", ErrVersionConflict, order.ID, order.Version)
	}
	order.Version++
	return nil
}

func (s *OrderService) transitionUpdates(tx *gorm.DB, order *models.Order, target string, change statusChange, now time.Time) (map[string]interface{}, error) {
	updates := map[string]interface{}{
		"status":     target,
		"updated_at": now,
	}
	setIfPresent := func(column, value string) {
		if value = strings.TrimSpace(value); value != "" {
			updates[column] = value
		}
	}
	switch target {
	case constants.OrderStatusPaid:
		updates["pay_time"] = now
		updates["paid_amount"] = order.ActualAmount
		setIfPresent("pay_method", change.PayMethod)
		setIfPresent("transaction_no", change.TransactionNo)
	case constants.OrderStatusShipping:
		if order.Status == constants.OrderStatusPresaleDepositPaid && order.PresaleType != constants.PresaleTypeFull {
			return nil, fmt.Errorf("%w: deposit presale must pay balance before shipping", ErrInvalidTransition)
		}
		updates["ship_time"] = now
		setIfPresent("logistics_no", change.LogisticsNo)
	case constants.OrderStatusSigned:
		updates["sign_time"] = now
	case constants.OrderStatusCancelled, constants.OrderStatusPresaleCancelled:
		updates["cancel_time"] = now
		reason := strings.TrimSpace(change.CancelReason)
		if reason == "" {
			reason = constants.CancelReasonAdmin
		}
		updates["cancel_reason"] = reason
	case constants.OrderStatusRefunded, constants.OrderStatusPartialRefunded:
		updates["refund_time"] = now
	case constants.OrderStatusPresaleDepositPaid:
		updates["pay_time"] = now
		updates["paid_amount"] = order.ActualAmount
		setIfPresent("pay_method", change.PayMethod)
		setIfPresent("transaction_no", change.TransactionNo)
	case constants.OrderStatusPresaleBalancePending:
		if order.PresaleType == constants.PresaleTypeFull {
			return nil, fmt.Errorf("%w: full presale has no balance stage", ErrInvalidTransition)
		}
		start, end, err := s.resolveBalanceWindow(tx, order, now)
		if err != nil {
			return nil, err
		}
		if now.Before(start) || now.After(end) {
			return nil, fmt.Errorf("%w: window %s ~ %s", ErrBalanceWindowClosed, start.Format(time.RFC3339), end.Format(time.RFC3339))
		}
		updates["balance_start_time"] = start
		updates["balance_end_time"] = end
	case constants.OrderStatusPresaleBalancePaid:
		if order.BalanceEndTime != nil && now.After(*order.BalanceEndTime) {
			return nil, fmt.Errorf("%w: balance deadline passed", ErrBalanceWindowClosed)
		}
		updates["paid_amount"] = order.TotalAmount
		setIfPresent("transaction_no", change.TransactionNo)
	}
	return updates, nil
}

// resolveBalanceWindow 取首个预售 SKU 配置的尾款窗口，未配置时从当前时间起算
func (s *OrderService) resolveBalanceWindow(tx *gorm.DB, order *models.Order, now time.Time) (time.Time, time.Time, error) {
	start := now
	end := now.Add(s.options.PresaleBalanceWindow)
	for _, item := range order.Items {
		if !item.PresaleFlag {
			continue
		}
		sku, err := s.skuRepo.WithTx(tx).GetByID(item.SKUID)
		if err != nil {
			return start, end, fmt.Errorf("%w: load presale sku: %v", ErrOrderUpdateFailed, err)
		}
		if sku == nil {
			break
		}
		if sku.BalanceStartAt != nil {
			start = *sku.BalanceStartAt
		}
		if sku.BalanceEndAt != nil {
			end = *sku.BalanceEndAt
		} else if sku.BalanceStartAt != nil {
			end = start.Add(s.options.PresaleBalanceWindow)
		}
		break
	}
	return start, end, nil
}

// restoreStockForStatus 进入取消、退款或部分退款状态时回补全部非预售订单项；已回补数量保证不重复
func (s *OrderService) restoreStockForStatus(tx *gorm.DB, order *models.Order, target string) error {
	if !releasesAllStock(target) {
		return nil
	}
	items, err := s.orderRepo.WithTx(tx).ListItems(order.ID)
	if err != nil {
		return fmt.Errorf("%w: load items: %v", ErrOrderUpdateFailed, err)
	}
	for i := range items {
		if err := s.restoreItemStock(tx, &items[i], restoreTarget(&items[i])); err != nil {
			return err
		}
	}
	return nil
}

// restoreItemStock 将订单项已回补数量推进到 target，差额回补到库存
func (s *OrderService) restoreItemStock(tx *gorm.DB, item *models.OrderItem, target int) error {
	if item == nil || item.PresaleFlag || target <= item.StockRestoredQuantity {
		return nil
	}
	delta := target - item.StockRestoredQuantity
	affected, err := s.orderRepo.WithTx(tx).MarkItemStockRestored(item.ID, item.StockRestoredQuantity, target)
	if err != nil {
		return fmt.Errorf("%w: mark restored: %v", ErrOrderUpdateFailed, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: item %d restored concurrently", ErrVersionConflict, item.ID)
	}
	if err := s.ledger.WithTx(tx).Restore(item.SKUID, delta); err != nil {
		return err
	}
	item.StockRestoredQuantity = target
	return nil
}

func (s *OrderService) invalidateOrderCache(ctx context.Context, orderID uint) {
	if err := cache.InvalidateOrderDetail(ctx, orderID); err != nil {
		logger.FromContext(ctx).Warnw("order_cache_invalidate_failed", "order_id", orderID, "error", err)
	}
}

func (s *OrderService) reloadOrder(order *models.Order) (*models.Order, error) {
	full, err := s.orderRepo.GetByID(order.ID)
	if err != nil || full == nil {
		return order, nil
	}
	return full, nil
}
