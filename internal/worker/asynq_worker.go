package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dujiao-next/orderflow/internal/logger"
	"github.com/dujiao-next/orderflow/internal/provider"
	"github.com/dujiao-next/orderflow/internal/queue"
	"github.com/dujiao-next/orderflow/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderTimeoutCancel, c.handleOrderTimeoutCancel)
	mux.HandleFunc(queue.TaskStockCompensate, c.handleStockCompensate)
	mux.HandleFunc(queue.TaskRefundQuery, c.handleRefundQuery)
}

func (c *Consumer) handleOrderTimeoutCancel(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_order_timeout_cancel_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderTimeoutCancelPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_timeout_cancel_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_timeout_cancel_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.OrderService == nil {
		logger.Warnw("worker_order_timeout_cancel_skip_order_service_nil", "order_id", payload.OrderID)
		return nil
	}
	ctx = logger.WithContext(ctx, "task", queue.TaskOrderTimeoutCancel, "order_id", payload.OrderID)
	_, err := c.OrderService.HandleOrderTimeout(ctx, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			logger.Debugw("worker_order_timeout_cancel_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrInvalidTransition):
			// 已支付或已被其他路径取消
			logger.Debugw("worker_order_timeout_cancel_skip_status_changed", "order_id", payload.OrderID, "error", err)
			return nil
		case errors.Is(err, service.ErrVersionConflict):
			logger.Warnw("worker_order_timeout_cancel_version_conflict", "order_id", payload.OrderID, "error", err)
			return err
		default:
			logger.Warnw("worker_order_timeout_cancel_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleStockCompensate(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_stock_compensate_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.StockCompensatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_stock_compensate_unmarshal_failed", "error", err)
		return err
	}
	if payload.CompensationID == 0 {
		logger.Debugw("worker_stock_compensate_skip_invalid_payload", "compensation_id", payload.CompensationID)
		return nil
	}
	if c.OrderService == nil {
		logger.Warnw("worker_stock_compensate_skip_order_service_nil", "compensation_id", payload.CompensationID)
		return nil
	}
	ctx = logger.WithContext(ctx, "task", queue.TaskStockCompensate, "compensation_id", payload.CompensationID)
	if err := c.OrderService.RetryStockCompensation(ctx, payload.CompensationID); err != nil {
		logger.Warnw("worker_stock_compensate_failed", "compensation_id", payload.CompensationID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleRefundQuery(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_refund_query_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.RefundQueryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_refund_query_unmarshal_failed", "error", err)
		return err
	}
	if payload.RefundID == 0 {
		logger.Debugw("worker_refund_query_skip_invalid_payload", "refund_id", payload.RefundID)
		return nil
	}
	if c.RefundService == nil {
		logger.Warnw("worker_refund_query_skip_refund_service_nil", "refund_id", payload.RefundID)
		return nil
	}
	ctx = logger.WithContext(ctx, "task", queue.TaskRefundQuery, "refund_id", payload.RefundID)
	record, err := c.RefundService.SyncRefund(ctx, payload.RefundID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefundNotFound):
			logger.Debugw("worker_refund_query_skip_not_found", "refund_id", payload.RefundID)
			return nil
		case errors.Is(err, service.ErrRefundPending):
			// 渠道仍在处理，交给 asynq 退避重试
			logger.Debugw("worker_refund_query_still_pending", "refund_id", payload.RefundID)
			return err
		default:
			logger.Warnw("worker_refund_query_failed", "refund_id", payload.RefundID, "error", err)
			return err
		}
	}
	logger.Debugw("worker_refund_query_done", "refund_id", payload.RefundID, "status", record.Status)
	return nil
}
