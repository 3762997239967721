package service

import (
	"context"
	"fmt"

	"github.com/dujiao-next/orderflow/internal/cache"
	"github.com/dujiao-next/orderflow/internal/constants"
	"github.com/dujiao-next/orderflow/internal/logger"
	"github.com/dujiao-next/orderflow/internal/models"
	"github.com/dujiao-next/orderflow/internal/repository"
)

// ensureOrderCancelledIfExpired 读取时懒同步过期未支付订单
func (s *OrderService) ensureOrderCancelledIfExpired(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order == nil || order.ExpiresAt == nil {
		return order, nil
	}
	target, ok := cancelTargetFor(order.Status)
	if !ok || order.ExpiresAt.After(s.now()) {
		return order, nil
	}
	return s.applyTransition(ctx, order, target, statusChange{CancelReason: constants.CancelReasonTimeout})
}

// GetOrder 获取用户订单详情（读缓存）
func (s *OrderService) GetOrder(ctx context.Context, orderID uint, userID uint) (*models.Order, error) {
	if orderID == 0 || userID == 0 {
		return nil, fmt.Errorf("%w: order id and user id are required", ErrValidation)
	}
	log := logger.FromContext(ctx)

	var cached models.Order
	hit, err := cache.GetOrderDetail(ctx, orderID, &cached)
	if err != nil {
		log.Warnw("order_cache_read_failed", "order_id", orderID, "error", err)
	}
	if hit && err == nil {
		if cached.UserID != userID {
			return nil, ErrOrderNotFound
		}
		if _, expirable := cancelTargetFor(cached.Status); !expirable {
			return &cached, nil
		}
	}

	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	order, err = s.ensureOrderCancelledIfExpired(ctx, order)
	if err != nil {
		return nil, err
	}
	if err := cache.SetOrderDetail(ctx, order.ID, order, s.options.CacheTTL); err != nil {
		log.Warnw("order_cache_write_failed", "order_id", order.ID, "error", err)
	}
	return order, nil
}

// GetOrderForAdmin 管理端获取订单详情
func (s *OrderService) GetOrderForAdmin(ctx context.Context, orderID uint) (*models.Order, error) {
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
	return s.ensureOrderCancelledIfExpired(ctx, order)
}

// ListOrdersForUser 用户订单分页列表
func (s *OrderService) ListOrdersForUser(ctx context.Context, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if filter.UserID == 0 {
		return nil, 0, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	orders, total, err := s.orderRepo.ListByUser(filter)
	if err != nil {
		return nil, 0, ErrOrderFetchFailed
	}
	return s.ensureOrdersCancelledIfExpired(ctx, orders), total, nil
}

// ListOrdersForAdmin 管理端订单分页列表
func (s *OrderService) ListOrdersForAdmin(ctx context.Context, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	orders, total, err := s.orderRepo.ListAdmin(filter)
	if err != nil {
		return nil, 0, ErrOrderFetchFailed
	}
	return s.ensureOrdersCancelledIfExpired(ctx, orders), total, nil
}

// ensureOrdersCancelledIfExpired 批量懒同步，单条失败仅记录日志
func (s *OrderService) ensureOrdersCancelledIfExpired(ctx context.Context, orders []models.Order) []models.Order {
	for i := range orders {
		updated, err := s.ensureOrderCancelledIfExpired(ctx, &orders[i])
		if err != nil {
			logger.FromContext(ctx).Warnw("order_lazy_cancel_failed", "order_id", orders[i].ID, "error", err)
			continue
		}
		if updated != nil {
			orders[i] = *updated
		}
	}
	return orders
}
