package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	keyOrderBuildIdempotency = "idem:order:build:%d:%s"
	keyOrderDetail           = "order:detail:%d"
	idempotencyPending       = "pending"
)

// OrderBuildClaim 下单幂等占位结果
type OrderBuildClaim struct {
	Acquired bool // 本次请求获得执行权
	OrderID  uint // 已完成的历史请求对应订单
}

// ClaimOrderBuild 以 SETNX 占用下单幂等键
func ClaimOrderBuild(ctx context.Context, userID uint, idempotencyKey string, ttl time.Duration) (OrderBuildClaim, error) {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" || !Enabled() {
		return OrderBuildClaim{Acquired: true}, nil
	}
	key := fmt.Sprintf(keyOrderBuildIdempotency, userID, idempotencyKey)
	ok, err := SetNX(ctx, key, idempotencyPending, ttl)
	if err != nil {
		return OrderBuildClaim{}, err
	}
	if ok {
		return OrderBuildClaim{Acquired: true}, nil
	}
	val, err := GetString(ctx, key)
	if err != nil {
		return OrderBuildClaim{}, err
	}
	if val == "" || val == idempotencyPending {
		return OrderBuildClaim{}, nil
	}
	orderID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return OrderBuildClaim{}, nil
	}
	return OrderBuildClaim{OrderID: uint(orderID)}, nil
}

// CompleteOrderBuild 记录幂等键对应的订单
func CompleteOrderBuild(ctx context.Context, userID uint, idempotencyKey string, orderID uint, ttl time.Duration) error {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		return nil
	}
	key := fmt.Sprintf(keyOrderBuildIdempotency, userID, idempotencyKey)
	return SetString(ctx, key, strconv.FormatUint(uint64(orderID), 10), ttl)
}

// ReleaseOrderBuild 下单失败后释放幂等键，允许重试
func ReleaseOrderBuild(ctx context.Context, userID uint, idempotencyKey string) error {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		return nil
	}
	return Del(ctx, fmt.Sprintf(keyOrderBuildIdempotency, userID, idempotencyKey))
}

// GetOrderDetail 读取订单详情缓存
func GetOrderDetail(ctx context.Context, orderID uint, dest interface{}) (bool, error) {
	return GetJSON(ctx, fmt.Sprintf(keyOrderDetail, orderID), dest)
}

// SetOrderDetail 写入订单详情缓存
func SetOrderDetail(ctx context.Context, orderID uint, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return SetJSON(ctx, fmt.Sprintf(keyOrderDetail, orderID), value, ttl)
}

// InvalidateOrderDetail 删除订单详情缓存
func InvalidateOrderDetail(ctx context.Context, orderID uint) error {
	return Del(ctx, fmt.Sprintf(keyOrderDetail, orderID))
}
