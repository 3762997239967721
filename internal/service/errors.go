package service

import "errors"

// 通用错误
var (
	ErrValidation       = errors.New("validation failed")
	ErrDuplicateRequest = errors.New("duplicate request in progress")
)

// 资源不存在
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrProductSKUNotFound = errors.New("sku not found")
	ErrAddressNotFound    = errors.New("address not found")
	ErrRefundNotFound     = errors.New("refund record not found")
)

// 下单相关错误
var (
	ErrEmptyCart            = errors.New("no selected cart lines")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrSkuUnavailable       = errors.New("sku unavailable")
	ErrPresaleLimitExceeded = errors.New("presale purchase limit exceeded")
	ErrPresaleTypeConflict  = errors.New("conflicting presale types in one order")
	ErrOrderCreateFailed    = errors.New("order create failed")
)

// 状态机相关错误
var (
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrVersionConflict     = errors.New("order version conflict")
	ErrBalanceWindowClosed = errors.New("presale balance window not open")
	ErrOrderUpdateFailed   = errors.New("order update failed")
	ErrOrderFetchFailed    = errors.New("order fetch failed")
)

// 退款相关错误
var (
	ErrRefundNotAllowed   = errors.New("refund not allowed")
	ErrOverRefund         = errors.New("refund exceeds refundable amount")
	ErrInvalidRefundState = errors.New("invalid refund state")
	ErrGatewayFailure     = errors.New("payment gateway failure")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrRefundPending      = errors.New("refund pending at provider")
)

// ErrPartialFailure 补偿回滚本身失败（库存或账目可能泄漏）
var ErrPartialFailure = errors.New("compensation partially failed")
