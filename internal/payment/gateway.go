package payment

import (
	"context"
	"errors"
)

// ErrRefundRejected 渠道明确拒绝退款
var ErrRefundRejected = errors.New("refund rejected by provider")

// RefundState 渠道退款结果归一化状态
type RefundState string

const (
	RefundSucceeded RefundState = "succeeded" // 资金已原路退回
	RefundPending   RefundState = "pending"   // 渠道已受理，需稍后查询
	RefundFailed    RefundState = "failed"    // 渠道关闭或退款异常
)

// RefundRequest 渠道退款请求，金额单位为分
type RefundRequest struct {
	OrderNo       string
	TransactionNo string
	RefundNo      string
	AmountMinor   int64
	TotalMinor    int64
	Currency      string
	Reason        string
}

// RefundResult 渠道退款结果；ProviderStatus 为渠道原始状态
type RefundResult struct {
	ProviderRefundID string
	State            RefundState
	ProviderStatus   string
	Raw              map[string]interface{}
}

// RefundGateway 外部支付渠道退款接口，调用方负责设置超时
type RefundGateway interface {
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	// QueryRefund 按商户退款单号查询退款结果
	QueryRefund(ctx context.Context, refundNo string) (*RefundResult, error)
}
