package constants

// 订单状态常量（普通流程）
const (
	OrderStatusPendingPayment  = "pending_payment"
	OrderStatusPaid            = "paid"
	OrderStatusShipping        = "shipping"
	OrderStatusSigned          = "signed"
	OrderStatusCancelled       = "cancelled"
	OrderStatusRefunding       = "refunding"
	OrderStatusPartialRefunded = "partial_refunded"
	OrderStatusRefunded        = "refunded"
)

// 订单状态常量（预售流程）
const (
	OrderStatusPresaleDepositPending = "presale_deposit_pending"
	OrderStatusPresaleDepositPaid    = "presale_deposit_paid"
	OrderStatusPresaleBalancePending = "presale_balance_pending"
	OrderStatusPresaleBalancePaid    = "presale_balance_paid"
	OrderStatusPresaleCancelled      = "presale_cancelled"
)

// 预售类型常量
const (
	PresaleTypeDeposit = "deposit"
	PresaleTypeFull    = "full"
)

// 退款单状态常量
const (
	RefundStatusPending    = "pending"
	RefundStatusProcessing = "processing"
	RefundStatusSuccess    = "success"
	RefundStatusFailed     = "failed"
	RefundStatusClosed     = "closed"
)

// 库存补偿状态常量
const (
	StockCompensationStatusPending = "pending"
	StockCompensationStatusDone    = "done"
)

// 库存补偿来源常量
const (
	StockCompensationSourceBuild  = "order_build"
	StockCompensationSourceWorker = "worker_retry"
)

// 订单取消原因常量
const (
	CancelReasonUser    = "user_cancel"
	CancelReasonTimeout = "payment_timeout"
	CancelReasonAdmin   = "admin_cancel"
)

// 队列常量
const (
	QueueDefault           = "default"
	QueueCritical          = "critical"
	TaskOrderTimeoutCancel = "order:timeout_cancel"
	TaskStockCompensate    = "stock:compensate"
	TaskRefundQuery        = "refund:query"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "of"
)

// 币种常量
const (
	SiteCurrencyDefault = "CNY"
)
