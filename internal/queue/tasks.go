package queue

import (
	"encoding/json"

	"github.com/dujiao-next/orderflow/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderTimeoutCancel 超时取消任务
	TaskOrderTimeoutCancel = constants.TaskOrderTimeoutCancel
	// TaskStockCompensate 库存补偿重试任务
	TaskStockCompensate = constants.TaskStockCompensate
	// TaskRefundQuery 渠道受理中退款的结果查询任务
	TaskRefundQuery = constants.TaskRefundQuery
)

// OrderTimeoutCancelPayload 超时取消任务载荷
type OrderTimeoutCancelPayload struct {
	OrderID uint `json:"order_id"`
	// Attempt 提前触发后重新投递的序号，区分任务 ID
	Attempt int `json:"attempt,omitempty"`
}

// StockCompensatePayload 库存补偿任务载荷
type StockCompensatePayload struct {
	CompensationID uint `json:"compensation_id"`
}

// RefundQueryPayload 退款结果查询任务载荷
type RefundQueryPayload struct {
	RefundID uint `json:"refund_id"`
}

// NewOrderTimeoutCancelTask 创建超时取消任务
func NewOrderTimeoutCancelTask(payload OrderTimeoutCancelPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderTimeoutCancel, body), nil
}

// NewStockCompensateTask 创建库存补偿任务
func NewStockCompensateTask(payload StockCompensatePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockCompensate, body), nil
}

// NewRefundQueryTask 创建退款结果查询任务
func NewRefundQueryTask(payload RefundQueryPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRefundQuery, body), nil
}
