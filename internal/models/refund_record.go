package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RefundLine 逐项退款明细
type RefundLine struct {
	OrderItemID  uint  `json:"order_item_id"`
	SKUID        uint  `json:"sku_id"`
	Quantity     int   `json:"quantity"`
	RefundAmount Money `json:"refund_amount"`
}

// RefundLines 退款明细列表（JSON 存储）
type RefundLines []RefundLine

// Value 实现 driver.Valuer 接口
func (l RefundLines) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan 实现 sql.Scanner 接口
func (l *RefundLines) Scan(value interface{}) error {
	switch raw := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(raw, l)
	case string:
		return json.Unmarshal([]byte(raw), l)
	default:
		return fmt.Errorf("unsupported refund lines type: %T", value)
	}
}

// RefundRecord 退款单
type RefundRecord struct {
	ID               uint        `gorm:"primarykey" json:"id"`                                   // 主键
	RefundNo         string      `gorm:"uniqueIndex;not null" json:"refund_no"`                  // 退款单号
	OrderID          uint        `gorm:"index;not null" json:"order_id"`                         // 订单ID
	UserID           uint        `gorm:"index;not null" json:"user_id"`                          // 申请用户ID
	Reason           string      `gorm:"type:varchar(255)" json:"reason"`                        // 退款原因
	Amount           Money       `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`    // 退款金额
	Lines            RefundLines `gorm:"type:json" json:"lines,omitempty"`                       // 逐项退款明细
	Status           string      `gorm:"index;not null" json:"status"`                           // 状态
	ProviderRefundID string      `gorm:"type:varchar(128)" json:"provider_refund_id,omitempty"`  // 渠道退款单号
	FailReason       string      `gorm:"type:text" json:"fail_reason,omitempty"`                 // 失败原因
	OperatorID       uint        `gorm:"index" json:"operator_id,omitempty"`                     // 处理人
	AppliedAt        time.Time   `json:"applied_at"`                                             // 申请时间
	ProcessedAt      *time.Time  `json:"processed_at"`                                           // 处理时间
	SucceededAt      *time.Time  `json:"succeeded_at"`                                           // 成功时间
	CreatedAt        time.Time   `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt        time.Time   `gorm:"index" json:"updated_at"`                                // 更新时间
}

// TableName 指定表名
func (RefundRecord) TableName() string {
	return "refund_records"
}

// Itemized 是否逐项退款
func (r *RefundRecord) Itemized() bool {
	return r != nil && len(r.Lines) > 0
}
