package models

import (
	"time"
)

// Order 订单表
type Order struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                          // 主键
	OrderNo          string     `gorm:"uniqueIndex;not null" json:"order_no"`                          // 订单编号
	UserID           uint       `gorm:"index;not null" json:"user_id"`                                 // 用户ID
	AddressID        uint       `gorm:"not null" json:"address_id"`                                    // 收货地址ID
	Status           string     `gorm:"index;not null" json:"status"`                                  // 订单状态
	Currency         string     `gorm:"not null" json:"currency"`                                      // 币种
	TotalAmount      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`     // 商品总额
	ActualAmount     Money      `gorm:"type:decimal(20,2);not null;default:0" json:"actual_amount"`    // 当前应付金额
	PaidAmount       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"paid_amount"`      // 已支付金额
	RefundedAmount   Money      `gorm:"type:decimal(20,2);not null;default:0" json:"refunded_amount"`  // 已退款金额
	PresaleFlag      bool       `gorm:"not null;default:false;index" json:"presale_flag"`              // 是否预售订单
	PresaleType      string     `gorm:"type:varchar(20)" json:"presale_type,omitempty"`                // 预售类型（deposit/full）
	DepositAmount    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"deposit_amount"`   // 定金
	BalanceAmount    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"balance_amount"`   // 尾款
	Version          int64      `gorm:"not null;default:0" json:"version"`                             // 乐观锁版本号
	PayMethod        string     `gorm:"type:varchar(32)" json:"pay_method,omitempty"`                  // 支付方式
	TransactionNo    string     `gorm:"type:varchar(128);index" json:"transaction_no,omitempty"`       // 支付流水号
	LogisticsNo      string     `gorm:"type:varchar(128)" json:"logistics_no,omitempty"`               // 物流单号
	CancelReason     string     `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`              // 取消原因
	ExpiresAt        *time.Time `gorm:"index" json:"expires_at"`                                       // 支付过期时间
	PayTime          *time.Time `json:"pay_time"`                                                      // 支付时间
	ShipTime         *time.Time `json:"ship_time"`                                                     // 发货时间
	SignTime         *time.Time `json:"sign_time"`                                                     // 签收时间
	CancelTime       *time.Time `json:"cancel_time"`                                                   // 取消时间
	RefundTime       *time.Time `json:"refund_time"`                                                   // 退款时间
	BalanceStartTime *time.Time `json:"balance_start_time"`                                            // 尾款支付开始时间
	BalanceEndTime   *time.Time `json:"balance_end_time"`                                              // 尾款支付截止时间
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt        time.Time  `gorm:"index" json:"updated_at"`                                       // 更新时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// RefundableAmount 返回尚可退款的金额（已支付 - 已退款）
func (o *Order) RefundableAmount() Money {
	if o == nil {
		return Money{}
	}
	remaining := o.PaidAmount.Decimal.Sub(o.RefundedAmount.Decimal)
	if remaining.IsNegative() {
		return Money{}
	}
	return NewMoneyFromDecimal(remaining)
}
