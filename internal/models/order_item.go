package models

import (
	"time"
)

// OrderItem 订单项表
type OrderItem struct {
	ID                    uint      `gorm:"primarykey" json:"id"`                                         // 主键
	OrderID               uint      `gorm:"index;not null" json:"order_id"`                               // 订单ID
	SKUID                 uint      `gorm:"column:sku_id;index;not null" json:"sku_id"`                   // SKU ID
	SPUID                 uint      `gorm:"column:spu_id;index" json:"spu_id"`                            // SPU ID
	Title                 string    `gorm:"type:varchar(255)" json:"title"`                               // 商品标题快照
	Quantity              int       `gorm:"not null" json:"quantity"`                                     // 数量
	UnitPrice             Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`      // 下单时单价快照
	Subtotal              Money     `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`        // 小计
	PresaleFlag           bool      `gorm:"not null;default:false" json:"presale_flag"`                   // 是否预售行
	PresaleType           string    `gorm:"type:varchar(20)" json:"presale_type,omitempty"`               // 预售类型快照
	DepositPerUnit        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"deposit_per_unit"` // 单件定金快照
	BalancePerUnit        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance_per_unit"` // 单件尾款快照
	RefundedQuantity      int       `gorm:"not null;default:0" json:"refunded_quantity"`                  // 已退数量
	RefundedAmount        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"refunded_amount"` // 已退金额
	StockRestoredQuantity int       `gorm:"not null;default:0" json:"-"`                                  // 已回补库存数量
	CreatedAt             time.Time `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt             time.Time `gorm:"index" json:"updated_at"`                                      // 更新时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}

// RefundableQuantity 返回尚可退的数量
func (i *OrderItem) RefundableQuantity() int {
	if i == nil {
		return 0
	}
	remaining := i.Quantity - i.RefundedQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}
