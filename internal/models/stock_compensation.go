package models

import "time"

// StockCompensation 库存回补失败后的补偿记录
type StockCompensation struct {
	ID        uint      `gorm:"primarykey" json:"id"`                       // 主键
	SKUID     uint      `gorm:"column:sku_id;index;not null" json:"sku_id"` // SKU ID
	Quantity  int       `gorm:"not null" json:"quantity"`                   // 待回补数量
	Source    string    `gorm:"type:varchar(32);not null" json:"source"`    // 来源
	OrderNo   string    `gorm:"type:varchar(64);index" json:"order_no"`     // 关联订单号
	Status    string    `gorm:"index;not null" json:"status"`               // pending/done
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`         // 已重试次数
	LastError string    `gorm:"type:text" json:"last_error"`                // 最近一次错误
	CreatedAt time.Time `gorm:"index" json:"created_at"`                    // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                    // 更新时间
}

// TableName 指定表名
func (StockCompensation) TableName() string {
	return "stock_compensations"
}
