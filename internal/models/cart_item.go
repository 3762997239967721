package models

import (
	"time"

	"gorm.io/gorm"
)

// CartItem 购物车项
type CartItem struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                              // 主键
	UserID            uint           `gorm:"not null;uniqueIndex:idx_cart_user_sku" json:"user_id"`             // 用户ID
	SKUID             uint           `gorm:"column:sku_id;not null;uniqueIndex:idx_cart_user_sku" json:"sku_id"` // SKU ID
	SPUID             uint           `gorm:"column:spu_id;index" json:"spu_id"`                                 // SPU ID
	Quantity          int            `gorm:"not null" json:"quantity"`                                          // 数量
	UnitPriceSnapshot Money          `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price_snapshot"`  // 加购时价格
	Selected          bool           `gorm:"not null;default:true;index" json:"selected"`                       // 是否勾选
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                           // 创建时间
	UpdatedAt         time.Time      `gorm:"index" json:"updated_at"`                                           // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                                    // 软删除时间
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}
