package models

import (
	"time"

	"gorm.io/gorm"
)

// ProductSKU 商品 SKU 表（价格+库存维度）
type ProductSKU struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                        // 主键
	SPUID          uint           `gorm:"column:spu_id;not null;index" json:"spu_id"`                  // 所属 SPU
	SKUCode        string         `gorm:"column:sku_code;type:varchar(64);uniqueIndex" json:"sku_code"` // SKU编码
	Title          string         `gorm:"type:varchar(255)" json:"title"`                              // 标题
	PriceAmount    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price_amount"`   // SKU价格
	Stock          int            `gorm:"not null;default:0" json:"stock"`                             // 可售库存
	OnSale         bool           `gorm:"not null;default:true;index" json:"on_sale"`                  // 是否在售
	PresaleFlag    bool           `gorm:"not null;default:false" json:"presale_flag"`                  // 是否预售
	PresaleType    string         `gorm:"type:varchar(20)" json:"presale_type,omitempty"`              // 预售类型（deposit/full）
	DepositAmount  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"deposit_amount"` // 单件定金
	BalanceAmount  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"balance_amount"` // 单件尾款
	PresaleLimit   int            `gorm:"not null;default:0" json:"presale_limit"`                     // 每人限购（0 表示不限）
	BalanceStartAt *time.Time     `json:"balance_start_at"`                                            // 尾款支付开始时间
	BalanceEndAt   *time.Time     `json:"balance_end_at"`                                              // 尾款支付截止时间
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt      time.Time      `gorm:"index" json:"updated_at"`                                     // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                              // 软删除时间
}

// TableName 指定表名
func (ProductSKU) TableName() string {
	return "product_skus"
}
