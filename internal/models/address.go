package models

import (
	"time"

	"gorm.io/gorm"
)

// Address 收货地址
type Address struct {
	ID        uint           `gorm:"primarykey" json:"id"`                  // 主键
	UserID    uint           `gorm:"index;not null" json:"user_id"`         // 用户ID
	Receiver  string         `gorm:"type:varchar(64)" json:"receiver"`      // 收件人
	Phone     string         `gorm:"type:varchar(32)" json:"phone"`         // 联系电话
	Region    string         `gorm:"type:varchar(255)" json:"region"`       // 省市区
	Detail    string         `gorm:"type:varchar(255)" json:"detail"`       // 详细地址
	IsDefault bool           `gorm:"not null;default:false" json:"is_default"` // 是否默认
	CreatedAt time.Time      `gorm:"index" json:"created_at"`               // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`               // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                        // 软删除时间
}

// TableName 指定表名
func (Address) TableName() string {
	return "addresses"
}
