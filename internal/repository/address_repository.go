package repository

import (
	"errors"

	"github.com/dujiao-next/orderflow/internal/models"

	"gorm.io/gorm"
)

// AddressRepository 收货地址数据访问接口
type AddressRepository interface {
	GetByIDForUser(id, userID uint) (*models.Address, error)
	Create(address *models.Address) error
}

// GormAddressRepository GORM 实现
type GormAddressRepository struct {
	db *gorm.DB
}

// NewAddressRepository 创建地址仓库
func NewAddressRepository(db *gorm.DB) *GormAddressRepository {
	return &GormAddressRepository{db: db}
}

// GetByIDForUser 获取属于该用户的地址
func (r *GormAddressRepository) GetByIDForUser(id, userID uint) (*models.Address, error) {
	if id == 0 || userID == 0 {
		return nil, nil
	}
	var address models.Address
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &address, nil
}

// Create 创建地址
func (r *GormAddressRepository) Create(address *models.Address) error {
	if address == nil {
		return errors.New("invalid address")
	}
	return r.db.Create(address).Error
}
