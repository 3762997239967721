package repository

import (
	"errors"

	"github.com/dujiao-next/orderflow/internal/models"

	"gorm.io/gorm"
)

// ProductSKURepository 商品 SKU 数据访问接口
type ProductSKURepository interface {
	GetByID(id uint) (*models.ProductSKU, error)
	ListByIDs(ids []uint) ([]models.ProductSKU, error)
	Create(item *models.ProductSKU) error
	Update(item *models.ProductSKU) error
	DeductStock(skuID uint, quantity int) (int64, error)
	RestoreStock(skuID uint, quantity int) (int64, error)
	WithTx(tx *gorm.DB) ProductSKURepository
}

// GormProductSKURepository GORM 实现
type GormProductSKURepository struct {
	db *gorm.DB
}

// NewProductSKURepository 创建 SKU 仓库
func NewProductSKURepository(db *gorm.DB) *GormProductSKURepository {
	return &GormProductSKURepository{db: db}
}

// WithTx 绑定事务
func (r *GormProductSKURepository) WithTx(tx *gorm.DB) ProductSKURepository {
	if tx == nil {
		return r
	}
	return &GormProductSKURepository{db: tx}
}

// GetByID 根据 ID 获取 SKU
func (r *GormProductSKURepository) GetByID(id uint) (*models.ProductSKU, error) {
	if id == 0 {
		return nil, nil
	}
	var sku models.ProductSKU
	if err := r.db.First(&sku, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sku, nil
}

// ListByIDs 批量获取 SKU
func (r *GormProductSKURepository) ListByIDs(ids []uint) ([]models.ProductSKU, error) {
	var items []models.ProductSKU
	if len(ids) == 0 {
		return items, nil
	}
	if err := r.db.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Create 创建 SKU
func (r *GormProductSKURepository) Create(item *models.ProductSKU) error {
	if item == nil {
		return errors.New("invalid sku")
	}
	return r.db.Create(item).Error
}

// Update 更新 SKU
func (r *GormProductSKURepository) Update(item *models.ProductSKU) error {
	if item == nil || item.ID == 0 {
		return errors.New("invalid sku")
	}
	return r.db.Save(item).Error
}

// DeductStock 条件扣减库存，库存不足时影响行数为 0
func (r *GormProductSKURepository) DeductStock(skuID uint, quantity int) (int64, error) {
	if skuID == 0 || quantity <= 0 {
		return 0, errors.New("invalid stock deduct params")
	}
	return r.adjustStock(skuID, -quantity)
}

// RestoreStock 回补库存
func (r *GormProductSKURepository) RestoreStock(skuID uint, quantity int) (int64, error) {
	if skuID == 0 || quantity <= 0 {
		return 0, errors.New("invalid stock restore params")
	}
	return r.adjustStock(skuID, quantity)
}

// adjustStock 单条 UPDATE 完成判断与变更；delta 为负时要求 stock >= -delta
func (r *GormProductSKURepository) adjustStock(skuID uint, delta int) (int64, error) {
	query := r.db.Model(&models.ProductSKU{}).Where("id = ?", skuID)
	if delta < 0 {
		query = query.Where("stock >= ?", -delta)
	}
	result := query.Update("stock", gorm.Expr("stock + ?", delta))
	return result.RowsAffected, result.Error
}
