package repository

import (
	"errors"

	"github.com/dujiao-next/orderflow/internal/constants"
	"github.com/dujiao-next/orderflow/internal/models"

	"gorm.io/gorm"
)

// StockCompensationRepository 库存补偿记录数据访问接口
type StockCompensationRepository interface {
	Create(item *models.StockCompensation) error
	GetByID(id uint) (*models.StockCompensation, error)
	ListPending(limit int) ([]models.StockCompensation, error)
	MarkDone(id uint) (int64, error)
	RecordAttempt(id uint, lastError string) error
	WithTx(tx *gorm.DB) StockCompensationRepository
}

// GormStockCompensationRepository GORM 实现
type GormStockCompensationRepository struct {
	db *gorm.DB
}

// NewStockCompensationRepository 创建库存补偿仓库
func NewStockCompensationRepository(db *gorm.DB) *GormStockCompensationRepository {
	return &GormStockCompensationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormStockCompensationRepository) WithTx(tx *gorm.DB) StockCompensationRepository {
	if tx == nil {
		return r
	}
	return &GormStockCompensationRepository{db: tx}
}

// Create 创建补偿记录
func (r *GormStockCompensationRepository) Create(item *models.StockCompensation) error {
	if item == nil {
		return errors.New("invalid stock compensation")
	}
	return r.db.Create(item).Error
}

// GetByID 根据 ID 获取补偿记录
func (r *GormStockCompensationRepository) GetByID(id uint) (*models.StockCompensation, error) {
	var item models.StockCompensation
	if err := r.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListPending 获取待处理的补偿记录
func (r *GormStockCompensationRepository) ListPending(limit int) ([]models.StockCompensation, error) {
	var items []models.StockCompensation
	query := r.db.Where("status = ?", constants.StockCompensationStatusPending).Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkDone 标记补偿完成（仅 pending 可标记）
func (r *GormStockCompensationRepository) MarkDone(id uint) (int64, error) {
	result := r.db.Model(&models.StockCompensation{}).
		Where("id = ? AND status = ?", id, constants.StockCompensationStatusPending).
		Updates(map[string]interface{}{
			"status":   constants.StockCompensationStatusDone,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// RecordAttempt 记录一次失败的补偿尝试
func (r *GormStockCompensationRepository) RecordAttempt(id uint, lastError string) error {
	return r.db.Model(&models.StockCompensation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
		}).Error
}
