package repository

import (
	"errors"

	"github.com/dujiao-next/orderflow/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RefundRepository 退款单数据访问接口
type RefundRepository interface {
	Create(record *models.RefundRecord) error
	GetByID(id uint) (*models.RefundRecord, error)
	GetByIDAndUser(id, userID uint) (*models.RefundRecord, error)
	List(filter RefundListFilter) ([]models.RefundRecord, int64, error)
	TransitionStatus(id uint, fromStatus string, updates map[string]interface{}) (int64, error)
	SumAmountByStatuses(orderID uint, statuses []string) (models.Money, error)
	WithTx(tx *gorm.DB) RefundRepository
}

// GormRefundRepository GORM 实现
type GormRefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款单仓库
func NewRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRefundRepository) WithTx(tx *gorm.DB) RefundRepository {
	if tx == nil {
		return r
	}
	return &GormRefundRepository{db: tx}
}

// Create 创建退款单
func (r *GormRefundRepository) Create(record *models.RefundRecord) error {
	if record == nil {
		return errors.New("invalid refund record")
	}
	return r.db.Create(record).Error
}

// GetByID 根据 ID 获取退款单
func (r *GormRefundRepository) GetByID(id uint) (*models.RefundRecord, error) {
	var record models.RefundRecord
	if err := r.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByIDAndUser 获取用户自己的退款单
func (r *GormRefundRepository) GetByIDAndUser(id, userID uint) (*models.RefundRecord, error) {
	var record models.RefundRecord
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List 退款单列表
func (r *GormRefundRepository) List(filter RefundListFilter) ([]models.RefundRecord, int64, error) {
	query := r.db.Model(&models.RefundRecord{})
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var records []models.RefundRecord
	query = query.Scopes(paginate(filter.Page, filter.PageSize))
	if err := query.Order("id desc").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// TransitionStatus 条件更新退款单状态（仅当当前状态为 fromStatus）
func (r *GormRefundRepository) TransitionStatus(id uint, fromStatus string, updates map[string]interface{}) (int64, error) {
	if id == 0 || fromStatus == "" {
		return 0, errors.New("invalid refund transition params")
	}
	result := r.db.Model(&models.RefundRecord{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SumAmountByStatuses 汇总订单在指定状态下的退款单金额
func (r *GormRefundRepository) SumAmountByStatuses(orderID uint, statuses []string) (models.Money, error) {
	if orderID == 0 || len(statuses) == 0 {
		return models.Money{}, nil
	}
	var rows []models.RefundRecord
	if err := r.db.Select("amount").
		Where("order_id = ? AND status IN ?", orderID, statuses).
		Find(&rows).Error; err != nil {
		return models.Money{}, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount.Decimal)
	}
	return models.NewMoneyFromDecimal(total), nil
}
