package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dujiao-next/orderflow/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	GetByIDAndUser(id uint, userID uint) (*models.Order, error)
	GetByOrderNo(orderNo string) (*models.Order, error)
	ListByUser(filter OrderListFilter) ([]models.Order, int64, error)
	ListAdmin(filter OrderListFilter) ([]models.Order, int64, error)
	UpdateWithVersion(id uint, expectedVersion int64, updates map[string]interface{}) (int64, error)
	ListItems(orderID uint) ([]models.OrderItem, error)
	AddItemRefund(itemID uint, quantity int, amount models.Money) (int64, error)
	RevertItemRefund(itemID uint, quantity int, amount models.Money) (int64, error)
	MarkItemStockRestored(itemID uint, fromQuantity, toQuantity int) (int64, error)
	SumUserSKUQuantity(userID, skuID uint, excludeStatuses []string) (int64, error)
	ListExpiredIDs(statuses []string, before time.Time, limit int) ([]uint, error)
	WithTx(tx *gorm.DB) OrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	if err := r.db.Omit("Items").Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	return r.first(r.db.Where("id = ?", id))
}

// GetByIDAndUser 获取用户订单详情
func (r *GormOrderRepository) GetByIDAndUser(id uint, userID uint) (*models.Order, error) {
	return r.first(r.db.Where("id = ? AND user_id = ?", id, userID))
}

// GetByOrderNo 根据订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	return r.first(r.db.Where("order_no = ?", orderNo))
}

func (r *GormOrderRepository) first(query *gorm.DB) (*models.Order, error) {
	var order models.Order
	if err := query.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListByUser 获取用户订单列表
func (r *GormOrderRepository) ListByUser(filter OrderListFilter) ([]models.Order, int64, error) {
	if filter.UserID == 0 {
		return nil, 0, errors.New("invalid user id")
	}
	return r.list(filter)
}

// ListAdmin 管理端订单列表
func (r *GormOrderRepository) ListAdmin(filter OrderListFilter) ([]models.Order, int64, error) {
	return r.list(filter)
}

func (r *GormOrderRepository) list(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OrderNo != "" {
		query = query.Where("order_no = ?", filter.OrderNo)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, argCount := buildOrderKeywordCondition(r.db)
		query = query.Where(condition, repeatLikeArgs("%"+escapeLikePattern(keyword)+"%", argCount)...)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	query = query.Scopes(paginate(filter.Page, filter.PageSize))
	if err := query.Preload("Items").Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateWithVersion 乐观锁更新订单，版本不一致时影响行数为 0
func (r *GormOrderRepository) UpdateWithVersion(id uint, expectedVersion int64, updates map[string]interface{}) (int64, error) {
	if id == 0 {
		return 0, errors.New("invalid order id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["version"] = gorm.Expr("version + 1")
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListItems 获取订单项
func (r *GormOrderRepository) ListItems(orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AddItemRefund 累加订单项退款数量与金额，超出购买数量时影响行数为 0
func (r *GormOrderRepository) AddItemRefund(itemID uint, quantity int, amount models.Money) (int64, error) {
	if itemID == 0 || quantity <= 0 {
		return 0, errors.New("invalid item refund params")
	}
	result := r.db.Model(&models.OrderItem{}).
		Where("id = ? AND refunded_quantity + ? <= quantity", itemID, quantity).
		Updates(map[string]interface{}{
			"refunded_quantity": gorm.Expr("refunded_quantity + ?", quantity),
			"refunded_amount":   gorm.Expr("refunded_amount + ?", amount.Decimal),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// RevertItemRefund 回退订单项退款占用（退款单关闭时）
func (r *GormOrderRepository) RevertItemRefund(itemID uint, quantity int, amount models.Money) (int64, error) {
	if itemID == 0 || quantity <= 0 {
		return 0, errors.New("invalid item refund params")
	}
	result := r.db.Model(&models.OrderItem{}).
		Where("id = ? AND refunded_quantity >= ? AND stock_restored_quantity <= refunded_quantity - ?", itemID, quantity, quantity).
		Updates(map[string]interface{}{
			"refunded_quantity": gorm.Expr("refunded_quantity - ?", quantity),
			"refunded_amount":   gorm.Expr("refunded_amount - ?", amount.Decimal),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// MarkItemStockRestored 标记订单项已回补库存数量（CAS）
func (r *GormOrderRepository) MarkItemStockRestored(itemID uint, fromQuantity, toQuantity int) (int64, error) {
	if itemID == 0 || toQuantity < fromQuantity {
		return 0, errors.New("invalid stock restored params")
	}
	result := r.db.Model(&models.OrderItem{}).
		Where("id = ? AND stock_restored_quantity = ? AND quantity >= ?", itemID, fromQuantity, toQuantity).
		Update("stock_restored_quantity", toQuantity)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SumUserSKUQuantity 统计用户在指定 SKU 上的已下单数量（排除给定状态）
func (r *GormOrderRepository) SumUserSKUQuantity(userID, skuID uint, excludeStatuses []string) (int64, error) {
	query := r.db.Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND order_items.sku_id = ?", userID, skuID)
	if len(excludeStatuses) > 0 {
		query = query.Where("orders.status NOT IN ?", excludeStatuses)
	}
	var total int64
	if err := query.Select("COALESCE(SUM(order_items.quantity), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// ListExpiredIDs 查询已过支付期限仍处于给定状态的订单 ID，按过期时间升序
func (r *GormOrderRepository) ListExpiredIDs(statuses []string, before time.Time, limit int) ([]uint, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	var ids []uint
	err := r.db.Model(&models.Order{}).
		Where("status IN ? AND expires_at IS NOT NULL AND expires_at <= ?", statuses, before).
		Order("expires_at asc").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
