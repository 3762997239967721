package service

import (
	"fmt"

	"github.com/dujiao-next/orderflow/internal/models"
	"github.com/dujiao-next/orderflow/internal/repository"

	"gorm.io/gorm"
)

// StockLedger 库存账本：原子扣减与回补，预售 SKU 不经过此处
type StockLedger interface {
	CheckAndDeduct(skuID uint, quantity int) error
	Restore(skuID uint, quantity int) error
	WithTx(tx *gorm.DB) StockLedger
}

// SKUStockLedger 基于 SKU 表条件更新的库存账本
type SKUStockLedger struct {
	skuRepo repository.ProductSKURepository
}

// NewSKUStockLedger 创建库存账本
func NewSKUStockLedger(skuRepo repository.ProductSKURepository) *SKUStockLedger {
	return &SKUStockLedger{skuRepo: skuRepo}
}

// WithTx 绑定事务
func (l *SKUStockLedger) WithTx(tx *gorm.DB) StockLedger {
	if tx == nil {
		return l
	}
	return &SKUStockLedger{skuRepo: l.skuRepo.WithTx(tx)}
}

// CheckAndDeduct 单条 UPDATE 完成比较与扣减，影响行数为 0 时区分 SKU 不存在与库存不足
func (l *SKUStockLedger) CheckAndDeduct(skuID uint, quantity int) error {
	if skuID == 0 || quantity <= 0 {
		return fmt.Errorf("%w: invalid deduct quantity", ErrValidation)
	}
	affected, err := l.skuRepo.DeductStock(skuID, quantity)
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	sku, err := l.skuRepo.GetByID(skuID)
	if err != nil {
		return err
	}
	if sku == nil {
		return ErrProductSKUNotFound
	}
	return fmt.Errorf("%w: sku %d has %d, need %d", ErrInsufficientStock, skuID, sku.Stock, quantity)
}

// Restore 回补库存（纯累加，幂等由调用方保证）
func (l *SKUStockLedger) Restore(skuID uint, quantity int) error {
	if skuID == 0 || quantity <= 0 {
		return fmt.Errorf("%w: invalid restore quantity", ErrValidation)
	}
	affected, err := l.skuRepo.RestoreStock(skuID, quantity)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductSKUNotFound
	}
	return nil
}

// stockDeduction 一次下单中已扣减的库存
type stockDeduction struct {
	SKUID    uint
	Quantity int
}

// restoreTarget 订单项释放时应累计回补的数量，预售行为 0
func restoreTarget(item *models.OrderItem) int {
	if item == nil || item.PresaleFlag {
		return 0
	}
	return item.Quantity
}
