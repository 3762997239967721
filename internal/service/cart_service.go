package service

import (
	"fmt"
	"time"

	"github.com/dujiao-next/orderflow/internal/models"
	"github.com/dujiao-next/orderflow/internal/repository"
)

// CartItemDetail 购物车项详情（用于响应）
type CartItemDetail struct {
	ID                uint         `json:"id"`
	SKUID             uint         `json:"sku_id"`
	Title             string       `json:"title"`
	Quantity          int          `json:"quantity"`
	Selected          bool         `json:"selected"`
	UnitPrice         models.Money `json:"unit_price"`
	UnitPriceSnapshot models.Money `json:"unit_price_snapshot"`
	PresaleFlag       bool         `json:"presale_flag"`
	Available         bool         `json:"available"`
}

// UpsertCartItemInput 购物车更新输入
type UpsertCartItemInput struct {
	UserID   uint
	SKUID    uint
	Quantity int
	Selected bool
}

// CartService 购物车服务（为下单准备勾选行）
type CartService struct {
	cartRepo        repository.CartRepository
	skuRepo         repository.ProductSKURepository
	maxItemQuantity int
}

// NewCartService 创建购物车服务
func NewCartService(cartRepo repository.CartRepository, skuRepo repository.ProductSKURepository, maxItemQuantity int) *CartService {
	return &CartService{
		cartRepo:        cartRepo,
		skuRepo:         skuRepo,
		maxItemQuantity: maxItemQuantity,
	}
}

// ListByUser 获取用户购物车，附带 SKU 当前价格与可售状态
func (s *CartService) ListByUser(userID uint) ([]CartItemDetail, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	items, err := s.cartRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	skuIDs := make([]uint, 0, len(items))
	for _, item := range items {
		skuIDs = append(skuIDs, item.SKUID)
	}
	skus, err := s.skuRepo.ListByIDs(skuIDs)
	if err != nil {
		return nil, err
	}
	skuByID := make(map[uint]*models.ProductSKU, len(skus))
	for i := range skus {
		skuByID[skus[i].ID] = &skus[i]
	}

	details := make([]CartItemDetail, 0, len(items))
	for _, item := range items {
		detail := CartItemDetail{
			ID:                item.ID,
			SKUID:             item.SKUID,
			Quantity:          item.Quantity,
			Selected:          item.Selected,
			UnitPriceSnapshot: item.UnitPriceSnapshot,
		}
		if sku, ok := skuByID[item.SKUID]; ok {
			detail.Title = sku.Title
			detail.UnitPrice = sku.PriceAmount
			detail.PresaleFlag = sku.PresaleFlag
			detail.Available = sku.OnSale && (sku.PresaleFlag || sku.Stock >= item.Quantity)
		}
		details = append(details, detail)
	}
	return details, nil
}

// UpsertItem 添加或更新购物车项，记录当前价格快照
func (s *CartService) UpsertItem(input UpsertCartItemInput) error {
	if input.UserID == 0 || input.SKUID == 0 || input.Quantity <= 0 {
		return fmt.Errorf("%w: user, sku and positive quantity are required", ErrValidation)
	}
	if s.maxItemQuantity > 0 && input.Quantity > s.maxItemQuantity {
		return fmt.Errorf("%w: quantity %d exceeds %d", ErrValidation, input.Quantity, s.maxItemQuantity)
	}
	sku, err := s.skuRepo.GetByID(input.SKUID)
	if err != nil {
		return err
	}
	if sku == nil {
		return ErrProductSKUNotFound
	}
	if !sku.OnSale {
		return ErrSkuUnavailable
	}

	now := time.Now()
	item := &models.CartItem{
		UserID:            input.UserID,
		SKUID:             sku.ID,
		SPUID:             sku.SPUID,
		Quantity:          input.Quantity,
		UnitPriceSnapshot: sku.PriceAmount,
		Selected:          input.Selected,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return s.cartRepo.Upsert(item)
}
