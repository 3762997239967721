package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dujiao-next/orderflow/internal/cache"
	"github.com/dujiao-next/orderflow/internal/constants"
	"github.com/dujiao-next/orderflow/internal/logger"
	"github.com/dujiao-next/orderflow/internal/models"
	"github.com/dujiao-next/orderflow/internal/queue"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BuildFromCartInput 购物车下单输入
type BuildFromCartInput struct {
	UserID         uint
	AddressID      uint
	IdempotencyKey string
}

// BuildDirectInput 立即购买输入
type BuildDirectInput struct {
	UserID         uint
	AddressID      uint
	SKUID          uint
	Quantity       int
	IdempotencyKey string
}

// buildLine 合并后的下单行
type buildLine struct {
	SKUID         uint
	Quantity      int
	SnapshotPrice *models.Money
}

type buildParams struct {
	UserID      uint
	AddressID   uint
	Lines       []buildLine
	CartItemIDs []uint
}

// presaleLimitExcludedStatuses 不计入预售限购的订单状态
var presaleLimitExcludedStatuses = []string{
	constants.OrderStatusCancelled,
	constants.OrderStatusPresaleCancelled,
	constants.OrderStatusRefunded,
}

// BuildFromCart 以用户已勾选的购物车行下单
func (s *OrderService) BuildFromCart(ctx context.Context, input BuildFromCartInput) (*models.Order, error) {
	if input.UserID == 0 || input.AddressID == 0 {
		return nil, fmt.Errorf("%w: user and address are required", ErrValidation)
	}
	return s.buildWithIdempotency(ctx, input.UserID, input.IdempotencyKey, func() (*models.Order, error) {
		cartItems, err := s.cartRepo.ListSelectedByUser(input.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: load cart: %v", ErrOrderCreateFailed, err)
		}
		if len(cartItems) == 0 {
			return nil, ErrEmptyCart
		}
		lines := make([]buildLine, 0, len(cartItems))
		cartItemIDs := make([]uint, 0, len(cartItems))
		for i := range cartItems {
			snapshot := cartItems[i].UnitPriceSnapshot
			lines = append(lines, buildLine{
				SKUID:         cartItems[i].SKUID,
				Quantity:      cartItems[i].Quantity,
				SnapshotPrice: &snapshot,
			})
			cartItemIDs = append(cartItemIDs, cartItems[i].ID)
		}
		merged, err := s.mergeBuildLines(lines)
		if err != nil {
			return nil, err
		}
		return s.build(ctx, buildParams{
			UserID:      input.UserID,
			AddressID:   input.AddressID,
			Lines:       merged,
			CartItemIDs: cartItemIDs,
		})
	})
}

// BuildDirect 单个 SKU 立即购买
func (s *OrderService) BuildDirect(ctx context.Context, input BuildDirectInput) (*models.Order, error) {
	if input.UserID == 0 || input.AddressID == 0 || input.SKUID == 0 {
		return nil, fmt.Errorf("%w: user, address and sku are required", ErrValidation)
	}
	lines, err := s.mergeBuildLines([]buildLine{{SKUID: input.SKUID, Quantity: input.Quantity}})
	if err != nil {
		return nil, err
	}
	return s.buildWithIdempotency(ctx, input.UserID, input.IdempotencyKey, func() (*models.Order, error) {
		return s.build(ctx, buildParams{
			UserID:    input.UserID,
			AddressID: input.AddressID,
			Lines:     lines,
		})
	})
}

// buildWithIdempotency 幂等键占位后执行下单，失败释放占位
func (s *OrderService) buildWithIdempotency(ctx context.Context, userID uint, idempotencyKey string, run func() (*models.Order, error)) (*models.Order, error) {
	log := logger.FromContext(ctx)
	claim, err := cache.ClaimOrderBuild(ctx, userID, idempotencyKey, s.options.IdempotencyTTL)
	if err != nil {
		log.Warnw("order_build_idempotency_claim_failed", "user_id", userID, "error", err)
		claim = cache.OrderBuildClaim{Acquired: true}
	}
	if claim.OrderID > 0 {
		existing, err := s.orderRepo.GetByIDAndUser(claim.OrderID, userID)
		if err != nil {
			return nil, ErrOrderFetchFailed
		}
		if existing != nil {
			log.Infow("order_build_idempotent_replay", "user_id", userID, "order_id", existing.ID)
			return existing, nil
		}
		return nil, ErrDuplicateRequest
	}
	if !claim.Acquired {
		return nil, ErrDuplicateRequest
	}

	order, err := run()
	// 请求取消后仍需完成占位清理
	detached := context.WithoutCancel(ctx)
	if err != nil {
		if releaseErr := cache.ReleaseOrderBuild(detached, userID, idempotencyKey); releaseErr != nil {
			log.Warnw("order_build_idempotency_release_failed", "user_id", userID, "error", releaseErr)
		}
		return nil, err
	}
	if completeErr := cache.CompleteOrderBuild(detached, userID, idempotencyKey, order.ID, s.options.IdempotencyTTL); completeErr != nil {
		log.Warnw("order_build_idempotency_complete_failed", "user_id", userID, "order_id", order.ID, "error", completeErr)
	}
	return order, nil
}

// mergeBuildLines 合并重复 SKU 并校验数量
func (s *OrderService) mergeBuildLines(lines []buildLine) ([]buildLine, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	merged := make([]buildLine, 0, len(lines))
	index := make(map[uint]int, len(lines))
	for _, line := range lines {
		if line.SKUID == 0 || line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: invalid line sku=%d quantity=%d", ErrValidation, line.SKUID, line.Quantity)
		}
		if pos, ok := index[line.SKUID]; ok {
			merged[pos].Quantity += line.Quantity
			continue
		}
		index[line.SKUID] = len(merged)
		merged = append(merged, line)
	}
	for _, line := range merged {
		if line.Quantity > s.options.MaxItemQuantity {
			return nil, fmt.Errorf("%w: quantity %d exceeds %d", ErrValidation, line.Quantity, s.options.MaxItemQuantity)
		}
	}
	return merged, nil
}

// build 逐行校验并扣减库存，持久化订单；任一步失败回补本次已扣库存
func (s *OrderService) build(ctx context.Context, params buildParams) (*models.Order, error) {
	log := logger.FromContext(ctx)
	address, err := s.addressRepo.GetByIDForUser(params.AddressID, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: load address: %v", ErrOrderCreateFailed, err)
	}
	if address == nil {
		return nil, ErrAddressNotFound
	}

	now := s.now()
	orderNo := generateOrderNo()
	var (
		items          = make([]models.OrderItem, 0, len(params.Lines))
		deductions     = make([]stockDeduction, 0, len(params.Lines))
		presaleType    string
		hasPresale     bool
		total          = decimal.Zero
		depositTotal   = decimal.Zero
		normalSubtotal = decimal.Zero
	)
	abort := func(cause error) (*models.Order, error) {
		s.compensateDeductions(ctx, orderNo, deductions)
		return nil, cause
	}

	for _, line := range params.Lines {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		sku, err := s.skuRepo.GetByID(line.SKUID)
		if err != nil {
			return abort(fmt.Errorf("%w: load sku: %v", ErrOrderCreateFailed, err))
		}
		if sku == nil {
			return abort(fmt.Errorf("%w: sku %d", ErrProductSKUNotFound, line.SKUID))
		}
		if !sku.OnSale {
			return abort(fmt.Errorf("%w: sku %d", ErrSkuUnavailable, sku.ID))
		}

		unitPrice := sku.PriceAmount.Decimal.Round(2)
		if unitPrice.IsNegative() {
			return abort(fmt.Errorf("%w: sku %d has invalid price", ErrSkuUnavailable, sku.ID))
		}
		if line.SnapshotPrice != nil && !line.SnapshotPrice.Decimal.Equal(unitPrice) {
			log.Infow("order_build_price_changed",
				"order_no", orderNo,
				"sku_id", sku.ID,
				"snapshot_price", line.SnapshotPrice.String(),
				"current_price", unitPrice.String(),
			)
		}
		quantity := decimal.NewFromInt(int64(line.Quantity))
		subtotal := unitPrice.Mul(quantity).Round(2)
		item := models.OrderItem{
			SKUID:     sku.ID,
			SPUID:     sku.SPUID,
			Title:     sku.Title,
			Quantity:  line.Quantity,
			UnitPrice: models.NewMoneyFromDecimal(unitPrice),
			Subtotal:  models.NewMoneyFromDecimal(subtotal),
			CreatedAt: now,
			UpdatedAt: now,
		}

		if sku.PresaleFlag {
			lineType := normalizePresaleType(sku.PresaleType)
			if presaleType == "" {
				presaleType = lineType
			} else if presaleType != lineType {
				return abort(fmt.Errorf("%w: %s vs %s", ErrPresaleTypeConflict, presaleType, lineType))
			}
			if sku.PresaleLimit > 0 {
				used, err := s.orderRepo.SumUserSKUQuantity(params.UserID, sku.ID, presaleLimitExcludedStatuses)
				if err != nil {
					return abort(fmt.Errorf("%w: presale limit check: %v", ErrOrderCreateFailed, err))
				}
				if used+int64(line.Quantity) > int64(sku.PresaleLimit) {
					return abort(fmt.Errorf("%w: sku %d limit %d, used %d", ErrPresaleLimitExceeded, sku.ID, sku.PresaleLimit, used))
				}
			}
			depositPerUnit := decimal.Zero
			if lineType == constants.PresaleTypeDeposit {
				depositPerUnit = clampDecimal(sku.DepositAmount.Decimal.Round(2), decimal.Zero, unitPrice)
			}
			item.PresaleFlag = true
			item.PresaleType = lineType
			item.DepositPerUnit = models.NewMoneyFromDecimal(depositPerUnit)
			item.BalancePerUnit = models.NewMoneyFromDecimal(unitPrice.Sub(depositPerUnit))
			depositTotal = depositTotal.Add(depositPerUnit.Mul(quantity))
			hasPresale = true
		} else {
			if err := s.ledger.CheckAndDeduct(sku.ID, line.Quantity); err != nil {
				return abort(err)
			}
			deductions = append(deductions, stockDeduction{SKUID: sku.ID, Quantity: line.Quantity})
			normalSubtotal = normalSubtotal.Add(subtotal)
		}
		total = total.Add(subtotal)
		items = append(items, item)
	}

	actual := total
	status := constants.OrderStatusPendingPayment
	if hasPresale {
		status = constants.OrderStatusPresaleDepositPending
		if presaleType == constants.PresaleTypeDeposit {
			actual = depositTotal.Add(normalSubtotal)
		} else {
			depositTotal = decimal.Zero
		}
	}
	expiresAt := now.Add(s.paymentExpireDuration())
	order := &models.Order{
		OrderNo:        orderNo,
		UserID:         params.UserID,
		AddressID:      address.ID,
		Status:         status,
		Currency:       s.options.Currency,
		TotalAmount:    models.NewMoneyFromDecimal(total),
		ActualAmount:   models.NewMoneyFromDecimal(actual),
		PaidAmount:     models.NewMoneyFromDecimal(decimal.Zero),
		RefundedAmount: models.NewMoneyFromDecimal(decimal.Zero),
		PresaleFlag:    hasPresale,
		PresaleType:    presaleType,
		DepositAmount:  models.NewMoneyFromDecimal(depositTotal),
		BalanceAmount:  models.NewMoneyFromDecimal(total.Sub(actual)),
		ExpiresAt:      &expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := models.DB.Transaction(func(tx *gorm.DB) error {
		return s.orderRepo.WithTx(tx).Create(order, items)
	}); err != nil {
		log.Errorw("order_build_persist_failed", "order_no", orderNo, "user_id", params.UserID, "error", err)
		return abort(fmt.Errorf("%w: %v", ErrOrderCreateFailed, err))
	}

	if len(params.CartItemIDs) > 0 {
		if err := s.cartRepo.DeleteByIDs(params.UserID, params.CartItemIDs); err != nil {
			log.Warnw("order_build_cart_clear_failed",
				"order_id", order.ID,
				"user_id", params.UserID,
				"error", err,
			)
		}
	}
	_ = s.enqueueTimeoutCancel(ctx, order, 0)

	log.Infow("order_built",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"user_id", order.UserID,
		"status", order.Status,
		"total_amount", order.TotalAmount.String(),
		"actual_amount", order.ActualAmount.String(),
	)

	full, err := s.orderRepo.GetByID(order.ID)
	if err == nil && full != nil {
		return full, nil
	}
	order.Items = items
	return order, nil
}

func (s *OrderService) enqueueTimeoutCancel(ctx context.Context, order *models.Order, attempt int) error {
	if order == nil || order.ExpiresAt == nil {
		return nil
	}
	err := s.queueClient.EnqueueOrderTimeoutCancel(queue.OrderTimeoutCancelPayload{
		OrderID: order.ID,
		Attempt: attempt,
	}, order.ExpiresAt.Sub(s.now()))
	if err != nil {
		logger.FromContext(ctx).Warnw("order_enqueue_timeout_cancel_failed",
			"order_id", order.ID,
			"order_no", order.OrderNo,
			"attempt", attempt,
			"error", err,
		)
	}
	return err
}

// compensateDeductions 倒序回补本次下单已扣减的库存
func (s *OrderService) compensateDeductions(ctx context.Context, orderNo string, deductions []stockDeduction) {
	if len(deductions) == 0 {
		return
	}
	log := logger.FromContext(ctx)
	for i := len(deductions) - 1; i >= 0; i-- {
		deduction := deductions[i]
		if err := s.ledger.Restore(deduction.SKUID, deduction.Quantity); err != nil {
			log.Errorw("order_build_compensation_failed",
				"partial_failure", true,
				"order_no", orderNo,
				"sku_id", deduction.SKUID,
				"quantity", deduction.Quantity,
				"error", err,
			)
			s.scheduleStockCompensation(ctx, orderNo, deduction, err)
		}
	}
}

func normalizePresaleType(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), constants.PresaleTypeFull) {
		return constants.PresaleTypeFull
	}
	return constants.PresaleTypeDeposit
}

func clampDecimal(value, lower, upper decimal.Decimal) decimal.Decimal {
	if value.LessThan(lower) {
		return lower
	}
	if value.GreaterThan(upper) {
		return upper
	}
	return value
}
