package public

import (
	"strings"

	handlershared "github.com/dujiao-next/orderflow/internal/http/handlers/shared"
	"github.com/dujiao-next/orderflow/internal/http/response"
	"github.com/dujiao-next/orderflow/internal/repository"
	"github.com/dujiao-next/orderflow/internal/service"

	"github.com/gin-gonic/gin"
)

const idempotencyKeyHeader = "Idempotency-Key"

// CreateOrderFromCartRequest 购物车下单请求
type CreateOrderFromCartRequest struct {
	AddressID uint `json:"address_id" binding:"required"`
}

// CreateDirectOrderRequest 立即购买请求
type CreateDirectOrderRequest struct {
	AddressID uint `json:"address_id" binding:"required"`
	SKUID     uint `json:"sku_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// CreateOrderFromCart 以已勾选购物车行下单
func (h *Handler) CreateOrderFromCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreateOrderFromCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	order, err := h.OrderService.BuildFromCart(c.Request.Context(), service.BuildFromCartInput{
		UserID:         uid,
		AddressID:      req.AddressID,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(idempotencyKeyHeader)),
	})
	if err != nil {
		respondMappedError(c, err, handlershared.OrderBuildErrorRules, response.CodeInternal, "error.order_create_failed")
		return
	}
	response.Success(c, order)
}

// CreateDirectOrder 立即购买下单
func (h *Handler) CreateDirectOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreateDirectOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	order, err := h.OrderService.BuildDirect(c.Request.Context(), service.BuildDirectInput{
		UserID:         uid,
		AddressID:      req.AddressID,
		SKUID:          req.SKUID,
		Quantity:       req.Quantity,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(idempotencyKeyHeader)),
	})
	if err != nil {
		respondMappedError(c, err, handlershared.OrderBuildErrorRules, response.CodeInternal, "error.order_create_failed")
		return
	}
	response.Success(c, order)
}

// ListOrders 获取订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	page, pageSize := handlershared.PageQuery(c)

	orders, total, err := h.OrderService.ListOrdersForUser(c.Request.Context(), repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   strings.TrimSpace(c.Query("status")),
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// GetOrder 获取订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseIDParam(c, "id", "error.order_id_invalid")
	if !ok {
		return
	}

	order, err := h.OrderService.GetOrder(c.Request.Context(), orderID, uid)
	if err != nil {
		respondMappedError(c, err, handlershared.OrderStatusErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	response.Success(c, order)
}

// CancelOrder 用户取消待支付订单
func (h *Handler) CancelOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseIDParam(c, "id", "error.order_id_invalid")
	if !ok {
		return
	}

	order, err := h.OrderService.CancelOrder(c.Request.Context(), orderID, uid)
	if err != nil {
		respondMappedError(c, err, handlershared.OrderStatusErrorRules, response.CodeInternal, "error.order_update_failed")
		return
	}
	response.Success(c, order)
}
