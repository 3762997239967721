package public

import (
	handlershared "github.com/dujiao-next/orderflow/internal/http/handlers/shared"
	"github.com/dujiao-next/orderflow/internal/http/response"
	"github.com/dujiao-next/orderflow/internal/service"

	"github.com/gin-gonic/gin"
)

// UpsertCartItemRequest 购物车项更新请求
type UpsertCartItemRequest struct {
	SKUID    uint  `json:"sku_id" binding:"required"`
	Quantity int   `json:"quantity"`
	Selected *bool `json:"selected"`
}

var cartErrorRules = []handlershared.MappedError{
	{Target: service.ErrValidation, Code: response.CodeBadRequest, Key: "error.order_item_invalid"},
	{Target: service.ErrProductSKUNotFound, Code: response.CodeNotFound, Key: "error.sku_not_found"},
	{Target: service.ErrSkuUnavailable, Code: response.CodeBadRequest, Key: "error.sku_unavailable"},
}

// GetCart 获取购物车
func (h *Handler) GetCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	items, err := h.CartService.ListByUser(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "error.cart_fetch_failed", err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

// UpsertCartItem 新增或更新购物车项
func (h *Handler) UpsertCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req UpsertCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	selected := true
	if req.Selected != nil {
		selected = *req.Selected
	}
	err := h.CartService.UpsertItem(service.UpsertCartItemInput{
		UserID:   uid,
		SKUID:    req.SKUID,
		Quantity: req.Quantity,
		Selected: selected,
	})
	if err != nil {
		respondMappedError(c, err, cartErrorRules, response.CodeInternal, "error.cart_update_failed")
		return
	}
	response.Success(c, nil)
}
