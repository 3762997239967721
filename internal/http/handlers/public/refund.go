package public

import (
	handlershared "github.com/dujiao-next/orderflow/internal/http/handlers/shared"
	"github.com/dujiao-next/orderflow/internal/http/response"
	"github.com/dujiao-next/orderflow/internal/models"
	"github.com/dujiao-next/orderflow/internal/repository"
	"github.com/dujiao-next/orderflow/internal/service"

	"github.com/gin-gonic/gin"
)

// RefundLineRequest 逐项退款明细
type RefundLineRequest struct {
	OrderItemID uint `json:"order_item_id" binding:"required"`
	Quantity    int  `json:"quantity" binding:"required"`
}

// ApplyRefundRequest 退款申请；lines 为空时按 amount 整单退款
type ApplyRefundRequest struct {
	Reason string              `json:"reason"`
	Amount models.Money        `json:"amount"`
	Lines  []RefundLineRequest `json:"lines"`
}

// ApplyRefund 申请退款
func (h *Handler) ApplyRefund(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseIDParam(c, "id", "error.order_id_invalid")
	if !ok {
		return
	}
	var req ApplyRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	lines := make([]service.RefundLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, service.RefundLineInput{
			OrderItemID: line.OrderItemID,
			Quantity:    line.Quantity,
		})
	}
	record, err := h.RefundService.ApplyRefund(c.Request.Context(), service.ApplyRefundInput{
		OrderID: orderID,
		UserID:  uid,
		Reason:  req.Reason,
		Amount:  req.Amount,
		Lines:   lines,
	})
	if err != nil {
		respondMappedError(c, err, handlershared.RefundErrorRules, response.CodeInternal, "error.refund_failed")
		return
	}
	response.Success(c, record)
}

// ListOrderRefunds 查看订单下的退款单
func (h *Handler) ListOrderRefunds(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseIDParam(c, "id", "error.order_id_invalid")
	if !ok {
		return
	}
	page, pageSize := handlershared.PageQuery(c)

	records, total, err := h.RefundService.ListRefundsForOrder(c.Request.Context(), repository.RefundListFilter{
		Page:     page,
		PageSize: pageSize,
		OrderID:  orderID,
		UserID:   uid,
	})
	if err != nil {
		respondMappedError(c, err, handlershared.RefundErrorRules, response.CodeInternal, "error.refund_failed")
		return
	}
	response.SuccessWithPage(c, records, response.BuildPagination(page, pageSize, total))
}

// GetRefund 查询退款单状态
func (h *Handler) GetRefund(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	refundID, ok := handlershared.ParseIDParam(c, "id", "error.refund_id_invalid")
	if !ok {
		return
	}

	record, err := h.RefundService.QueryRefundStatus(c.Request.Context(), refundID, uid)
	if err != nil {
		respondMappedError(c, err, handlershared.RefundErrorRules, response.CodeInternal, "error.refund_failed")
		return
	}
	response.Success(c, record)
}
