package admin

import (
	"strings"

	handlershared "github.com/dujiao-next/orderflow/internal/http/handlers/shared"
	"github.com/dujiao-next/orderflow/internal/http/response"
	"github.com/dujiao-next/orderflow/internal/repository"
	"github.com/dujiao-next/orderflow/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminListOrderRefunds 管理端查看订单退款单
func (h *Handler) AdminListOrderRefunds(c *gin.Context) {
	orderID, ok := handlershared.ParseIDParam(c, "id", "error.order_id_invalid")
	if !ok {
		return
	}
	page, pageSize := handlershared.PageQuery(c)

	records, total, err := h.RefundService.ListRefundsForOrder(c.Request.Context(), repository.RefundListFilter{
		Page:     page,
		PageSize: pageSize,
		OrderID:  orderID,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondMappedError(c, err, handlershared.RefundErrorRules, response.CodeInternal, "error.refund_failed")
		return
	}
	response.SuccessWithPage(c, records, response.BuildPagination(page, pageSize, total))
}

// AdminProcessRefund 审核通过并调用支付渠道退款
func (h *Handler) AdminProcessRefund(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	refundID, ok := handlershared.ParseIDParam(c, "id", "error.refund_id_invalid")
	if !ok {
		return
	}

	record, err := h.RefundService.ProcessRefund(c.Request.Context(), service.ProcessRefundInput{
		RefundID:   refundID,
		OperatorID: adminID,
	})
	if err != nil {
		respondMappedError(c, err, handlershared.RefundErrorRules, response.CodeInternal, "error.refund_failed")
		return
	}
	response.Success(c, record)
}

// AdminCloseRefund 关闭待处理或失败的退款单
func (h *Handler) AdminCloseRefund(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	refundID, ok := handlershared.ParseIDParam(c, "id", "error.refund_id_invalid")
	if !ok {
		return
	}

	record, err := h.RefundService.CloseRefund(c.Request.Context(), refundID, adminID)
	if err != nil {
		respondMappedError(c, err, handlershared.RefundErrorRules, response.CodeInternal, "error.refund_failed")
		return
	}
	response.Success(c, record)
}

// AdminSyncRefund 主动查询渠道并推进处理中的退款单
func (h *Handler) AdminSyncRefund(c *gin.Context) {
	refundID, ok := handlershared.ParseIDParam(c, "id", "error.refund_id_invalid")
	if !ok {
		return
	}

	record, err := h.RefundService.SyncRefund(c.Request.Context(), refundID)
	if err != nil {
		respondMappedError(c, err, handlershared.RefundErrorRules, response.CodeInternal, "error.refund_failed")
		return
	}
	response.Success(c, record)
}
