package admin

import (
	"strings"
	"time"

	handlershared "github.com/dujiao-next/orderflow/internal/http/handlers/shared"
	"github.com/dujiao-next/orderflow/internal/http/response"
	"github.com/dujiao-next/orderflow/internal/repository"
	"github.com/dujiao-next/orderflow/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminListOrders 管理端订单列表
func (h *Handler) AdminListOrders(c *gin.Context) {
	page, pageSize := handlershared.PageQuery(c)

	userID, err := handlershared.ParseOptionalUint(c.Query("user_id"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	createdFrom, err := parseTimeNullable(c.Query("created_from"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	createdTo, err := parseTimeNullable(c.Query("created_to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	orders, total, err := h.OrderService.ListOrdersForAdmin(c.Request.Context(), repository.OrderListFilter{
		Page:        page,
		PageSize:    pageSize,
		UserID:      userID,
		Status:      strings.TrimSpace(c.Query("status")),
		OrderNo:     strings.TrimSpace(c.Query("order_no")),
		Keyword:     strings.TrimSpace(c.Query("keyword")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// AdminGetOrder 管理端订单详情
func (h *Handler) AdminGetOrder(c *gin.Context) {
	orderID, ok := handlershared.ParseIDParam(c, "id", "error.order_id_invalid")
	if !ok {
		return
	}
	order, err := h.OrderService.GetOrderForAdmin(c.Request.Context(), orderID)
	if err != nil {
		respondMappedError(c, err, handlershared.OrderStatusErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	response.Success(c, order)
}

// AdminUpdateOrderStatusRequest 管理端更新订单状态请求
type AdminUpdateOrderStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	ExpectedVersion *int64 `json:"expected_version"`
	PayMethod       string `json:"pay_method"`
	TransactionNo   string `json:"transaction_no"`
	LogisticsNo     string `json:"logistics_no"`
	CancelReason    string `json:"cancel_reason"`
}

// AdminUpdateOrderStatus 管理端推进订单状态（支付确认、发货、签收、尾款等）
func (h *Handler) AdminUpdateOrderStatus(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseIDParam(c, "id", "error.order_id_invalid")
	if !ok {
		return
	}
	var req AdminUpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	order, err := h.OrderService.UpdateStatus(c.Request.Context(), service.UpdateStatusInput{
		OrderID:         orderID,
		Target:          strings.TrimSpace(req.Status),
		ExpectedVersion: req.ExpectedVersion,
		PayMethod:       strings.TrimSpace(req.PayMethod),
		TransactionNo:   strings.TrimSpace(req.TransactionNo),
		LogisticsNo:     strings.TrimSpace(req.LogisticsNo),
		CancelReason:    strings.TrimSpace(req.CancelReason),
		OperatorID:      adminID,
	})
	if err != nil {
		respondMappedError(c, err, handlershared.OrderStatusErrorRules, response.CodeInternal, "error.order_update_failed")
		return
	}
	response.Success(c, order)
}

func parseTimeNullable(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	var lastErr error
	for _, layout := range layouts {
		parsed, err := time.ParseInLocation(layout, raw, time.Local)
		if err == nil {
			return &parsed, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
