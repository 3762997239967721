package shared

import (
	"errors"

	"github.com/dujiao-next/orderflow/internal/http/response"
	"github.com/dujiao-next/orderflow/internal/service"

	"github.com/gin-gonic/gin"
)

// MappedError 定义业务错误到接口错误响应的映射关系。
type MappedError struct {
	Target error
	Code   int
	Key    string
}

// RespondMappedError 按规则顺序匹配错误，未命中时使用兜底响应并记录原始错误。
func RespondMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			RespondError(c, rule.Code, rule.Key, nil)
			return
		}
	}
	RespondError(c, fallbackCode, fallbackKey, err)
}

// OrderBuildErrorRules 下单错误映射
var OrderBuildErrorRules = []MappedError{
	{Target: service.ErrValidation, Code: response.CodeBadRequest, Key: "error.order_item_invalid"},
	{Target: service.ErrEmptyCart, Code: response.CodeBadRequest, Key: "error.empty_cart"},
	{Target: service.ErrProductSKUNotFound, Code: response.CodeNotFound, Key: "error.sku_not_found"},
	{Target: service.ErrAddressNotFound, Code: response.CodeNotFound, Key: "error.address_not_found"},
	{Target: service.ErrSkuUnavailable, Code: response.CodeBadRequest, Key: "error.sku_unavailable"},
	{Target: service.ErrInsufficientStock, Code: response.CodeConflict, Key: "error.insufficient_stock"},
	{Target: service.ErrPresaleLimitExceeded, Code: response.CodeConflict, Key: "error.presale_limit_exceeded"},
	{Target: service.ErrPresaleTypeConflict, Code: response.CodeBadRequest, Key: "error.presale_type_conflict"},
	{Target: service.ErrDuplicateRequest, Code: response.CodeConflict, Key: "error.duplicate_request"},
}

// OrderStatusErrorRules 状态变更错误映射
var OrderStatusErrorRules = []MappedError{
	{Target: service.ErrValidation, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Key: "error.order_not_found"},
	{Target: service.ErrInvalidTransition, Code: response.CodeConflict, Key: "error.invalid_transition"},
	{Target: service.ErrVersionConflict, Code: response.CodeConflict, Key: "error.version_conflict"},
	{Target: service.ErrBalanceWindowClosed, Code: response.CodeConflict, Key: "error.balance_window_closed"},
}

// RefundErrorRules 退款错误映射
var RefundErrorRules = []MappedError{
	{Target: service.ErrValidation, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Key: "error.order_not_found"},
	{Target: service.ErrRefundNotFound, Code: response.CodeNotFound, Key: "error.refund_not_found"},
	{Target: service.ErrRefundNotAllowed, Code: response.CodeConflict, Key: "error.refund_not_allowed"},
	{Target: service.ErrOverRefund, Code: response.CodeConflict, Key: "error.refund_over_limit"},
	{Target: service.ErrInvalidRefundState, Code: response.CodeConflict, Key: "error.refund_state_invalid"},
	{Target: service.ErrInvalidTransition, Code: response.CodeConflict, Key: "error.invalid_transition"},
	{Target: service.ErrVersionConflict, Code: response.CodeConflict, Key: "error.version_conflict"},
	{Target: service.ErrRefundPending, Code: response.CodeConflict, Key: "error.refund_pending"},
	{Target: service.ErrPartialFailure, Code: response.CodeInternal, Key: "error.refund_partial_failure"},
	{Target: service.ErrGatewayUnavailable, Code: response.CodeBadGateway, Key: "error.refund_gateway_missing"},
	{Target: service.ErrGatewayFailure, Code: response.CodeBadGateway, Key: "error.refund_gateway_failed"},
}
