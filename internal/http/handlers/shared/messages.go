package shared

// messages 错误文案，键沿用 error.xxx 约定
var messages = map[string]string{
	"error.bad_request":              "bad request",
	"error.unauthorized":             "unauthorized",
	"error.forbidden":                "forbidden",
	"error.jwt_secret_missing":       "jwt secret not configured",
	"error.auth_header_missing":      "authorization header missing",
	"error.auth_header_invalid":      "authorization header invalid",
	"error.token_invalid":            "token invalid",
	"error.user_id_invalid":          "user id invalid",
	"error.user_id_type_invalid":     "user id type invalid",
	"error.admin_id_invalid":         "admin id invalid",
	"error.admin_id_type_invalid":    "admin id type invalid",
	"error.too_many_requests":        "too many requests",
	"error.order_id_invalid":         "order id invalid",
	"error.order_not_found":          "order not found",
	"error.order_fetch_failed":       "order fetch failed",
	"error.order_create_failed":      "order create failed",
	"error.order_update_failed":      "order update failed",
	"error.order_item_invalid":       "order item invalid",
	"error.empty_cart":               "no selected cart items",
	"error.sku_not_found":            "sku not found",
	"error.sku_unavailable":          "sku unavailable",
	"error.address_not_found":        "address not found",
	"error.insufficient_stock":       "insufficient stock",
	"error.presale_limit_exceeded":   "presale purchase limit exceeded",
	"error.presale_type_conflict":    "presale types conflict in one order",
	"error.duplicate_request":        "duplicate request in progress",
	"error.invalid_transition":       "order status transition not allowed",
	"error.version_conflict":         "order was modified concurrently, please retry",
	"error.balance_window_closed":    "presale balance window not open",
	"error.refund_id_invalid":        "refund id invalid",
	"error.refund_not_found":         "refund not found",
	"error.refund_not_allowed":       "refund not allowed for this order",
	"error.refund_over_limit":        "refund exceeds refundable amount",
	"error.refund_state_invalid":     "refund record state invalid",
	"error.refund_failed":            "refund failed",
	"error.refund_gateway_failed":    "payment gateway refund failed",
	"error.refund_gateway_missing":   "payment gateway unavailable",
	"error.refund_pending":           "refund still processing at provider",
	"error.refund_partial_failure":   "refund succeeded at gateway but local settlement failed",
	"error.cart_fetch_failed":        "cart fetch failed",
	"error.cart_update_failed":       "cart update failed",
	"error.authz_update_failed":      "authz update failed",
	"error.authz_fetch_failed":       "authz fetch failed",
	"error.authz_role_unknown":       "role not found",
	"error.authz_role_invalid":       "role invalid",
	"error.internal":                 "internal error",
}

// Message 返回错误键对应的文案，未知键原样返回
func Message(key string) string {
	if msg, ok := messages[key]; ok {
		return msg
	}
	return key
}
