package service

import (
	"github.com/dujiao-next/orderflow/internal/constants"
)

// orderTransitions 订单状态流转表（唯一来源）
var orderTransitions = map[string]map[string]bool{
	constants.OrderStatusPendingPayment: {
		constants.OrderStatusPaid:      true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusPaid: {
		constants.OrderStatusShipping:  true,
		constants.OrderStatusRefunding: true,
	},
	constants.OrderStatusShipping: {
		constants.OrderStatusSigned:    true,
		constants.OrderStatusRefunding: true,
	},
	constants.OrderStatusSigned: {
		constants.OrderStatusRefunding: true,
	},
	constants.OrderStatusRefunding: {
		constants.OrderStatusRefunded:        true,
		constants.OrderStatusPartialRefunded: true,
	},
	constants.OrderStatusPartialRefunded: {
		constants.OrderStatusRefunding: true,
		constants.OrderStatusRefunded:  true,
	},
	constants.OrderStatusPresaleDepositPending: {
		constants.OrderStatusPresaleDepositPaid: true,
		constants.OrderStatusPresaleCancelled:   true,
	},
	constants.OrderStatusPresaleDepositPaid: {
		constants.OrderStatusPresaleBalancePending: true,
		constants.OrderStatusRefunding:             true,
		constants.OrderStatusShipping:              true, // 仅全款预售
	},
	constants.OrderStatusPresaleBalancePending: {
		constants.OrderStatusPresaleBalancePaid: true,
	},
	constants.OrderStatusPresaleBalancePaid: {
		constants.OrderStatusShipping:  true,
		constants.OrderStatusRefunding: true,
	},
}

// refundableStatuses 可申请退款的订单状态
var refundableStatuses = map[string]bool{
	constants.OrderStatusPaid:               true,
	constants.OrderStatusShipping:           true,
	constants.OrderStatusSigned:             true,
	constants.OrderStatusPresaleDepositPaid: true,
	constants.OrderStatusPresaleBalancePaid: true,
	constants.OrderStatusRefunding:          true,
	constants.OrderStatusPartialRefunded:    true,
}

func isTransitionAllowed(current, target string) bool {
	if current == target {
		return false
	}
	nexts, ok := orderTransitions[current]
	if !ok {
		return false
	}
	return nexts[target]
}

func isTerminalStatus(status string) bool {
	switch status {
	case constants.OrderStatusCancelled, constants.OrderStatusRefunded, constants.OrderStatusPresaleCancelled:
		return true
	default:
		return false
	}
}

// releasesAllStock 进入该状态时回补全部未回补库存（预售行不参与）；部分退款同样整单回补
func releasesAllStock(status string) bool {
	switch status {
	case constants.OrderStatusCancelled, constants.OrderStatusRefunded, constants.OrderStatusPartialRefunded, constants.OrderStatusPresaleCancelled:
		return true
	default:
		return false
	}
}

// cancelTargetFor 未支付订单的取消目标状态
func cancelTargetFor(status string) (string, bool) {
	switch status {
	case constants.OrderStatusPendingPayment:
		return constants.OrderStatusCancelled, true
	case constants.OrderStatusPresaleDepositPending:
		return constants.OrderStatusPresaleCancelled, true
	default:
		return "", false
	}
}
