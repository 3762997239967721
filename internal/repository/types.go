package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	Status      string
	OrderNo     string
	Keyword     string // 订单号或商品标题模糊匹配
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// RefundListFilter 查询退款单列表的过滤条件
type RefundListFilter struct {
	Page     int
	PageSize int
	OrderID  uint
	UserID   uint
	Status   string
}
