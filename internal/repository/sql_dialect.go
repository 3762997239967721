package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// buildOrderKeywordCondition 订单号或任一订单项标题模糊匹配，返回条件与参数数量。
func buildOrderKeywordCondition(db *gorm.DB) (string, int) {
	return buildOrderKeywordConditionByDialect(dbDialectName(db))
}

func buildOrderKeywordConditionByDialect(dialect string) (string, int) {
	operator := likeOperatorByDialect(dialect)
	condition := fmt.Sprintf(
		`(order_no %[1]s ? ESCAPE '\' OR EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id AND oi.title %[1]s ? ESCAPE '\'))`,
		operator,
	)
	return condition, 2
}

func likeOperatorByDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return "ILIKE"
	default:
		// sqlite 的 LIKE 对 ASCII 已不区分大小写
		return "LIKE"
	}
}

// escapeLikePattern 转义用户输入中的通配符。
func escapeLikePattern(raw string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(raw)
}

// repeatLikeArgs 生成重复的 LIKE 参数列表。
func repeatLikeArgs(like string, count int) []interface{} {
	args := make([]interface{}, 0, count)
	for i := 0; i < count; i++ {
		args = append(args, like)
	}
	return args
}
