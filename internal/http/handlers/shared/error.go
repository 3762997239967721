package shared

import (
	"github.com/dujiao-next/orderflow/internal/http/response"
	"github.com/dujiao-next/orderflow/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 携带 request_id 等请求字段的日志
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil || c.Request == nil {
		return logger.S()
	}
	return logger.FromContext(c.Request.Context())
}

// RespondError 按文案键输出错误信封；err 非空时记录原因，5xx 记 error，其余记 warn
func RespondError(c *gin.Context, code int, key string, err error) {
	msg := Message(key)
	if err != nil {
		log := RequestLog(c).With("code", code, "key", key, "error", err)
		if code >= response.CodeInternal {
			log.Errorw("handler_error", "path", c.FullPath())
		} else {
			log.Warnw("handler_rejected", "path", c.FullPath())
		}
	}
	response.Error(c, code, msg)
}
