package response

import (
	"net/http"

	"newsscope/pkg/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OK 成功响应: {"success": true, ...fields}
func OK(c *gin.Context, status int, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

// Data 成功响应: {"success": true, "data": data}
func Data(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Message 只带提示信息的成功响应
func Message(c *gin.Context, message string) {
	OK(c, http.StatusOK, gin.H{"message": message})
}

func Error(c *gin.Context, status int, title, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   title,
		"message": message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "Invalid input", message)
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Authentication required", "Please log in to continue")
}

// Fail 把 service 层错误映射为响应
// 非 apperr.Error 一律按 500 处理，原始错误只写日志
func Fail(c *gin.Context, log *zap.Logger, err error) {
	if ae, ok := apperr.As(err); ok {
		status := ae.HTTPStatus()
		if status >= http.StatusInternalServerError || ae.Err != nil {
			log.Warn("请求失败",
				zap.String("path", c.FullPath()),
				zap.Int("status", status),
				zap.String("trace_id", c.GetString("trace_id")),
				zap.Error(err),
			)
		}
		Error(c, status, ae.Title, ae.Message)
		return
	}

	log.Error("服务器内部错误",
		zap.String("path", c.FullPath()),
		zap.String("trace_id", c.GetString("trace_id")),
		zap.Error(err),
	)
	Error(c, http.StatusInternalServerError, "Server error", "Something went wrong, please try again later")
}
