package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"newsscope/pkg/response"
	"newsscope/pkg/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ctxTraceID = "trace_id"
	ctxUserID  = "user_id"
	ctxClaims  = "claims"

	traceHeader = "X-Trace-ID"
)

// TraceMiddleware 为每个请求分配 trace id，客户端传入时沿用
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(traceHeader)
		if traceID == "" || len(traceID) > 64 {
			traceID = uuid.NewString()
		}
		c.Set(ctxTraceID, traceID)
		c.Header(traceHeader, traceID)
		c.Next()
	}
}

// LoggerMiddleware 访问日志
func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if query != "" {
			path = path + "?" + query
		}
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("trace_id", c.GetString(ctxTraceID)),
		}
		if uid, ok := c.Get(ctxUserID); ok {
			fields = append(fields, zap.Int64("user_id", uid.(int64)))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// RecoveryMiddleware 捕获 panic，返回统一的 500 响应
func RecoveryMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("trace_id", c.GetString(ctxTraceID)),
					zap.Stack("stack"),
				)
				response.Error(c, http.StatusInternalServerError, "Internal server error", "An unexpected error occurred")
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 前端跨域携带 cookie，必须列出具体的 origin
func CORSMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", traceHeader},
		ExposeHeaders:    []string{traceHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// Authenticator 校验会话 token
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*session.Claims, error)
}

// AuthMiddleware 从 cookie 或 Bearer 头读取会话，失败一律返回 401
func AuthMiddleware(auth Authenticator, cookieName string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, cookieName)
		if token == "" {
			response.Unauthorized(c)
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, session.ErrInvalidToken) && !errors.Is(err, session.ErrRevoked) {
				log.Warn("会话校验失败", zap.String("trace_id", c.GetString(ctxTraceID)), zap.Error(err))
			}
			response.Unauthorized(c)
			return
		}

		userID, _ := claims.UserID()
		c.Set(ctxUserID, userID)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

func sessionToken(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

func currentClaims(c *gin.Context) *session.Claims {
	if v, ok := c.Get(ctxClaims); ok {
		if claims, ok := v.(*session.Claims); ok {
			return claims
		}
	}
	return nil
}
