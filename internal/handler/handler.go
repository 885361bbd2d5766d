package handler

import (
	"net/http"
	"strconv"
	"time"

	"newsscope/internal/infrastructure/database"
	"newsscope/internal/service"
	"newsscope/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CookieOptions 会话 cookie 属性
type CookieOptions struct {
	Name   string
	Secure bool
}

// Deps 处理器依赖，全部由 main 显式构造后注入
type Deps struct {
	DB       *gorm.DB
	Auth     *service.AuthService
	Ledger   *service.LedgerService
	Orders   *service.OrderService
	Analysis *service.AnalysisService
	History  *service.HistoryService
	Feedback *service.FeedbackService
	Cookie   CookieOptions
	// MailConfigured 仅用于健康检查展示
	MailConfigured bool
	Log            *zap.Logger
}

// Handler 统一处理器
type Handler struct {
	db             *gorm.DB
	auth           *service.AuthService
	ledger         *service.LedgerService
	orders         *service.OrderService
	analysis       *service.AnalysisService
	history        *service.HistoryService
	feedback       *service.FeedbackService
	cookie         CookieOptions
	mailConfigured bool
	log            *zap.Logger
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		db:             d.DB,
		auth:           d.Auth,
		ledger:         d.Ledger,
		orders:         d.Orders,
		analysis:       d.Analysis,
		history:        d.History,
		feedback:       d.Feedback,
		cookie:         d.Cookie,
		mailConfigured: d.MailConfigured,
		log:            d.Log,
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	response.Fail(c, h.log, err)
}

// bindJSON 解析失败时已写入 400 响应
func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ParamError(c, "Please send a valid JSON body")
		return false
	}
	return true
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.Query("limit"))
	return limit
}

// Index 服务信息
// GET /
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "NewsScope API",
		"version":     "1.0.0",
		"description": "AI-Based Fake News Detector",
		"endpoints": gin.H{
			"/":                         "API information",
			"/api/health":               "Health check",
			"/api/analyze":              "Analyze news (POST)",
			"/api/batch-analyze":        "Analyze up to 10 articles (POST)",
			"/api/sources":              "Sources checked",
			"/api/credits/packages":     "Credit packages",
			"/api/payment/create-order": "Start a credit purchase (POST)",
		},
	})
}

// Health 健康检查，数据库不可用时返回 503
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	status, dbStatus, code := "healthy", "ok", http.StatusOK
	if err := database.Ping(h.db); err != nil {
		h.log.Error("数据库健康检查失败", zap.Error(err))
		status, dbStatus, code = "unhealthy", "unavailable", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":              status,
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
		"database":            dbStatus,
		"analyzer_configured": h.analysis.AnalyzerConfigured(),
		"gateway_configured":  h.orders.GatewayConfigured(),
		"mail_configured":     h.mailConfigured,
	})
}

// NoRoute 未知路径
func (h *Handler) NoRoute(c *gin.Context) {
	response.Error(c, http.StatusNotFound, "Not found", "The requested endpoint does not exist")
}
