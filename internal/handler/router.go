package handler

import (
	"newsscope/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, cfg *config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Mode() == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(TraceMiddleware())
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.Server.CorsOrigins))

	r.GET("/", h.Index)
	r.NoRoute(h.NoRoute)

	requireAuth := AuthMiddleware(h.auth, cfg.Session.CookieName, log)

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/sources", h.Sources)
		api.POST("/feedback", h.Feedback)

		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.Signup)
			auth.POST("/login", h.Login)
			auth.POST("/logout", h.Logout)
			auth.POST("/forgot-password", h.ForgotPassword)
			auth.POST("/reset-password", h.ResetPassword)
			auth.GET("/me", requireAuth, h.Me)
			auth.DELETE("/me", requireAuth, h.DeleteAccount)
		}

		credits := api.Group("/credits")
		{
			credits.GET("/packages", h.Packages)
			credits.GET("/balance", requireAuth, h.Balance)
			credits.GET("/transactions", requireAuth, h.Transactions)
		}

		payment := api.Group("/payment")
		{
			// 回调由渠道调用，靠签名鉴权
			payment.POST("/webhook", h.PaymentWebhook)
			payment.POST("/create-order", requireAuth, h.CreateOrder)
			payment.POST("/verify", requireAuth, h.VerifyPayment)
			payment.GET("/orders", requireAuth, h.Orders)
		}

		authed := api.Group("", requireAuth)
		{
			authed.POST("/analyze", h.Analyze)
			authed.POST("/batch-analyze", h.BatchAnalyze)
			authed.GET("/dashboard/stats", h.DashboardStats)
			authed.GET("/history", h.History)
			authed.DELETE("/history", h.ClearHistory)
			authed.GET("/history/:id", h.HistoryItem)
			authed.DELETE("/history/:id", h.DeleteHistoryItem)
		}
	}

	return r
}
