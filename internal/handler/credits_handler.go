package handler

import (
	"net/http"

	"newsscope/pkg/response"

	"github.com/gin-gonic/gin"
)

// Packages 积分套餐，按积分升序
// GET /api/credits/packages
func (h *Handler) Packages(c *gin.Context) {
	response.OK(c, http.StatusOK, gin.H{"packages": h.orders.Packages()})
}

// Balance 当前余额
// GET /api/credits/balance
func (h *Handler) Balance(c *gin.Context) {
	balance, err := h.ledger.GetBalance(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"credits":      balance.Credits,
		"credits_used": balance.CreditsUsed,
	})
}

// Transactions 积分流水，最新在前
// GET /api/credits/transactions?limit=N
func (h *Handler) Transactions(c *gin.Context) {
	list, err := h.ledger.ListTransactions(c.Request.Context(), currentUserID(c), queryLimit(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"transactions": list})
}
