package handler

import (
	"net/http"
	"strconv"

	"newsscope/pkg/response"

	"github.com/gin-gonic/gin"
)

func analysisID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "Invalid analysis id")
		return 0, false
	}
	return id, true
}

// DashboardStats 统计和最近 5 条分析
// GET /api/dashboard/stats
func (h *Handler) DashboardStats(c *gin.Context) {
	dash, err := h.history.Stats(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"statistics":      dash.Statistics,
		"recent_analyses": dash.RecentAnalyses,
	})
}

// History GET /api/history?limit=N
func (h *Handler) History(c *gin.Context) {
	list, err := h.history.List(c.Request.Context(), currentUserID(c), queryLimit(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"analyses": list})
}

// HistoryItem GET /api/history/:id
func (h *Handler) HistoryItem(c *gin.Context) {
	id, ok := analysisID(c)
	if !ok {
		return
	}
	report, err := h.history.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"analysis": report})
}

// DeleteHistoryItem DELETE /api/history/:id
func (h *Handler) DeleteHistoryItem(c *gin.Context) {
	id, ok := analysisID(c)
	if !ok {
		return
	}
	if err := h.history.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Message(c, "Analysis deleted successfully")
}

// ClearHistory DELETE /api/history
func (h *Handler) ClearHistory(c *gin.Context) {
	n, err := h.history.DeleteAll(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"message": "History cleared",
		"deleted": n,
	})
}
