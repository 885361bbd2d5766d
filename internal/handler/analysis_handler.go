package handler

import (
	"net/http"

	"newsscope/internal/service"
	"newsscope/pkg/response"

	"github.com/gin-gonic/gin"
)

type analyzeRequest struct {
	Headline string `json:"headline"`
	Text     string `json:"text"`
}

type batchAnalyzeRequest struct {
	Articles []service.Article `json:"articles"`
}

// Sources 分析时参考的来源目录
// GET /api/sources
func (h *Handler) Sources(c *gin.Context) {
	sources := h.analysis.ListSources()
	response.OK(c, http.StatusOK, gin.H{
		"total_sources": len(sources),
		"sources":       sources,
	})
}

// Analyze 单篇分析，扣除一次费用
// POST /api/analyze
func (h *Handler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	outcome, err := h.analysis.Analyze(c.Request.Context(), currentUserID(c), req.Headline, req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"data":              outcome.Report,
		"credits_remaining": outcome.CreditsRemaining,
	})
}

// BatchAnalyze 最多 10 篇，每篇独立扣费和返回结果
// POST /api/batch-analyze
func (h *Handler) BatchAnalyze(c *gin.Context) {
	var req batchAnalyzeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	outcome, err := h.analysis.BatchAnalyze(c.Request.Context(), currentUserID(c), req.Articles)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"total":             outcome.Total,
		"results":           outcome.Results,
		"credits_remaining": outcome.CreditsRemaining,
	})
}
