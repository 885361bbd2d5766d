package handler

import (
	"newsscope/pkg/response"

	"github.com/gin-gonic/gin"
)

type feedbackRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Feedback 匿名反馈，转发到运营邮箱
// POST /api/feedback
func (h *Handler) Feedback(c *gin.Context) {
	var req feedbackRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.feedback.Send(c.Request.Context(), req.Name, req.Email, req.Message); err != nil {
		h.fail(c, err)
		return
	}
	response.Message(c, "Thank you for your feedback")
}
