package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"newsscope/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type createOrderRequest struct {
	// 前端可能传字符串或数字
	PackageID json.RawMessage `json:"package_id"`
}

type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func packageID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// CreateOrder 发起积分购买
// POST /api/payment/create-order
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	desc, err := h.orders.CreateOrder(c.Request.Context(), currentUserID(c), packageID(req.PackageID))
	if err != nil {
		h.fail(c, err)
		return
	}
	fields := gin.H{
		"order_id":       desc.OrderID,
		"amount":         desc.Amount,
		"currency":       desc.Currency,
		"key_id":         desc.KeyID,
		"credits":        desc.Credits,
		"package_name":   desc.PackageName,
		"customer_email": desc.CustomerEmail,
		"customer_name":  desc.CustomerName,
		"provider":       desc.Provider,
	}
	if desc.ClientSecret != "" {
		fields["client_secret"] = desc.ClientSecret
	}
	response.OK(c, http.StatusCreated, fields)
}

// VerifyPayment 前端支付完成后回传签名，验签通过才入账
// POST /api/payment/verify
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.orders.VerifyAndCapture(c.Request.Context(), currentUserID(c), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"message":       "Payment verified successfully",
		"credits_added": result.CreditsAdded,
		"total_credits": result.TotalCredits,
	})
}

// Orders 当前用户的订单
// GET /api/payment/orders?limit=N
func (h *Handler) Orders(c *gin.Context) {
	list, err := h.orders.ListOrders(c.Request.Context(), currentUserID(c), queryLimit(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"orders": list})
}

func webhookSignature(c *gin.Context) string {
	if sig := c.GetHeader("X-Razorpay-Signature"); sig != "" {
		return sig
	}
	return c.GetHeader("Stripe-Signature")
}

// PaymentWebhook 渠道异步回调，必须读取原始 body 验签
// POST /api/payment/webhook
func (h *Handler) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, "Payload too large", "Webhook body exceeds the size limit")
			return
		}
		response.ParamError(c, "Unable to read request body")
		return
	}

	outcome, err := h.orders.HandleWebhook(c.Request.Context(), body, webhookSignature(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("支付回调处理完成", zap.String("outcome", string(outcome)), zap.String("trace_id", c.GetString(ctxTraceID)))
	response.OK(c, http.StatusOK, gin.H{"status": string(outcome)})
}
