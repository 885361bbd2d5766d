package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"newsscope/pkg/ctxcall"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// Razorpay 订单 + 签名校验模式
type Razorpay struct {
	client        *razorpay.Client
	keyID         string
	keySecret     string
	webhookSecret string
	timeout       time.Duration
}

func NewRazorpay(keyID, keySecret, webhookSecret string, timeout time.Duration) *Razorpay {
	return &Razorpay{
		client:        razorpay.NewClient(keyID, keySecret),
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		timeout:       timeout,
	}
}

func (r *Razorpay) Name() string {
	return "razorpay"
}

// PublicKey 前端 checkout 使用的 key_id
func (r *Razorpay) PublicKey() string {
	return r.keyID
}

func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":          req.AmountMinor,
		"currency":        req.Currency,
		"receipt":         req.Receipt,
		"notes":           notes,
		"payment_capture": 1,
	}

	body, err := ctxcall.Do(ctx, func() (map[string]interface{}, error) {
		return r.client.Order.Create(data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay 创建订单失败: %w", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay 返回缺少订单号: %v", body)
	}
	return &Order{ID: id}, nil
}

// VerifyPayment 校验 checkout 回传的 HMAC-SHA256(order_id|payment_id)
func (r *Razorpay) VerifyPayment(_ context.Context, orderID, paymentID, signature string) error {
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	if !utils.VerifyPaymentSignature(params, signature, r.keySecret) {
		return ErrInvalidSignature
	}
	return nil
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Status           string `json:"status"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// ParseWebhook 未配置 webhook secret 时拒绝所有回调
func (r *Razorpay) ParseWebhook(body []byte, signature string) (*WebhookEvent, error) {
	if r.webhookSecret == "" || signature == "" {
		return nil, ErrInvalidSignature
	}
	if !utils.VerifyWebhookSignature(string(body), signature, r.webhookSecret) {
		return nil, ErrInvalidSignature
	}

	var hook razorpayWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("解析 razorpay 回调失败: %w", err)
	}

	payment := hook.Payload.Payment.Entity
	orderID := payment.OrderID
	if orderID == "" {
		orderID = hook.Payload.Order.Entity.ID
	}

	event := &WebhookEvent{Type: EventIgnored, OrderID: orderID, PaymentID: payment.ID}
	switch hook.Event {
	case "payment.captured", "order.paid":
		event.Type = EventCaptured
	case "payment.failed":
		event.Type = EventFailed
		event.Reason = payment.ErrorDescription
	}
	return event, nil
}

// FetchOrder 查询订单下是否已有成功扣款
func (r *Razorpay) FetchOrder(ctx context.Context, orderID string) (*OrderStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := ctxcall.Do(ctx, func() (map[string]interface{}, error) {
		return r.client.Order.Payments(orderID, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay 查询订单支付失败: %w", err)
	}

	items, _ := body["items"].([]interface{})
	for _, item := range items {
		p, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if status, _ := p["status"].(string); status == "captured" {
			id, _ := p["id"].(string)
			return &OrderStatus{Paid: true, PaymentID: id}, nil
		}
	}
	return &OrderStatus{}, nil
}
