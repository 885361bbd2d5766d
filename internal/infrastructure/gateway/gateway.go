package gateway

import (
	"errors"
)

var (
	ErrInvalidSignature = errors.New("支付签名校验失败")
	ErrPaymentNotDone   = errors.New("支付未完成")
)

// OrderRequest 下单参数，金额以最小货币单位（分）计
type OrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Order 渠道侧订单
type Order struct {
	ID string
	// ClientSecret 仅 Stripe 返回，前端确认支付时使用
	ClientSecret string
}

// OrderStatus 渠道侧订单的支付结果
type OrderStatus struct {
	Paid      bool
	PaymentID string
}

const (
	EventCaptured = "captured"
	EventFailed   = "failed"
	EventIgnored  = "ignored"
)

// WebhookEvent 归一化后的回调事件
type WebhookEvent struct {
	Type      string
	OrderID   string
	PaymentID string
	Reason    string
}
