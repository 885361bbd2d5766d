package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// Stripe PaymentIntent 模式
// order_id 为 PaymentIntent ID，前端以 client_secret 作为签名回传
type Stripe struct {
	api           *client.API
	publishable   string
	webhookSecret string
}

func NewStripe(secretKey, publishableKey, webhookSecret string, timeout time.Duration) *Stripe {
	backends := stripe.NewBackends(&http.Client{Timeout: timeout})
	return &Stripe{
		api:           client.New(secretKey, backends),
		publishable:   publishableKey,
		webhookSecret: webhookSecret,
	}
}

func (s *Stripe) Name() string {
	return "stripe"
}

func (s *Stripe) PublicKey() string {
	return s.publishable
}

func (s *Stripe) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("receipt", req.Receipt)
	for k, v := range req.Notes {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe 创建 PaymentIntent 失败: %w", err)
	}
	return &Order{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (s *Stripe) fetch(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return s.api.PaymentIntents.Get(id, params)
}

// VerifyPayment 以渠道侧状态为准：必须 succeeded 且 client_secret 匹配
func (s *Stripe) VerifyPayment(ctx context.Context, orderID, paymentID, signature string) error {
	pi, err := s.fetch(ctx, orderID)
	if err != nil {
		return fmt.Errorf("stripe 查询 PaymentIntent 失败: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(pi.ClientSecret), []byte(signature)) != 1 {
		return ErrInvalidSignature
	}
	if paymentID != pi.ID && (pi.LatestCharge == nil || pi.LatestCharge.ID != paymentID) {
		return ErrInvalidSignature
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return ErrPaymentNotDone
	}
	return nil
}

func (s *Stripe) ParseWebhook(body []byte, signature string) (*WebhookEvent, error) {
	if s.webhookSecret == "" {
		return nil, ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(body, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, ErrInvalidSignature
	}

	var pi stripe.PaymentIntent
	if event.Data == nil || json.Unmarshal(event.Data.Raw, &pi) != nil || pi.ID == "" {
		return &WebhookEvent{Type: EventIgnored}, nil
	}

	out := &WebhookEvent{Type: EventIgnored, OrderID: pi.ID, PaymentID: pi.ID}
	switch event.Type {
	case "payment_intent.succeeded":
		out.Type = EventCaptured
	case "payment_intent.payment_failed":
		out.Type = EventFailed
		if pi.LastPaymentError != nil {
			out.Reason = pi.LastPaymentError.Msg
		}
	}
	return out, nil
}

func (s *Stripe) FetchOrder(ctx context.Context, orderID string) (*OrderStatus, error) {
	pi, err := s.fetch(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("stripe 查询 PaymentIntent 失败: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return &OrderStatus{}, nil
	}
	return &OrderStatus{Paid: true, PaymentID: pi.ID}, nil
}
