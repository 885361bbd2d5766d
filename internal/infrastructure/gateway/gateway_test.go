package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpayVerifyPayment(t *testing.T) {
	r := NewRazorpay("rzp_test_key", "rzp_secret", "", time.Second)
	valid := sign("rzp_secret", "order_ABC|pay_XYZ")

	cases := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		wantErr   bool
	}{
		{"valid", "order_ABC", "pay_XYZ", valid, false},
		{"tampered payment", "order_ABC", "pay_OTHER", valid, true},
		{"tampered order", "order_OTHER", "pay_XYZ", valid, true},
		{"wrong secret", "order_ABC", "pay_XYZ", sign("other", "order_ABC|pay_XYZ"), true},
		{"empty signature", "order_ABC", "pay_XYZ", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := r.VerifyPayment(context.Background(), tc.orderID, tc.paymentID, tc.signature)
			if tc.wantErr && !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("VerifyPayment = %v, want ErrInvalidSignature", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("VerifyPayment = %v, want nil", err)
			}
		})
	}
}

func TestRazorpayParseWebhook(t *testing.T) {
	r := NewRazorpay("k", "s", "whsec", time.Second)

	captured := `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","status":"captured"}}}}`
	failed := `{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_2","order_id":"order_2","status":"failed","error_description":"card declined"}}}}`
	orderPaid := `{"event":"order.paid","payload":{"payment":{"entity":{"id":"pay_3","status":"captured"}},"order":{"entity":{"id":"order_3"}}}}`
	other := `{"event":"refund.created","payload":{}}`

	cases := []struct {
		name string
		body string
		want WebhookEvent
	}{
		{"captured", captured, WebhookEvent{Type: EventCaptured, OrderID: "order_1", PaymentID: "pay_1"}},
		{"failed", failed, WebhookEvent{Type: EventFailed, OrderID: "order_2", PaymentID: "pay_2", Reason: "card declined"}},
		{"order paid", orderPaid, WebhookEvent{Type: EventCaptured, OrderID: "order_3", PaymentID: "pay_3"}},
		{"other", other, WebhookEvent{Type: EventIgnored}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := r.ParseWebhook([]byte(tc.body), sign("whsec", tc.body))
			if err != nil {
				t.Fatalf("ParseWebhook: %v", err)
			}
			if *ev != tc.want {
				t.Errorf("event = %+v, want %+v", *ev, tc.want)
			}
		})
	}

	if _, err := r.ParseWebhook([]byte(captured), sign("nope", captured)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("bad signature = %v, want ErrInvalidSignature", err)
	}

	noSecret := NewRazorpay("k", "s", "", time.Second)
	if _, err := noSecret.ParseWebhook([]byte(captured), sign("", captured)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("missing secret = %v, want ErrInvalidSignature", err)
	}
}

func stripeHeader(secret string, body []byte, ts time.Time) string {
	unix := ts.Unix()
	return fmt.Sprintf("t=%d,v1=%s", unix, sign(secret, fmt.Sprintf("%d.%s", unix, body)))
}

func TestStripeParseWebhook(t *testing.T) {
	s := NewStripe("sk_test_x", "pk_test_x", "whsec_test", time.Second)

	body := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_1","object":"payment_intent","status":"requires_payment_method","last_payment_error":{"message":"insufficient funds"}}}}`)
	ev, err := s.ParseWebhook(body, stripeHeader("whsec_test", body, time.Now()))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	want := WebhookEvent{Type: EventFailed, OrderID: "pi_1", PaymentID: "pi_1", Reason: "insufficient funds"}
	if *ev != want {
		t.Errorf("event = %+v, want %+v", *ev, want)
	}

	succeeded := []byte(`{"id":"evt_2","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_2","object":"payment_intent","status":"succeeded"}}}`)
	ev, err = s.ParseWebhook(succeeded, stripeHeader("whsec_test", succeeded, time.Now()))
	if err != nil || ev.Type != EventCaptured || ev.OrderID != "pi_2" {
		t.Errorf("succeeded = %+v, %v", ev, err)
	}

	if _, err := s.ParseWebhook(body, stripeHeader("wrong", body, time.Now())); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("wrong secret = %v, want ErrInvalidSignature", err)
	}
	if _, err := s.ParseWebhook(body, stripeHeader("whsec_test", body, time.Now().Add(-time.Hour))); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("stale timestamp = %v, want ErrInvalidSignature", err)
	}
}
