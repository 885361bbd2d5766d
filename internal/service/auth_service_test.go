package service

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"testing"
	"time"

	"newsscope/internal/model"
	"newsscope/pkg/session"
)

func TestSignupGrantsBonusThroughLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess, err := h.auth.Signup(ctx, "  Alice@Example.COM ", "secret1", "Alice")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if sess.User.Email != "alice@example.com" || sess.User.Credits != 5 || sess.Token == "" {
		t.Errorf("session = %+v", sess)
	}

	list, _ := h.ledger.ListTransactions(ctx, sess.User.ID, 0)
	if len(list) != 1 || list[0].TransactionType != model.TransactionTypePurchase || list[0].Description != "Signup bonus" {
		t.Errorf("transactions = %+v", list)
	}
	h.assertLedger(t, sess.User.ID)

	if _, err := h.auth.Authenticate(ctx, sess.Token); err != nil {
		t.Errorf("Authenticate: %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.auth.Signup(ctx, "bob@example.com", "secret1", "Bob"); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	cases := []struct {
		name, email, password, user string
		want                        error
	}{
		{"missing name", "x@example.com", "secret1", "", ErrMissingFields},
		{"bad email", "not-an-email", "secret1", "X", ErrInvalidEmail},
		{"weak password", "x@example.com", "123", "X", ErrWeakPassword},
		{"duplicate", "BOB@example.com", "secret1", "Bob", ErrUserExists},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.auth.Signup(ctx, tc.email, tc.password, tc.user)
			mustKind(t, err, tc.want)
		})
	}
	if n := h.count(t, &model.User{}, ""); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, _ := h.auth.Signup(ctx, "carol@example.com", "secret1", "Carol")

	sess, err := h.auth.Login(ctx, "CAROL@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.User.LastLogin == nil {
		t.Error("last_login not set")
	}

	_, err = h.auth.Login(ctx, "carol@example.com", "wrong-password")
	mustKind(t, err, ErrInvalidCredentials)
	_, err = h.auth.Login(ctx, "nobody@example.com", "secret1")
	mustKind(t, err, ErrInvalidCredentials)

	h.db.Model(&model.User{}).Where("id = ?", created.User.ID).Update("is_active", false)
	_, err = h.auth.Login(ctx, "carol@example.com", "secret1")
	mustKind(t, err, ErrAccountDisabled)
	if _, err := h.auth.Authenticate(ctx, sess.Token); !errors.Is(err, session.ErrInvalidToken) {
		t.Errorf("Authenticate disabled user = %v", err)
	}
}

var tokenPattern = regexp.MustCompile(`reset-password\?token=([^"&\s]+)`)

func TestForgotAndResetPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.auth.Signup(ctx, "dave@example.com", "secret1", "Dave")

	if err := h.auth.ForgotPassword(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("ForgotPassword(unknown) = %v", err)
	}
	if len(h.mailer.sent) != 0 {
		t.Fatal("no mail expected for unknown address")
	}

	if err := h.auth.ForgotPassword(ctx, "dave@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if len(h.mailer.sent) != 1 || h.mailer.sent[0].to != "dave@example.com" {
		t.Fatalf("sent = %+v", h.mailer.sent)
	}
	m := tokenPattern.FindStringSubmatch(h.mailer.sent[0].html)
	if m == nil {
		t.Fatalf("no reset link in %q", h.mailer.sent[0].html)
	}
	token, _ := url.QueryUnescape(m[1])

	mustKind(t, h.auth.ResetPassword(ctx, token, "123"), ErrWeakPassword)
	if err := h.auth.ResetPassword(ctx, token, "newsecret"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	mustKind(t, h.auth.ResetPassword(ctx, token, "another1"), ErrInvalidResetToken)

	if _, err := h.auth.Login(ctx, "dave@example.com", "newsecret"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}

func TestForgotPasswordHidesMailFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.auth.Signup(ctx, "gina@example.com", "secret1", "Gina"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	h.mailer.err = errors.New("resend down")

	known := h.auth.ForgotPassword(ctx, "gina@example.com")
	unknown := h.auth.ForgotPassword(ctx, "nobody@example.com")
	if known != nil || unknown != nil {
		t.Fatalf("known = %v, unknown = %v, want both nil", known, unknown)
	}

	user, err := h.userRepo.GetByEmail(ctx, "gina@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if user.ResetToken == nil || user.ResetTokenExpiry == nil {
		t.Error("reset token should stay stored when mail fails")
	}
}

func TestResetTokenExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.auth.Signup(ctx, "erin@example.com", "secret1", "Erin")
	h.auth.ForgotPassword(ctx, "erin@example.com")
	token, _ := url.QueryUnescape(tokenPattern.FindStringSubmatch(h.mailer.sent[0].html)[1])

	h.auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	mustKind(t, h.auth.ResetPassword(ctx, token, "newsecret"), ErrInvalidResetToken)
}

func TestDeleteAccountCascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sess, _ := h.auth.Signup(ctx, "frank@example.com", "secret1", "Frank")
	uid := sess.User.ID
	keep := h.createUser(t, 3)

	if _, err := h.analysis.Analyze(ctx, uid, "", validNews); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := h.orders.CreateOrder(ctx, uid, "10"); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	claims, _ := h.auth.Authenticate(ctx, sess.Token)
	if err := h.auth.DeleteAccount(ctx, uid, claims); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	for name, m := range map[string]interface{}{
		"analysis_history":    &model.AnalysisRecord{},
		"payment_orders":      &model.PaymentOrder{},
		"credit_transactions": &model.CreditTransaction{},
		"outbox_message":      &model.OutboxMessage{},
	} {
		if n := h.count(t, m, "user_id = ?", uid); n != 0 {
			t.Errorf("%s rows left = %d", name, n)
		}
	}
	_, err := h.auth.Me(ctx, uid)
	mustKind(t, err, ErrAccountNotFound)

	if b := h.balance(t, keep); b.Credits != 3 {
		t.Errorf("other account touched: %+v", b)
	}
	mustKind(t, h.auth.DeleteAccount(ctx, uid, nil), ErrAccountNotFound)
}
