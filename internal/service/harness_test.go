package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"newsscope/internal/config"
	"newsscope/internal/infrastructure/gateway"
	"newsscope/internal/infrastructure/llm"
	"newsscope/internal/infrastructure/lock"
	"newsscope/internal/model"
	"newsscope/internal/repository"
	"newsscope/internal/testutil"
	"newsscope/pkg/idgen"
	"newsscope/pkg/session"

	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	createErr error
	created   []gateway.OrderRequest
	paid      map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{paid: make(map[string]string)}
}

func (g *fakeGateway) Name() string      { return "razorpay" }
func (g *fakeGateway) PublicKey() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	g.created = append(g.created, req)
	return &gateway.Order{ID: fmt.Sprintf("order_test_%d", g.seq)}, nil
}

// VerifyPayment 签名必须是 "sig_<orderID>_<paymentID>"
func (g *fakeGateway) VerifyPayment(_ context.Context, orderID, paymentID, signature string) error {
	if signature != validSignature(orderID, paymentID) {
		return gateway.ErrInvalidSignature
	}
	return nil
}

// ParseWebhook body 为 JSON 编码的 gateway.WebhookEvent，签名固定为 "whsec"
func (g *fakeGateway) ParseWebhook(body []byte, signature string) (*gateway.WebhookEvent, error) {
	if signature != "whsec" {
		return nil, gateway.ErrInvalidSignature
	}
	var ev gateway.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (g *fakeGateway) FetchOrder(_ context.Context, orderID string) (*gateway.OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pid, ok := g.paid[orderID]; ok {
		return &gateway.OrderStatus{Paid: true, PaymentID: pid}, nil
	}
	return &gateway.OrderStatus{}, nil
}

func validSignature(orderID, paymentID string) string {
	return "sig_" + orderID + "_" + paymentID
}

type fakeAnalyzer struct {
	calls  atomic.Int32
	err    error
	result *llm.Result
}

func (a *fakeAnalyzer) Model() string { return "fake-model" }

func (a *fakeAnalyzer) Analyze(_ context.Context, _, text string) (*llm.Result, error) {
	a.calls.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	if a.result != nil {
		return a.result, nil
	}
	verdict := model.VerdictReal
	if strings.Contains(strings.ToLower(text), "aliens") {
		verdict = model.VerdictFake
	}
	return &llm.Result{
		Verdict:                 verdict,
		Confidence:              80,
		Summary:                 "summary",
		DetailedAnalysis:        "details",
		RedFlags:                []string{"flag"},
		VerificationSuggestions: []string{"check"},
		KeyClaims:               []string{"claim"},
	}, nil
}

type sentMail struct {
	to, subject, html string
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, html string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, html})
	return fmt.Sprintf("email_%d", len(m.sent)), nil
}

type harness struct {
	db       *gorm.DB
	gw       *fakeGateway
	analyzer *fakeAnalyzer
	mailer   *fakeMailer
	ledger   *LedgerService
	orders   *OrderService
	analysis *AnalysisService
	auth     *AuthService
	history  *HistoryService
	userRepo *repository.UserRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, AnalysisOptions{Cost: 1})
}

func newHarnessWith(t *testing.T, opts AnalysisOptions) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	log := zaptest.NewLogger(t)
	ids, err := idgen.New(1)
	if err != nil {
		t.Fatalf("idgen: %v", err)
	}
	events := NewEventWriter(repository.NewOutboxRepository(db), ids, &config.KafkaConfig{
		Enabled: true,
		Topic:   config.KafkaTopicConfig{CreditEvents: "credit", PaymentEvents: "payment"},
	})

	h := &harness{
		db:       db,
		gw:       newFakeGateway(),
		analyzer: &fakeAnalyzer{},
		mailer:   &fakeMailer{},
		userRepo: repository.NewUserRepository(db),
	}
	h.ledger = NewLedgerService(db, lock.NewLocalLocker(), ids, events, log)
	h.orders = NewOrderService(db, h.gw, h.ledger, ids, events, log)
	analysisRepo := repository.NewAnalysisRepository(db)
	h.analysis = NewAnalysisService(h.ledger, h.analyzer, analysisRepo, opts, log)
	h.history = NewHistoryService(analysisRepo, log)
	sessions := session.NewManager("test-secret", time.Hour, nil)
	h.auth = NewAuthService(db, h.ledger, sessions, h.mailer, AuthOptions{
		SignupBonus: 5,
		FrontendURL: "http://localhost:3000",
	}, log)
	return h
}

// createUser 建用户并通过账本入账 credits
func (h *harness) createUser(t *testing.T, credits int64) int64 {
	t.Helper()
	ctx := context.Background()
	u := &model.User{
		Email:        fmt.Sprintf("user%d@example.com", userSeq.Add(1)),
		Name:         "Test User",
		PasswordHash: "x",
		IsActive:     true,
	}
	if err := h.userRepo.Create(ctx, nil, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if credits > 0 {
		if _, err := h.ledger.Add(ctx, AddRequest{UserID: u.ID, Amount: credits, Description: "seed"}); err != nil {
			t.Fatalf("seed credits: %v", err)
		}
	}
	return u.ID
}

var userSeq atomic.Int64

func (h *harness) balance(t *testing.T, userID int64) *Balance {
	t.Helper()
	b, err := h.ledger.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	return b
}

func (h *harness) count(t *testing.T, m interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := h.db.Model(m)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// assertLedger 每条流水自洽且重放结果与余额一致
func (h *harness) assertLedger(t *testing.T, userID int64) {
	t.Helper()
	report, err := h.ledger.VerifyAccount(context.Background(), userID)
	if err != nil {
		t.Fatalf("VerifyAccount: %v", err)
	}
	if !report.OK() {
		t.Fatalf("ledger does not reconcile: %+v", report)
	}
}

func mustKind(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
