package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsscope/internal/infrastructure/gateway"
	"newsscope/internal/model"
	"newsscope/internal/repository"
	"newsscope/pkg/idgen"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentGateway 支付渠道
type PaymentGateway interface {
	Name() string
	PublicKey() string
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	VerifyPayment(ctx context.Context, orderID, paymentID, signature string) error
	ParseWebhook(body []byte, signature string) (*gateway.WebhookEvent, error)
	FetchOrder(ctx context.Context, orderID string) (*gateway.OrderStatus, error)
}

// OrderService 购买积分的支付订单
//
// 状态机：created -> paid | failed，paid 与 failed 均为终态
// 入账顺序：先向渠道验签，再在同一个数据库事务里完成 created->paid 和积分入账
type OrderService struct {
	db        *gorm.DB
	gw        PaymentGateway
	ledger    *LedgerService
	ids       *idgen.Snowflake
	events    *EventWriter
	orderRepo *repository.OrderRepository
	userRepo  *repository.UserRepository
	log       *zap.Logger
	now       func() time.Time
}

// NewOrderService gw 为 nil 表示未配置支付渠道
func NewOrderService(db *gorm.DB, gw PaymentGateway, ledger *LedgerService, ids *idgen.Snowflake, events *EventWriter, log *zap.Logger) *OrderService {
	return &OrderService{
		db:        db,
		gw:        gw,
		ledger:    ledger,
		ids:       ids,
		events:    events,
		orderRepo: repository.NewOrderRepository(db),
		userRepo:  repository.NewUserRepository(db),
		log:       log.Named("order"),
		now:       time.Now,
	}
}

func (s *OrderService) GatewayConfigured() bool {
	return s.gw != nil
}

func (s *OrderService) Packages() []model.CreditPackage {
	return model.Packages()
}

// OrderDescriptor 前端拉起收银台所需的信息，Amount 为最小货币单位
type OrderDescriptor struct {
	OrderID       string `json:"order_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	KeyID         string `json:"key_id"`
	Credits       int64  `json:"credits"`
	PackageName   string `json:"package_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	Provider      string `json:"provider"`
	ClientSecret  string `json:"client_secret,omitempty"`
}

// CaptureResult 入账结果
type CaptureResult struct {
	OrderID      string `json:"order_id"`
	PaymentID    string `json:"payment_id"`
	CreditsAdded int64  `json:"credits_added"`
	TotalCredits int64  `json:"total_credits"`
}

// CreateOrder 校验套餐，向渠道下单并落库 created 状态的订单
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, packageID string) (*OrderDescriptor, error) {
	pkg, ok := model.LookupPackage(packageID)
	if !ok {
		return nil, ErrInvalidPackage
	}
	if s.gw == nil {
		return nil, ErrGatewayUnavailable
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	receipt := s.ids.ReceiptNo(userID)
	gwOrder, err := s.gw.CreateOrder(ctx, gateway.OrderRequest{
		AmountMinor: pkg.MinorUnits(),
		Currency:    pkg.Currency,
		Receipt:     receipt,
		Notes: map[string]string{
			"user_id":    fmt.Sprint(userID),
			"package_id": pkg.ID,
			"credits":    fmt.Sprint(pkg.Credits),
		},
	})
	if err != nil {
		s.log.Error("渠道下单失败",
			zap.String("provider", s.gw.Name()),
			zap.Int64("user_id", userID),
			zap.String("package_id", pkg.ID),
			zap.Error(err),
		)
		return nil, wrap(ErrGatewayUnavailable, err)
	}

	order := &model.PaymentOrder{
		OrderID:       gwOrder.ID,
		UserID:        userID,
		Provider:      s.gw.Name(),
		Receipt:       receipt,
		PackageID:     pkg.ID,
		Amount:        pkg.Price,
		Currency:      pkg.Currency,
		CreditsAmount: pkg.Credits,
		Status:        model.OrderStatusCreated,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("创建订单失败: %w", err)
		}
		return s.events.OrderChanged(ctx, tx, order, model.OrderStatusCreated)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("订单创建成功",
		zap.String("order_id", order.OrderID),
		zap.Int64("user_id", userID),
		zap.String("package_id", pkg.ID),
		zap.String("amount", pkg.Price.StringFixed(2)),
	)

	return &OrderDescriptor{
		OrderID:       order.OrderID,
		Amount:        pkg.MinorUnits(),
		Currency:      pkg.Currency,
		KeyID:         s.gw.PublicKey(),
		Credits:       pkg.Credits,
		PackageName:   pkg.Name,
		CustomerEmail: user.Email,
		CustomerName:  user.Name,
		Provider:      s.gw.Name(),
		ClientSecret:  gwOrder.ClientSecret,
	}, nil
}

// VerifyAndCapture 验签成功后把订单置为 paid 并入账，重复调用返回 ErrAlreadyProcessed
func (s *OrderService) VerifyAndCapture(ctx context.Context, userID int64, orderID, paymentID, signature string) (*CaptureResult, error) {
	orderID, paymentID, signature = strings.TrimSpace(orderID), strings.TrimSpace(paymentID), strings.TrimSpace(signature)
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, invalid("Missing payment details")
	}
	if s.gw == nil {
		return nil, ErrGatewayUnavailable
	}

	// 验签失败不做任何状态变更
	if err := s.gw.VerifyPayment(ctx, orderID, paymentID, signature); err != nil {
		s.log.Warn("支付验签失败",
			zap.String("order_id", orderID),
			zap.String("payment_id", paymentID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil, wrap(ErrVerificationFailed, err)
	}

	order, err := s.orderRepo.GetByOrderID(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if order.Status == model.OrderStatusPaid {
		return nil, ErrAlreadyProcessed
	}

	return s.capture(ctx, order, paymentID, signature)
}

// capture created -> paid 与积分入账在同一个事务内完成
func (s *OrderService) capture(ctx context.Context, order *model.PaymentOrder, paymentID, signature string) (*CaptureResult, error) {
	var trans *model.CreditTransaction
	err := s.ledger.WithAccountLock(ctx, order.UserID, func(tx *gorm.DB) error {
		current, err := s.orderRepo.GetByOrderIDForUpdate(ctx, tx, order.OrderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		switch current.Status {
		case model.OrderStatusPaid:
			return ErrAlreadyProcessed
		case model.OrderStatusFailed:
			s.log.Error("已失败订单收到成功支付，需要人工对账",
				zap.String("order_id", current.OrderID),
				zap.String("payment_id", paymentID),
				zap.Int64("user_id", current.UserID),
			)
			return ErrOrderNotPayable
		}

		if err := s.orderRepo.MarkPaid(ctx, tx, current.OrderID, paymentID, signature, s.now()); err != nil {
			if errors.Is(err, repository.ErrOrderStatusInvalid) {
				return ErrAlreadyProcessed
			}
			return fmt.Errorf("更新订单状态失败: %w", err)
		}

		amountPaid := current.Amount
		trans, err = s.ledger.CreditInTx(ctx, tx, AddRequest{
			UserID:      current.UserID,
			Amount:      current.CreditsAmount,
			Type:        model.TransactionTypePurchase,
			Description: fmt.Sprintf("Purchased %d credits", current.CreditsAmount),
			PaymentID:   paymentID,
			OrderID:     current.OrderID,
			AmountPaid:  &amountPaid,
		})
		if err != nil {
			return fmt.Errorf("积分入账失败: %w", err)
		}
		return s.events.OrderChanged(ctx, tx, current, model.OrderStatusPaid)
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyProcessed) {
			s.log.Error("订单入账失败，订单保持 created 可重试",
				zap.String("order_id", order.OrderID),
				zap.String("payment_id", paymentID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.log.Info("支付成功，积分已入账",
		zap.String("order_id", order.OrderID),
		zap.String("payment_id", paymentID),
		zap.Int64("user_id", order.UserID),
		zap.Int64("credits_added", trans.CreditsAmount),
		zap.Int64("total_credits", trans.CreditsAfter),
	)
	return &CaptureResult{
		OrderID:      order.OrderID,
		PaymentID:    paymentID,
		CreditsAdded: trans.CreditsAmount,
		TotalCredits: trans.CreditsAfter,
	}, nil
}

// WebhookOutcome 回调处理结果，仅用于日志和响应
type WebhookOutcome string

const (
	WebhookCaptured         WebhookOutcome = "captured"
	WebhookAlreadyProcessed WebhookOutcome = "already_processed"
	WebhookFailed           WebhookOutcome = "failed"
	WebhookIgnored          WebhookOutcome = "ignored"
)

// HandleWebhook 验证回调签名后按事件类型推进订单
// 未知订单和重复事件直接确认，避免渠道重复投递
func (s *OrderService) HandleWebhook(ctx context.Context, body []byte, signature string) (WebhookOutcome, error) {
	if s.gw == nil {
		return "", ErrGatewayUnavailable
	}
	event, err := s.gw.ParseWebhook(body, signature)
	if err != nil {
		s.log.Warn("回调验签失败", zap.Error(err))
		return "", wrap(ErrVerificationFailed, err)
	}

	switch event.Type {
	case gateway.EventCaptured:
		order, err := s.orderRepo.GetByOrderID(ctx, nil, event.OrderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				s.log.Warn("回调订单不存在", zap.String("order_id", event.OrderID))
				return WebhookIgnored, nil
			}
			return "", err
		}
		if order.Status == model.OrderStatusPaid {
			return WebhookAlreadyProcessed, nil
		}
		if _, err := s.capture(ctx, order, event.PaymentID, ""); err != nil {
			if errors.Is(err, ErrAlreadyProcessed) {
				return WebhookAlreadyProcessed, nil
			}
			return "", err
		}
		return WebhookCaptured, nil

	case gateway.EventFailed:
		if err := s.MarkFailed(ctx, event.OrderID, event.Reason); err != nil {
			if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrAlreadyProcessed) {
				return WebhookIgnored, nil
			}
			return "", err
		}
		return WebhookFailed, nil
	}

	return WebhookIgnored, nil
}

// MarkFailed created -> failed，已失败的订单重复调用视为成功
func (s *OrderService) MarkFailed(ctx context.Context, orderID, reason string) error {
	if reason == "" {
		reason = "payment failed"
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.GetByOrderIDForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		switch order.Status {
		case model.OrderStatusFailed:
			return nil
		case model.OrderStatusPaid:
			return ErrAlreadyProcessed
		}

		if err := s.orderRepo.MarkFailed(ctx, tx, orderID, reason); err != nil {
			return fmt.Errorf("更新订单状态失败: %w", err)
		}
		s.log.Info("订单已标记失败", zap.String("order_id", orderID), zap.String("reason", reason))
		return s.events.OrderChanged(ctx, tx, order, model.OrderStatusFailed)
	})
}

// Reconcile 向渠道查询超时仍未支付的订单，已支付的走正常入账流程
// 渠道未支付的订单保持 created，不主动置为 failed
func (s *OrderService) Reconcile(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if s.gw == nil {
		return 0, nil
	}
	orders, err := s.orderRepo.GetStaleCreated(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("查询待对账订单失败: %w", err)
	}

	captured := 0
	for _, order := range orders {
		if ctx.Err() != nil {
			break
		}
		status, err := s.gw.FetchOrder(ctx, order.OrderID)
		if err != nil {
			s.log.Warn("查询渠道订单失败", zap.String("order_id", order.OrderID), zap.Error(err))
			continue
		}
		if !status.Paid {
			continue
		}
		if _, err := s.capture(ctx, order, status.PaymentID, ""); err != nil {
			if !errors.Is(err, ErrAlreadyProcessed) {
				s.log.Error("对账入账失败", zap.String("order_id", order.OrderID), zap.Error(err))
			}
			continue
		}
		captured++
		s.log.Info("对账补单成功", zap.String("order_id", order.OrderID), zap.String("payment_id", status.PaymentID))
	}
	return captured, nil
}

// ListOrders 最近的订单，limit 默认 20，最大 100
func (s *OrderService) ListOrders(ctx context.Context, userID int64, limit int) ([]*model.PaymentOrder, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	return orders, nil
}
