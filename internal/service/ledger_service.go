package service

import (
	"context"
	"errors"
	"fmt"

	"newsscope/internal/infrastructure/lock"
	"newsscope/internal/model"
	"newsscope/internal/repository"
	"newsscope/pkg/idgen"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// LedgerService 积分账本
//
// 同一账户的所有变动按以下顺序串行化：
//  1. 获取账户锁 credit:lock:user:<id>
//  2. 开启数据库事务，SELECT ... FOR UPDATE 读取账户
//  3. 带版本号的条件更新 + 写流水 + 写 outbox
type LedgerService struct {
	db              *gorm.DB
	locker          lock.Locker
	ids             *idgen.Snowflake
	events          *EventWriter
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	log             *zap.Logger
}

func NewLedgerService(db *gorm.DB, locker lock.Locker, ids *idgen.Snowflake, events *EventWriter, log *zap.Logger) *LedgerService {
	return &LedgerService{
		db:              db,
		locker:          locker,
		ids:             ids,
		events:          events,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		log:             log.Named("ledger"),
	}
}

type Balance struct {
	Credits     int64 `json:"credits"`
	CreditsUsed int64 `json:"credits_used"`
}

// AddRequest 入账参数，Type 为空时按 purchase 处理
type AddRequest struct {
	UserID      int64
	Amount      int64
	Type        string
	Description string
	PaymentID   string
	OrderID     string
	AmountPaid  *decimal.Decimal
}

func (s *LedgerService) GetBalance(ctx context.Context, userID int64) (*Balance, error) {
	account, err := s.accountRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, mapAccountErr(err)
	}
	return &Balance{Credits: account.Credits, CreditsUsed: account.CreditsUsed}, nil
}

// WithAccountLock 持有账户锁执行 fn，fn 内的所有读写必须使用传入的 tx
func (s *LedgerService) WithAccountLock(ctx context.Context, userID int64, fn func(tx *gorm.DB) error) error {
	release, err := s.locker.Acquire(ctx, lock.AccountKey(userID))
	if err != nil {
		s.log.Warn("获取账户锁失败", zap.Int64("user_id", userID), zap.Error(err))
		return wrap(ErrLedgerBusy, err)
	}
	defer release()

	return s.db.WithContext(ctx).Transaction(fn)
}

// Deduct 余额充足时扣减并记录 deduct 流水，不足时不做任何修改
func (s *LedgerService) Deduct(ctx context.Context, userID, amount int64, description string) (*model.CreditTransaction, error) {
	if amount <= 0 {
		return nil, invalid("Amount must be positive")
	}

	var trans *model.CreditTransaction
	err := s.WithAccountLock(ctx, userID, func(tx *gorm.DB) error {
		account, err := s.accountRepo.GetByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return mapAccountErr(err)
		}
		if account.Credits < amount {
			return ErrInsufficientCredits
		}

		if err := s.accountRepo.Deduct(ctx, tx, userID, amount, account.Version); err != nil {
			return mapAccountErr(err)
		}

		trans = &model.CreditTransaction{
			TransactionNo:   s.ids.TransactionNo(),
			UserID:          userID,
			TransactionType: model.TransactionTypeDeduct,
			CreditsAmount:   amount,
			CreditsBefore:   account.Credits,
			CreditsAfter:    account.Credits - amount,
			Description:     description,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}
		return s.events.CreditChanged(ctx, tx, trans)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("积分扣减成功",
		zap.Int64("user_id", userID),
		zap.Int64("amount", amount),
		zap.Int64("credits_after", trans.CreditsAfter),
		zap.String("transaction_no", trans.TransactionNo),
	)
	return trans, nil
}

// Add 入账并记录 purchase 流水
func (s *LedgerService) Add(ctx context.Context, req AddRequest) (*model.CreditTransaction, error) {
	var trans *model.CreditTransaction
	err := s.WithAccountLock(ctx, req.UserID, func(tx *gorm.DB) error {
		var err error
		trans, err = s.CreditInTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("积分入账成功",
		zap.Int64("user_id", req.UserID),
		zap.String("type", trans.TransactionType),
		zap.Int64("amount", req.Amount),
		zap.Int64("credits_after", trans.CreditsAfter),
		zap.String("order_id", req.OrderID),
	)
	return trans, nil
}

// Refund 退还积分，credits_used 不回退
func (s *LedgerService) Refund(ctx context.Context, userID, amount int64, description string) (*model.CreditTransaction, error) {
	return s.Add(ctx, AddRequest{
		UserID:      userID,
		Amount:      amount,
		Type:        model.TransactionTypeRefund,
		Description: description,
	})
}

// CreditInTx 在调用方事务中入账，调用方负责持有账户锁（新建用户除外）
func (s *LedgerService) CreditInTx(ctx context.Context, tx *gorm.DB, req AddRequest) (*model.CreditTransaction, error) {
	if req.Amount <= 0 {
		return nil, invalid("Amount must be positive")
	}
	txType := req.Type
	if txType == "" {
		txType = model.TransactionTypePurchase
	}
	if txType != model.TransactionTypePurchase && txType != model.TransactionTypeRefund {
		return nil, fmt.Errorf("不支持的入账类型: %s", txType)
	}

	account, err := s.accountRepo.GetByUserIDForUpdate(ctx, tx, req.UserID)
	if err != nil {
		return nil, mapAccountErr(err)
	}
	if err := s.accountRepo.Increase(ctx, tx, req.UserID, req.Amount, account.Version); err != nil {
		return nil, mapAccountErr(err)
	}

	trans := &model.CreditTransaction{
		TransactionNo:   s.ids.TransactionNo(),
		UserID:          req.UserID,
		TransactionType: txType,
		CreditsAmount:   req.Amount,
		CreditsBefore:   account.Credits,
		CreditsAfter:    account.Credits + req.Amount,
		Description:     req.Description,
		PaymentID:       optional(req.PaymentID),
		OrderID:         optional(req.OrderID),
		AmountPaid:      req.AmountPaid,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}
	if err := s.events.CreditChanged(ctx, tx, trans); err != nil {
		return nil, err
	}
	return trans, nil
}

// ListTransactions 最近的流水，limit 默认 20，最大 100
func (s *LedgerService) ListTransactions(ctx context.Context, userID int64, limit int) ([]*model.CreditTransaction, error) {
	transactions, err := s.transactionRepo.ListByUserID(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}
	return transactions, nil
}

// AuditReport 按流水重放得到的余额与账户实际余额的对比
type AuditReport struct {
	UserID          int64 `json:"user_id"`
	Credits         int64 `json:"credits"`
	CreditsUsed     int64 `json:"credits_used"`
	ReplayedCredits int64 `json:"replayed_credits"`
	ReplayedUsed    int64 `json:"replayed_used"`
	Transactions    int   `json:"transactions"`
	// BrokenChain 前后快照不连续或单条流水自身不自洽的流水号
	BrokenChain []string `json:"broken_chain,omitempty"`
}

func (r *AuditReport) OK() bool {
	return r.Credits == r.ReplayedCredits && r.CreditsUsed == r.ReplayedUsed && len(r.BrokenChain) == 0
}

// VerifyAccount 重放账户全部流水并与余额核对
func (s *LedgerService) VerifyAccount(ctx context.Context, userID int64) (*AuditReport, error) {
	account, err := s.accountRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, mapAccountErr(err)
	}
	transactions, err := s.transactionRepo.ListAllByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}

	report := &AuditReport{
		UserID:       userID,
		Credits:      account.Credits,
		CreditsUsed:  account.CreditsUsed,
		Transactions: len(transactions),
	}
	var running int64
	for _, t := range transactions {
		if !t.Consistent() || t.CreditsBefore != running {
			report.BrokenChain = append(report.BrokenChain, t.TransactionNo)
		}
		running = t.CreditsAfter
		report.ReplayedCredits += t.Delta()
		if t.TransactionType == model.TransactionTypeDeduct {
			report.ReplayedUsed += t.CreditsAmount
		}
	}
	return report, nil
}

func mapAccountErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, repository.ErrCreditsNotEnough):
		return ErrInsufficientCredits
	case errors.Is(err, repository.ErrOptimisticLock):
		return wrap(ErrLedgerBusy, err)
	default:
		return err
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
