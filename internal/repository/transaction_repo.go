package repository

import (
	"context"

	"newsscope/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.CreditTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// ListByUserID 最新的在前
func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*model.CreditTransaction, error) {
	var transactions []*model.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}

// ListAllByUserID 按写入顺序返回，用于对账
func (r *TransactionRepository) ListAllByUserID(ctx context.Context, userID int64) ([]*model.CreditTransaction, error) {
	var transactions []*model.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&transactions).Error
	return transactions, err
}

// GetPurchaseByOrderID 订单对应的入账流水，不存在返回 nil
func (r *TransactionRepository) GetPurchaseByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.CreditTransaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans []*model.CreditTransaction
	err := tx.WithContext(ctx).
		Where("order_id = ? AND transaction_type = ?", orderID, model.TransactionTypePurchase).
		Limit(1).
		Find(&trans).Error
	if err != nil || len(trans) == 0 {
		return nil, err
	}
	return trans[0], nil
}

func (r *TransactionRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.CreditTransaction{}).Count(&n).Error
	return n, err
}
