package repository

import (
	"context"
	"errors"

	"newsscope/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrCreditsNotEnough = errors.New("积分不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
)

// AccountRepository 读写 users 表上的积分列
// 传入 tx 的方法必须在调用方事务内使用
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.Account, error) {
	if tx == nil {
		tx = r.db
	}
	var account model.Account
	err := tx.WithContext(ctx).Where("id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByUserIDForUpdate SELECT ... FOR UPDATE，sqlite 下由驱动忽略
func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Deduct 条件扣减：credits >= amount 且版本号未变
func (r *AccountRepository) Deduct(ctx context.Context, tx *gorm.DB, userID, amount int64, version int) error {
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND credits >= ? AND version = ?", userID, amount, version).
		Updates(map[string]interface{}{
			"credits":      gorm.Expr("credits - ?", amount),
			"credits_used": gorm.Expr("credits_used + ?", amount),
			"version":      gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 同一事务内重新读取，区分余额不足和并发冲突
		account, err := r.GetByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if account.Credits < amount {
			return ErrCreditsNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}

// Increase 条件增加，版本号不匹配返回 ErrOptimisticLock
func (r *AccountRepository) Increase(ctx context.Context, tx *gorm.DB, userID, amount int64, version int) error {
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND version = ?", userID, version).
		Updates(map[string]interface{}{
			"credits": gorm.Expr("credits + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByUserID(ctx, tx, userID); err != nil {
			return err
		}
		return ErrOptimisticLock
	}

	return nil
}

// TotalCredits 全部账户的积分总额
func (r *AccountRepository) TotalCredits(ctx context.Context) (credits, used int64, err error) {
	var row struct {
		Credits int64
		Used    int64
	}
	err = r.db.WithContext(ctx).
		Model(&model.Account{}).
		Select("COALESCE(SUM(credits), 0) AS credits, COALESCE(SUM(credits_used), 0) AS used").
		Scan(&row).Error
	return row.Credits, row.Used, err
}
