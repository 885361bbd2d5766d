package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型
// ============================================================================

const (
	TransactionTypePurchase = "purchase" // 购买 / 赠送，credits 增加
	TransactionTypeDeduct   = "deduct"   // 分析扣减，credits 减少
	TransactionTypeRefund   = "refund"   // 退还，credits 增加
)

// ============================================================================
// 积分流水
// ============================================================================

// CreditTransaction 积分流水表
//
// 1. 只追加，不修改；只随用户级联删除
// 2. credits_after = credits_before ± credits_amount（方向由类型决定）
// 3. credits_amount 恒为正数
type CreditTransaction struct {
	ID              int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo   string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID          int64            `gorm:"index;not null" json:"-"`
	TransactionType string           `gorm:"type:varchar(20);not null" json:"transaction_type"`
	CreditsAmount   int64            `gorm:"not null" json:"credits_amount"`
	CreditsBefore   int64            `gorm:"not null" json:"credits_before"`
	CreditsAfter    int64            `gorm:"not null" json:"credits_after"`
	Description     string           `gorm:"type:text" json:"description"`
	PaymentID       *string          `gorm:"type:varchar(100)" json:"payment_id"`
	OrderID         *string          `gorm:"type:varchar(100);index" json:"order_id"`
	AmountPaid      *decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount_paid"`
	CreatedAt       time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

// Delta 带方向的变动量
func (t *CreditTransaction) Delta() int64 {
	if t.TransactionType == TransactionTypeDeduct {
		return -t.CreditsAmount
	}
	return t.CreditsAmount
}

// Consistent 校验前后快照与变动量是否吻合
func (t *CreditTransaction) Consistent() bool {
	return t.CreditsAmount > 0 && t.CreditsAfter-t.CreditsBefore == t.Delta() && t.CreditsAfter >= 0
}
