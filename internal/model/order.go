package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusCreated = "created"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)

// ValidStatusTransitions 订单状态机，paid / failed 为终态
var ValidStatusTransitions = map[string][]string{
	OrderStatusCreated: {OrderStatusPaid, OrderStatusFailed},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// PaymentOrder 购买积分的支付订单，order_id 由支付渠道签发
type PaymentOrder struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID          string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"order_id"`
	UserID           int64           `gorm:"index;not null" json:"-"`
	Provider         string          `gorm:"type:varchar(20);not null" json:"provider"`
	Receipt          string          `gorm:"type:varchar(64)" json:"receipt"`
	PackageID        string          `gorm:"type:varchar(20)" json:"package_id"`
	Amount           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency         string          `gorm:"type:varchar(10);not null;default:INR" json:"currency"`
	CreditsAmount    int64           `gorm:"not null" json:"credits_amount"`
	Status           string          `gorm:"type:varchar(20);index;not null;default:created" json:"status"`
	PaymentID        *string         `gorm:"type:varchar(100)" json:"payment_id"`
	PaymentSignature *string         `gorm:"type:varchar(255)" json:"-"`
	FailureReason    string          `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	PaidAt           *time.Time      `json:"paid_at"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentOrder) TableName() string {
	return "payment_orders"
}
