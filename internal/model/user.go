package model

import (
	"time"
)

// User 用户表，同时承载积分账户（见 Account）
type User struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email            string     `gorm:"type:varchar(120);uniqueIndex;not null" json:"email"`
	Name             string     `gorm:"type:varchar(100);not null" json:"name"`
	PasswordHash     string     `gorm:"type:varchar(255);not null" json:"-"`
	IsActive         bool       `gorm:"not null;default:true" json:"-"`
	LastLogin        *time.Time `json:"last_login"`
	ResetToken       *string    `gorm:"type:varchar(100);uniqueIndex" json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
	Credits          int64      `gorm:"not null;default:0" json:"credits"`
	CreditsUsed      int64      `gorm:"not null;default:0" json:"credits_used"`
	Version          int        `gorm:"not null;default:0" json:"-"` // 乐观锁版本号
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"-"`

	// 级联删除
	Transactions []CreditTransaction `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Orders       []PaymentOrder      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Analyses     []AnalysisRecord    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// ResetTokenValid 重置令牌是否仍在有效期内
func (u *User) ResetTokenValid(now time.Time) bool {
	return u.ResetToken != nil && u.ResetTokenExpiry != nil && now.Before(*u.ResetTokenExpiry)
}
