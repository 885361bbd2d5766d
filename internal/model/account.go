package model

// Account 积分账户，映射 users 表上的积分相关列
// credits >= 0 恒成立，credits_used 只增不减
// 所有变动必须和 CreditTransaction 在同一个事务中写入
type Account struct {
	UserID      int64 `gorm:"column:id;primaryKey" json:"user_id"`
	Credits     int64 `gorm:"column:credits" json:"credits"`
	CreditsUsed int64 `gorm:"column:credits_used" json:"credits_used"`
	Version     int   `gorm:"column:version" json:"-"`
}

func (Account) TableName() string {
	return "users"
}
