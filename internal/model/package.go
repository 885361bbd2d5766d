package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CreditPackage 积分套餐，价格单位为元（INR）
type CreditPackage struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Credits     int64           `json:"credits"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Popular     bool            `json:"popular,omitempty"`
}

// MinorUnits 以分（paise）为单位的金额
func (p CreditPackage) MinorUnits() int64 {
	return p.Price.Shift(2).IntPart()
}

var creditPackages = map[string]CreditPackage{
	"10": {
		ID:          "10",
		Name:        "Starter Pack",
		Credits:     10,
		Price:       decimal.NewFromInt(30),
		Currency:    "INR",
		Description: "10 news analyses",
	},
	"20": {
		ID:          "20",
		Name:        "Value Pack",
		Credits:     20,
		Price:       decimal.NewFromInt(50),
		Currency:    "INR",
		Description: "20 news analyses",
		Popular:     true,
	},
	"50": {
		ID:          "50",
		Name:        "Pro Pack",
		Credits:     50,
		Price:       decimal.NewFromInt(100),
		Currency:    "INR",
		Description: "50 news analyses",
	},
	"100": {
		ID:          "100",
		Name:        "Power Pack",
		Credits:     100,
		Price:       decimal.NewFromInt(180),
		Currency:    "INR",
		Description: "100 news analyses",
	},
}

func LookupPackage(id string) (CreditPackage, bool) {
	p, ok := creditPackages[id]
	return p, ok
}

// Packages 按积分数升序
func Packages() []CreditPackage {
	list := make([]CreditPackage, 0, len(creditPackages))
	for _, p := range creditPackages {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Credits < list[j].Credits })
	return list
}
