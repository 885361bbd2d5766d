package repository

import (
	"context"
	"errors"
	"time"

	"newsscope/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound      = errors.New("订单不存在")
	ErrOrderStatusInvalid = errors.New("订单状态不合法")
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.PaymentOrder) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.PaymentOrder, error) {
	if tx == nil {
		tx = r.db
	}
	var order model.PaymentOrder
	err := tx.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) GetByOrderIDForUpdate(ctx context.Context, tx *gorm.DB, orderID string) (*model.PaymentOrder, error) {
	var order model.PaymentOrder
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// MarkPaid created -> paid，只有仍处于 created 的订单会被更新
func (r *OrderRepository) MarkPaid(ctx context.Context, tx *gorm.DB, orderID, paymentID, signature string, paidAt time.Time) error {
	if tx == nil {
		tx = r.db
	}
	updates := map[string]interface{}{
		"status":     model.OrderStatusPaid,
		"payment_id": paymentID,
		"paid_at":    paidAt,
	}
	if signature != "" {
		updates["payment_signature"] = signature
	}

	result := tx.WithContext(ctx).
		Model(&model.PaymentOrder{}).
		Where("order_id = ? AND status = ?", orderID, model.OrderStatusCreated).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}
	return nil
}

// MarkFailed created -> failed
func (r *OrderRepository) MarkFailed(ctx context.Context, tx *gorm.DB, orderID, reason string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.PaymentOrder{}).
		Where("order_id = ? AND status = ?", orderID, model.OrderStatusCreated).
		Updates(map[string]interface{}{
			"status":         model.OrderStatusFailed,
			"failure_reason": reason,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}
	return nil
}

// GetStaleCreated 创建时间早于 before 且仍未支付的订单
func (r *OrderRepository) GetStaleCreated(ctx context.Context, before time.Time, limit int) ([]*model.PaymentOrder, error) {
	var orders []*model.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.OrderStatusCreated, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*model.PaymentOrder, error) {
	var orders []*model.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// CountByStatus 各状态订单数
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.PaymentOrder{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
