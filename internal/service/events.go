package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"newsscope/internal/config"
	"newsscope/internal/model"
	"newsscope/internal/repository"
	"newsscope/pkg/idgen"

	"gorm.io/gorm"
)

// EventWriter 把业务事件写入 outbox，与产生事件的变更同事务提交
// 未启用 Kafka 时所有方法都是空操作
type EventWriter struct {
	outboxRepo *repository.OutboxRepository
	ids        *idgen.Snowflake
	topics     config.KafkaTopicConfig
	enabled    bool
}

func NewEventWriter(outboxRepo *repository.OutboxRepository, ids *idgen.Snowflake, cfg *config.KafkaConfig) *EventWriter {
	return &EventWriter{
		outboxRepo: outboxRepo,
		ids:        ids,
		topics:     cfg.Topic,
		enabled:    cfg.Enabled,
	}
}

func (w *EventWriter) write(ctx context.Context, tx *gorm.DB, userID int64, topic, key string, payload map[string]interface{}) error {
	if w == nil || !w.enabled {
		return nil
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	msg := &model.OutboxMessage{
		UserID:     userID,
		MessageKey: key,
		Topic:      topic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := w.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

// CreditChanged 积分流水事件，key 为流水号
func (w *EventWriter) CreditChanged(ctx context.Context, tx *gorm.DB, t *model.CreditTransaction) error {
	if w == nil || !w.enabled {
		return nil
	}
	payload := map[string]interface{}{
		"transaction_no":   t.TransactionNo,
		"user_id":          t.UserID,
		"transaction_type": t.TransactionType,
		"credits_amount":   t.CreditsAmount,
		"credits_before":   t.CreditsBefore,
		"credits_after":    t.CreditsAfter,
		"description":      t.Description,
		"occurred_at":      time.Now().UTC().Format(time.RFC3339),
	}
	if t.OrderID != nil {
		payload["order_id"] = *t.OrderID
	}
	return w.write(ctx, tx, t.UserID, w.topics.CreditEvents, t.TransactionNo, payload)
}

// OrderChanged 订单状态事件，key 为订单号加随机后缀，同一订单多次变更互不覆盖
func (w *EventWriter) OrderChanged(ctx context.Context, tx *gorm.DB, order *model.PaymentOrder, status string) error {
	if w == nil || !w.enabled {
		return nil
	}
	payload := map[string]interface{}{
		"order_id":       order.OrderID,
		"user_id":        order.UserID,
		"provider":       order.Provider,
		"package_id":     order.PackageID,
		"amount":         order.Amount.StringFixed(2),
		"currency":       order.Currency,
		"credits_amount": order.CreditsAmount,
		"status":         status,
		"occurred_at":    time.Now().UTC().Format(time.RFC3339),
	}
	return w.write(ctx, tx, order.UserID, w.topics.PaymentEvents, w.ids.EventKey(order.OrderID), payload)
}
