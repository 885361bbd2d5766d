package job

import (
	"context"
	"sync"
	"time"

	"newsscope/internal/model"
	"newsscope/internal/repository"

	"go.uber.org/zap"
)

// Publisher 消息投递
type Publisher interface {
	Publish(topic, key, value string) error
}

// OutboxSender 轮询 outbox 表，把待发消息投递到 Kafka
// 投递至少一次，消费方按 message key 去重
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	maxRetry   int
	log        *zap.Logger
	stopCh     chan struct{}
	stopOnce   sync.Once
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(outboxRepo *repository.OutboxRepository, publisher Publisher, maxRetry int, log *zap.Logger) *OutboxSender {
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &OutboxSender{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		maxRetry:   maxRetry,
		log:        log.Named("outbox_sender"),
		stopCh:     make(chan struct{}),
		interval:   500 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("任务停止")
			return
		case <-ticker.C:
			s.ProcessOnce(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// ProcessOnce 投递一批待发消息，返回成功条数
func (s *OutboxSender) ProcessOnce(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPending(ctx, s.batchSize)
	if err != nil {
		s.log.Error("查询消息失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.MarkSent(ctx, msg.ID); updateErr != nil {
			s.log.Error("更新消息状态失败", zap.Int64("id", msg.ID), zap.Error(updateErr))
			return false
		}
		s.log.Debug("消息发送成功",
			zap.Int64("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.String("key", msg.MessageKey),
		)
		return true
	}

	giveUp := msg.RetryCount+1 >= s.maxRetry
	s.log.Warn("消息发送失败",
		zap.Int64("id", msg.ID),
		zap.Int("retry_count", msg.RetryCount+1),
		zap.Bool("give_up", giveUp),
		zap.Error(err),
	)
	if err := s.outboxRepo.RecordFailure(ctx, msg.ID, giveUp); err != nil {
		s.log.Error("记录发送失败状态失败", zap.Int64("id", msg.ID), zap.Error(err))
	}
	return false
}
