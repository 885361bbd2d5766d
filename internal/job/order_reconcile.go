package job

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reconciler 对账入口，由 service.OrderService 实现
type Reconciler interface {
	Reconcile(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// OrderReconcileJob 定期补单：渠道已支付但客户端未回调 verify 的订单
type OrderReconcileJob struct {
	orders    Reconciler
	olderThan time.Duration
	log       *zap.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	interval  time.Duration
	batchSize int
}

func NewOrderReconcileJob(orders Reconciler, olderThan time.Duration, log *zap.Logger) *OrderReconcileJob {
	return &OrderReconcileJob{
		orders:    orders,
		olderThan: olderThan,
		log:       log.Named("order_reconcile"),
		stopCh:    make(chan struct{}),
		interval:  time.Minute,
		batchSize: 50,
	}
}

func (j *OrderReconcileJob) Start(ctx context.Context) {
	j.log.Info("订单对账任务启动", zap.Duration("older_than", j.olderThan))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.log.Info("任务停止")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *OrderReconcileJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *OrderReconcileJob) RunOnce(ctx context.Context) {
	captured, err := j.orders.Reconcile(ctx, j.olderThan, j.batchSize)
	if err != nil {
		j.log.Error("订单对账失败", zap.Error(err))
		return
	}
	if captured > 0 {
		j.log.Info("本次对账补单完成", zap.Int("captured", captured))
	}
}
