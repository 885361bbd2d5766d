package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsscope/internal/config"
	"newsscope/internal/handler"
	"newsscope/internal/infrastructure/cache"
	"newsscope/internal/infrastructure/database"
	"newsscope/internal/infrastructure/gateway"
	"newsscope/internal/infrastructure/llm"
	"newsscope/internal/infrastructure/lock"
	"newsscope/internal/infrastructure/mail"
	"newsscope/internal/infrastructure/mq"
	"newsscope/internal/job"
	"newsscope/internal/repository"
	"newsscope/internal/service"
	"newsscope/pkg/idgen"
	"newsscope/pkg/logger"
	"newsscope/pkg/session"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	workerID := flag.Int64("worker-id", 1, "雪花算法机器ID")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zl, err := logger.New(cfg.Mode())
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, *workerID, zl); err != nil {
		zl.Fatal("服务异常退出", zap.Error(err))
	}
}

func run(cfg *config.Config, workerID int64, zl *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids, err := idgen.New(workerID)
	if err != nil {
		return err
	}

	db, err := database.Open(&cfg.Database, zl)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	// Redis 可选：未启用时账户锁退化为进程内锁，注销只清除 cookie
	var (
		rdb     *redis.Client
		locker  lock.Locker = lock.NewLocalLocker()
		revoker session.Revoker
	)
	if cfg.Redis.Enabled {
		rdb, err = cache.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
		revoker = session.NewRedisRevoker(rdb)
	} else {
		zl.Warn("Redis 未启用，账户锁仅在单实例内有效")
	}

	secret := cfg.Session.Secret
	if secret == "" {
		secret = "dev-secret-change-me"
		zl.Warn("未配置 session.secret，使用开发默认值")
	}
	sessions := session.NewManager(secret, time.Duration(cfg.Session.MaxAgeHours)*time.Hour, revoker)

	outboxRepo := repository.NewOutboxRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	events := service.NewEventWriter(outboxRepo, ids, &cfg.Kafka)

	ledger := service.NewLedgerService(db, locker, ids, events, zl)

	gw := newGateway(&cfg.Payment, zl)
	orders := service.NewOrderService(db, gw, ledger, ids, events, zl)

	analyzer, closeAnalyzer, err := newAnalyzer(ctx, &cfg.LLM, zl)
	if err != nil {
		return err
	}
	defer closeAnalyzer()
	analysis := service.NewAnalysisService(ledger, analyzer, analysisRepo, service.AnalysisOptions{
		Cost:            cfg.Credits.AnalysisCost,
		RefundOnFailure: cfg.Business.RefundOnAnalyzerFailure,
	}, zl)

	var mailer service.EmailSender
	if cfg.Mail.APIKey != "" {
		mailer = mail.NewResendSender(cfg.Mail.APIKey, cfg.Mail.FromAddress, cfg.Mail.FromName,
			time.Duration(cfg.Mail.TimeoutSeconds)*time.Second)
	} else {
		zl.Warn("邮件未配置，重置密码和反馈只写日志")
	}

	auth := service.NewAuthService(db, ledger, sessions, mailer, service.AuthOptions{
		SignupBonus: cfg.Credits.SignupBonus,
		FrontendURL: cfg.Server.FrontendURL,
	}, zl)

	h := handler.NewHandler(handler.Deps{
		DB:             db,
		Auth:           auth,
		Ledger:         ledger,
		Orders:         orders,
		Analysis:       analysis,
		History:        service.NewHistoryService(analysisRepo, zl),
		Feedback:       service.NewFeedbackService(mailer, cfg.Mail.FeedbackTo, zl),
		Cookie:         handler.CookieOptions{Name: cfg.Session.CookieName, Secure: cfg.Session.Secure},
		MailConfigured: mailer != nil,
		Log:            zl,
	})

	// 后台任务
	if cfg.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(&cfg.Kafka)
		if err != nil {
			return err
		}
		publisher := mq.NewKafkaPublisher(producer)
		defer publisher.Close()

		sender := job.NewOutboxSender(outboxRepo, publisher, cfg.Business.MaxRetryCount, zl)
		go sender.Start(ctx)
		defer sender.Stop()
	}
	if cfg.Jobs.Enabled && gw != nil {
		reconcile := job.NewOrderReconcileJob(orders, time.Duration(cfg.Business.ReconcileAfterMinutes)*time.Minute, zl)
		go reconcile.Start(ctx)
		defer reconcile.Stop()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.SetupRouter(h, cfg, zl),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("服务启动", zap.Int("port", cfg.Server.Port), zap.String("mode", cfg.Mode()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	zl.Info("正在关闭服务...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("服务关闭异常", zap.Error(err))
	}
	zl.Info("服务已关闭")
	return nil
}

// newGateway 凭证不全时返回 nil，下单接口返回 503
func newGateway(cfg *config.PaymentConfig, zl *zap.Logger) service.PaymentGateway {
	if !cfg.GatewayConfigured() {
		zl.Warn("支付渠道未配置", zap.String("provider", cfg.Provider))
		return nil
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if cfg.Provider == "stripe" {
		return gateway.NewStripe(cfg.StripeKey, cfg.StripePubKey, cfg.WebhookSecret, timeout)
	}
	return gateway.NewRazorpay(cfg.KeyID, cfg.KeySecret, cfg.WebhookSecret, timeout)
}

// newAnalyzer 未配置 API key 时返回 nil，分析接口返回 503
func newAnalyzer(ctx context.Context, cfg *config.LLMConfig, zl *zap.Logger) (service.Analyzer, func(), error) {
	noop := func() {}
	if cfg.APIKey == "" {
		zl.Warn("LLM 未配置", zap.String("provider", cfg.Provider))
		return nil, noop, nil
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if cfg.Provider == "openai" {
		return llm.NewOpenAIAnalyzer(cfg.APIKey, cfg.Model, cfg.BaseURL, timeout), noop, nil
	}
	g, err := llm.NewGeminiAnalyzer(ctx, cfg.APIKey, cfg.Model, timeout)
	if err != nil {
		return nil, noop, err
	}
	return g, func() { g.Close() }, nil
}
