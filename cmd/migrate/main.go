package main

import (
	"context"
	"flag"
	"log"
	"os"

	"newsscope/internal/config"
	"newsscope/internal/infrastructure/database"
	"newsscope/internal/infrastructure/lock"
	"newsscope/internal/model"
	"newsscope/internal/repository"
	"newsscope/internal/service"
	"newsscope/pkg/idgen"
	"newsscope/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const verifyBatch = 200

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	verify := flag.Bool("verify", false, "迁移后重放全部账户流水并核对余额")
	stats := flag.Bool("stats", false, "迁移后输出数据统计")
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

	db, err := database.Open(&cfg.Database, zl)
	if err != nil {
		zl.Fatal("连接数据库失败", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zl.Fatal("迁移失败", zap.Error(err))
	}
	zl.Info("迁移完成", zap.String("driver", cfg.Database.Driver))

	ctx := context.Background()
	if *stats {
		if err := printStats(ctx, db, zl); err != nil {
			zl.Fatal("统计失败", zap.Error(err))
		}
	}
	if *verify {
		broken, err := verifyLedger(ctx, db, zl)
		if err != nil {
			zl.Fatal("核对失败", zap.Error(err))
		}
		if broken > 0 {
			zl.Error("存在余额与流水不一致的账户", zap.Int("accounts", broken))
			os.Exit(1)
		}
		zl.Info("全部账户核对通过")
	}
}

func printStats(ctx context.Context, db *gorm.DB, zl *zap.Logger) error {
	users, err := repository.NewUserRepository(db).Count(ctx)
	if err != nil {
		return err
	}
	analyses, err := repository.NewAnalysisRepository(db).Count(ctx)
	if err != nil {
		return err
	}
	transactions, err := repository.NewTransactionRepository(db).Count(ctx)
	if err != nil {
		return err
	}
	credits, used, err := repository.NewAccountRepository(db).TotalCredits(ctx)
	if err != nil {
		return err
	}
	orders, err := repository.NewOrderRepository(db).CountByStatus(ctx)
	if err != nil {
		return err
	}
	pending, err := repository.NewOutboxRepository(db).CountByStatus(ctx, model.OutboxStatusPending)
	if err != nil {
		return err
	}

	zl.Info("数据统计",
		zap.Int64("users", users),
		zap.Int64("analyses", analyses),
		zap.Int64("transactions", transactions),
		zap.Int64("credits_outstanding", credits),
		zap.Int64("credits_used", used),
		zap.Any("orders", orders),
		zap.Int64("outbox_pending", pending),
	)
	return nil
}

// verifyLedger 分批遍历用户，返回核对失败的账户数
func verifyLedger(ctx context.Context, db *gorm.DB, zl *zap.Logger) (int, error) {
	ids, err := idgen.New(0)
	if err != nil {
		return 0, err
	}
	ledger := service.NewLedgerService(db, lock.NewLocalLocker(), ids, nil, zl)
	userRepo := repository.NewUserRepository(db)

	var after int64
	broken := 0
	for {
		batch, err := userRepo.ListIDs(ctx, after, verifyBatch)
		if err != nil {
			return broken, err
		}
		if len(batch) == 0 {
			return broken, nil
		}
		for _, uid := range batch {
			report, err := ledger.VerifyAccount(ctx, uid)
			if err != nil {
				return broken, err
			}
			if !report.OK() {
				broken++
				zl.Warn("账户核对失败", zap.Any("report", report))
			}
		}
		after = batch[len(batch)-1]
	}
}
