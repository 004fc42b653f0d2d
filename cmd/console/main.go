package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/modguard/internal/appeal"
	"github.com/xela07ax/modguard/internal/audit"
	"github.com/xela07ax/modguard/internal/console/handler"
	"github.com/xela07ax/modguard/internal/console/server"
	"github.com/xela07ax/modguard/internal/console/service"
	"github.com/xela07ax/modguard/internal/domain"
	"github.com/xela07ax/modguard/internal/enforce"
	"github.com/xela07ax/modguard/internal/infra"
	"github.com/xela07ax/modguard/internal/infra/auth"
	"github.com/xela07ax/modguard/internal/redact"
	"github.com/xela07ax/modguard/internal/repository/postgres"
	"github.com/xela07ax/modguard/internal/repository/sqlite"
	"go.uber.org/zap"
)

// consoleStorage — все, что нужно админке от персистентности.
type consoleStorage interface {
	appeal.Repository
	enforce.BanRepository

	FetchEntries(ctx context.Context, identity string, limit int) ([]audit.Entry, error)
	GetModerationStats(ctx context.Context) (*domain.ModerationStats, error)
	GetReviewerByUsername(ctx context.Context, username string) (*domain.Reviewer, error)

	Ping(ctx context.Context) error
	Close()
}

// alwaysEnforced: Console смотрит на записи Ban Lifecycle напрямую,
// рубильник на операторские операции не влияет.
type alwaysEnforced struct{}

func (alwaysEnforced) Enabled() bool { return true }

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инициализация ресурсов
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	store := mustOpenStorage(ctx, cfg, logger)
	defer store.Close()

	// RSA пара: открытый ключ проверяет токены, закрытый подписывает
	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("public key load failed", zap.Error(err))
	}
	privKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("private key load failed", zap.Error(err))
	}

	// 3. Инициализация слоев (Dependency Injection)
	validator := auth.NewBaseValidator(pubKey)

	bans := enforce.NewLifecycle(store, alwaysEnforced{}, rdb, logger)
	appeals := appeal.NewService(store, bans, redact.New(), logger)

	authService := service.NewAuthService(store, privKey, cfg.Auth.TokenTTL)
	adminService := service.NewAdminService(rdb, store, bans, validator, logger)

	consoleSrv := server.NewConsoleServer(
		cfg,
		logger,
		adminService,
		handler.NewAuthHandler(authService),
		handler.NewAppealHandler(appeals),
		handler.NewAdminHandler(adminService),
		handler.NewAuditHandler(adminService),
	)

	// 4. Запуск сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      consoleSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("console API stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("console API exited properly")
}

func mustOpenStorage(ctx context.Context, cfg *infra.Config, logger *zap.Logger) consoleStorage {
	var (
		store consoleStorage
		err   error
	)

	switch cfg.Storage.Driver {
	case "sqlite":
		store, err = sqlite.OpenDB(cfg.Storage.SQLitePath)
	case "postgres", "":
		if cfg.Storage.URL == "" {
			logger.Fatal("storage.url is required for the postgres driver")
		}
		store, err = postgres.NewRepo(ctx, cfg.Storage.URL, cfg.Storage.MaxConns, cfg.Storage.MinConns)
	default:
		logger.Fatal("unknown storage driver", zap.String("driver", cfg.Storage.Driver))
	}
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}

	return store
}
