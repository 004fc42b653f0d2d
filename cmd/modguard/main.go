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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/modguard/internal/appeal"
	"github.com/xela07ax/modguard/internal/audit"
	"github.com/xela07ax/modguard/internal/classify"
	"github.com/xela07ax/modguard/internal/enforce"
	"github.com/xela07ax/modguard/internal/engine"
	"github.com/xela07ax/modguard/internal/infra"
	"github.com/xela07ax/modguard/internal/ledger"
	"github.com/xela07ax/modguard/internal/policy"
	"github.com/xela07ax/modguard/internal/redact"
	"github.com/xela07ax/modguard/internal/repository/postgres"
	"github.com/xela07ax/modguard/internal/repository/sqlite"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// storage — совокупный контракт движка к персистентности.
// Его реализуют оба бэкенда: postgres.Repo и sqlite.Store.
type storage interface {
	ledger.Repository
	audit.StorageInterface
	enforce.BanRepository
	appeal.Repository

	Ping(ctx context.Context) error
	Close()
}

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

	// Контекст для управления жизненным циклом фоновых горутин
	// При завершении main() или срабатывании SIGTERM, cancel() остановит слушателей
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	} else {
		logger.Warn("redis disabled: single-node mode, no enforcement sync across instances")
	}

	store := mustOpenStorage(appCtx, cfg, logger)
	defer store.Close()

	// 3. Политика эскалации — невалидная таблица валит сервис на старте,
	// чтобы не работать с кривыми порогами молча
	table := policy.DefaultTable
	if err := table.Validate(); err != nil {
		logger.Fatal("escalation policy rejected", zap.Error(err))
	}

	// 4. Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	// Экспортируем метрики для Prometheus
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.Info("metrics exporter started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics exporter failed", zap.Error(err))
		}
	}()

	// 5. Control Plane: рубильник enforcement (RAM + Redis Sync)
	sw := enforce.NewSwitch(rdb, logger, cfg.Moderation.EnforcementEnabled)
	if err := sw.Init(appCtx); err != nil {
		logger.Fatal("failed to init enforcement switch", zap.Error(err))
	}
	go sw.StartListener(appCtx)

	// 6. Сборка ядра
	trail := audit.NewTrail(store, logger, cfg.Moderation.AuditBufferSize, cfg.Moderation.AuditFlushInterval)
	trail.Start()

	bans := enforce.NewLifecycle(store, sw, rdb, logger)
	bans.OnFailOpen(metrics.FailOpenTotal.Inc)
	bans.OnBreakerMove(func(to gobreaker.State) {
		metrics.BanBreakerState.Set(float64(to))
	})

	redactor := redact.New()
	appeals := appeal.NewService(store, bans, redactor, logger)

	core := engine.NewCore(
		classify.New(classify.DefaultRules),
		redactor,
		ledger.New(store, logger),
		trail,
		table,
		bans,
		sw,
		metrics,
		logger,
	)

	// 7. Фоновая гигиена: уборка истекших банов + метрика буфера аудита
	go func() {
		sweep := time.NewTicker(cfg.Moderation.SweepInterval)
		gauge := time.NewTicker(time.Second)
		defer sweep.Stop()
		defer gauge.Stop()
		for {
			select {
			case <-appCtx.Done():
				return
			case <-sweep.C:
				if _, err := bans.Sweep(appCtx); err != nil {
					logger.Error("ban sweep failed", zap.Error(err))
				}
			case <-gauge.C:
				metrics.AuditBufferFill.Set(float64(trail.BufferFill()))
			}
		}
	}()

	// 8. HTTP Server
	limiter := rate.NewLimiter(rate.Limit(cfg.Moderation.CheckRPS), cfg.Moderation.CheckBurst)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine.NewServer(core, appeals, limiter, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("moderation engine started",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.Storage.Driver),
			zap.Bool("enforcement", sw.Enabled()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("moderation engine stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Final Flush аудита строго после остановки трафика
	trail.Stop()
	logger.Info("moderation engine exited properly")
}

// mustOpenStorage выбирает бэкенд по конфигу и проверяет доступность.
func mustOpenStorage(ctx context.Context, cfg *infra.Config, logger *zap.Logger) storage {
	var (
		store storage
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
		logger.Fatal("storage unreachable", zap.Error(err))
	}

	return store
}

// Компилятор как страховка: оба бэкенда обязаны закрывать общий контракт
var (
	_ storage = (*postgres.Repo)(nil)
	_ storage = (*sqlite.Store)(nil)

	_ appeal.BanLifter        = (*enforce.Lifecycle)(nil)
	_ appeal.TextRedactor     = (*redact.Redactor)(nil)
	_ enforce.EnforcementState = (*enforce.Switch)(nil)
)
