package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/modguard/internal/audit"
	"github.com/xela07ax/modguard/internal/domain"
	"github.com/xela07ax/modguard/internal/enforce"
	"github.com/xela07ax/modguard/internal/infra"
	"github.com/xela07ax/modguard/internal/infra/auth"
	"go.uber.org/zap"
)

// AdminRepository описывает требования админских операций к хранилищу
type AdminRepository interface {
	FetchEntries(ctx context.Context, identity string, limit int) ([]audit.Entry, error)
	GetModerationStats(ctx context.Context) (*domain.ModerationStats, error)
}

// AdminService — операционные рычаги Console: рубильник enforcement,
// ручной sweep, просмотр/снятие банов, аудит и дашборд.
// Embedding BaseValidator дает серверу реализацию TokenValidator.
type AdminService struct {
	*auth.BaseValidator
	repo   AdminRepository
	bans   *enforce.Lifecycle
	rdb    *redis.Client
	logger *zap.Logger
}

func NewAdminService(rdb *redis.Client, repo AdminRepository, bans *enforce.Lifecycle, validator *auth.BaseValidator, logger *zap.Logger) *AdminService {
	return &AdminService{
		BaseValidator: validator,
		repo:          repo,
		bans:          bans,
		rdb:           rdb,
		logger:        logger.Named("admin-service"),
	}
}

// SetEnforcement переключает рубильник для всех инстансов движка.
// Сначала персистим положение в Redis (холодный старт движка читает
// именно его), потом транслируем сигнал в Pub/Sub для живых инстансов.
func (s *AdminService) SetEnforcement(ctx context.Context, enabled bool) error {
	val := "off"
	if enabled {
		val = "on"
	}

	// 1. Persistence Layer
	if err := s.rdb.Set(ctx, infra.RedisKeyEnforcement, val, 0).Err(); err != nil {
		s.logger.Error("failed to persist enforcement state",
			zap.Bool("enabled", enabled),
			zap.Error(err))
		return fmt.Errorf("enforcement toggle database error: %w", err)
	}

	// 2. Real-time Signaling
	if err := s.rdb.Publish(ctx, infra.RedisChanEnforcement, val).Err(); err != nil {
		// Состояние уже сохранено: инстансы доберут его при ресинке подписки
		s.logger.Warn("runtime signal delivery failed",
			zap.String("channel", infra.RedisChanEnforcement),
			zap.Error(err))
	} else {
		s.logger.Info("enforcement toggled", zap.Bool("enabled", enabled))
	}

	return nil
}

// Sweep запускает уборку истекших банов вручную (кнопка в админке).
func (s *AdminService) Sweep(ctx context.Context) (int64, error) {
	return s.bans.Sweep(ctx)
}

// GetBan возвращает сырую запись из Ban Lifecycle (nil — записи нет).
// Смотрим в хранилище напрямую, минуя рубильник: оператору нужна правда,
// а не то, что видит заблокированный.
func (s *AdminService) GetBan(ctx context.Context, identity string) (*domain.BanRecord, error) {
	return s.bans.Inspect(ctx, identity)
}

// LiftBan снимает меру вручную. Идемпотентно.
func (s *AdminService) LiftBan(ctx context.Context, identity string) error {
	if err := s.bans.Lift(ctx, identity); err != nil {
		return err
	}
	s.logger.Info("ban lifted manually", zap.String("identity", identity))
	return nil
}

// FetchAuditLogs возвращает свежие события аудита, опционально по identity.
func (s *AdminService) FetchAuditLogs(ctx context.Context, identity string, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.FetchEntries(ctx, identity, limit)
}

func (s *AdminService) GetModerationStats(ctx context.Context) (*domain.ModerationStats, error) {
	// Сюда напрашивается кэширование в Redis на минуту,
	// чтобы не нагружать базу аналитическими запросами на каждый рендер.
	return s.repo.GetModerationStats(ctx)
}
