package enforce

/*
Файл bans.go реализует Ban Lifecycle — текущее принудительное состояние
каждого identity.

Ключевые решения:
- Lazy Expiry: истекшая запись удаляется как побочный эффект чтения статуса,
  отдельный таймер для корректности не нужен. Периодический Sweep — чистая
  гигиена хранилища, он идемпотентен и безопасен рядом с живыми чтениями.
- Fail-Open на чтении: отказ хранилища при проверке статуса НЕ превращается
  в отказ в обслуживании — возвращаем allowed: true, поднимаем метрику и
  громко логируем. Это осознанный трейдофф доступности против строгости,
  и он намеренно асимметричен fail-closed записи в леджер.
- Circuit Breaker вокруг чтений: при деградации базы перестаем долбить ее
  запросами статуса, переходя в fail-open до восстановления.
*/

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/modguard/internal/domain"
	"github.com/xela07ax/modguard/internal/infra"
	"go.uber.org/zap"
)

// BanRepository описывает требования Ban Lifecycle к хранилищу.
// GetBan возвращает (nil, nil) при отсутствии записи.
type BanRepository interface {
	GetBan(ctx context.Context, identity string) (*domain.BanRecord, error)
	UpsertBan(ctx context.Context, rec domain.BanRecord) error
	DeleteBan(ctx context.Context, identity string) error
	DeleteExpiredBans(ctx context.Context, now time.Time) (int64, error)
}

// EnforcementState — минимальный контракт рубильника (реализует Switch).
type EnforcementState interface {
	Enabled() bool
}

type Lifecycle struct {
	repo  BanRepository
	state EnforcementState
	rdb   *redis.Client // nil допустим: sweep без распределенного лока
	cb    *gobreaker.CircuitBreaker

	logger *zap.Logger
	now    func() time.Time

	// Колбэки для метрик (подключает engine, могут быть nil)
	onFailOpen    func()
	onBreakerMove func(to gobreaker.State)
}

func NewLifecycle(repo BanRepository, state EnforcementState, rdb *redis.Client, logger *zap.Logger) *Lifecycle {
	l := &Lifecycle{
		repo:   repo,
		state:  state,
		rdb:    rdb,
		logger: logger.With(zap.String("mod", "ban-lifecycle")),
		now:    time.Now,
	}

	l.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ban-store",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.logger.Warn("ban store breaker state change",
				zap.String("from", from.String()), zap.String("to", to.String()))
			if l.onBreakerMove != nil {
				l.onBreakerMove(to)
			}
		},
	})

	return l
}

// OnFailOpen регистрирует колбэк, дергаемый при каждом fail-open ответе.
func (l *Lifecycle) OnFailOpen(fn func()) { l.onFailOpen = fn }

// OnBreakerMove регистрирует колбэк на смену состояния предохранителя.
func (l *Lifecycle) OnBreakerMove(fn func(to gobreaker.State)) { l.onBreakerMove = fn }

func (l *Lifecycle) failOpen() domain.IdentityStatus {
	if l.onFailOpen != nil {
		l.onFailOpen()
	}
	return domain.IdentityStatus{Allowed: true}
}

// GetStatus возвращает текущий статус identity.
// При выключенном enforcement всегда allowed: true — в хранилище даже
// не ходим, записи (если есть) остаются нетронутыми.
func (l *Lifecycle) GetStatus(ctx context.Context, identity string) domain.IdentityStatus {
	if !l.state.Enabled() {
		return domain.IdentityStatus{Allowed: true}
	}

	res, err := l.cb.Execute(func() (interface{}, error) {
		tCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return l.repo.GetBan(tCtx, identity)
	})
	if err != nil {
		// Сюда попадают и отказ базы, и открытый предохранитель
		l.logger.Error("status check failed, failing open", zap.String("identity", identity), zap.Error(err))
		return l.failOpen()
	}

	rec, _ := res.(*domain.BanRecord)
	if rec == nil {
		return domain.IdentityStatus{Allowed: true}
	}

	// Lazy Expiry: запись пережила свой срок — убираем ее прямо на чтении.
	// Удаление best-effort: повторное удаление уже убранной записи — no-op,
	// так что гонка со Sweep безопасна.
	if rec.Expired(l.now()) {
		if err := l.repo.DeleteBan(ctx, identity); err != nil {
			l.logger.Warn("lazy expiry delete failed", zap.String("identity", identity), zap.Error(err))
		}
		return domain.IdentityStatus{Allowed: true}
	}

	return domain.IdentityStatus{
		Allowed: false,
		Status:  rec.Status,
		Until:   rec.Until,
		Reason:  rec.Reason,
	}
}

// Apply фиксирует принудительную меру. Upsert по identity гарантирует
// не больше одной активной записи; duration == nil означает перманентно.
func (l *Lifecycle) Apply(ctx context.Context, identity string, action domain.Action, duration *time.Duration, reason string) error {
	rec := domain.BanRecord{
		Identity:    identity,
		Status:      domain.StatusFor(action),
		Reason:      reason,
		LastUpdated: l.now(),
	}
	if duration != nil {
		until := l.now().Add(*duration)
		rec.Until = &until
	}

	return l.repo.UpsertBan(ctx, rec)
}

// Inspect возвращает сырую запись для операторских инструментов:
// без рубильника, без fail-open и без lazy expiry. Истекшая запись
// вернется как есть — оператору важно видеть фактическое содержимое.
func (l *Lifecycle) Inspect(ctx context.Context, identity string) (*domain.BanRecord, error) {
	return l.repo.GetBan(ctx, identity)
}

// Lift снимает меру с identity. Идемпотентен: отсутствие записи — не ошибка
// (так апрув апелляции работает и для уже истекших банов).
func (l *Lifecycle) Lift(ctx context.Context, identity string) error {
	return l.repo.DeleteBan(ctx, identity)
}

// Sweep удаляет все записи с истекшим until. Запускается тикером движка и
// вручную из Console. Распределенный лок (SetNX) не дает инстансам делать
// одну и ту же работу параллельно; сама операция идемпотентна, так что
// потеря лока ничем не грозит.
func (l *Lifecycle) Sweep(ctx context.Context) (int64, error) {
	if l.rdb != nil {
		ok, err := l.rdb.SetNX(ctx, infra.RedisKeyLockSweep, "processing", 30*time.Second).Result()
		if err != nil {
			l.logger.Warn("sweep lock unavailable, proceeding without it", zap.Error(err))
		} else if !ok {
			return 0, nil // другой инстанс уже подметает
		}
	}

	removed, err := l.repo.DeleteExpiredBans(ctx, l.now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		l.logger.Info("expired bans swept", zap.Int64("removed", removed))
	}
	return removed, nil
}
