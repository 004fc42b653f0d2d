package enforce

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/modguard/internal/infra"
	"go.uber.org/zap"
)

// Switch — рубильник enforcement. Продукт умеет работать с выключенным
// принуждением: классификация, леджер и аудит при этом продолжают работать
// в полном объеме, не персистится только BanRecord и не блокирует getStatus.
// Это конфигурация, а не вырезанный код.
//
// Состояние синхронизируется между инстансами через Redis: ключ для
// холодного старта + pub/sub канал для переключений в реальном времени
// (Console API публикует сигнал). Чтение — только из RAM (Hot Path).
type Switch struct {
	mu      sync.RWMutex
	enabled bool

	rdb    *redis.Client // nil допустим: однонодовый режим без синхронизации
	logger *zap.Logger
}

func NewSwitch(rdb *redis.Client, logger *zap.Logger, defaultEnabled bool) *Switch {
	return &Switch{
		enabled: defaultEnabled,
		rdb:     rdb,
		logger:  logger.With(zap.String("mod", "enforcement-switch")),
	}
}

// Enabled — максимально быстрая проверка для Hot Path.
func (s *Switch) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *Switch) set(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	s.logger.Info("enforcement toggled", zap.Bool("enabled", enabled))
}

// Init восстанавливает актуальное положение рубильника при старте сервиса.
// Отсутствие ключа — не ошибка: остаемся на дефолте из конфига.
func (s *Switch) Init(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}

	val, err := s.rdb.Get(ctx, infra.RedisKeyEnforcement).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	s.set(val == "on")
	return nil
}

// StartListener подписывается на переключения рубильника и обновляет RAM.
// Цикл «живучий»: при обрыве подписки переподключается и заново вызывает
// Init для ресинхронизации пропущенного состояния.
func (s *Switch) StartListener(ctx context.Context) {
	if s.rdb == nil {
		return
	}

	for {
		pubsub := s.rdb.Subscribe(ctx, infra.RedisChanEnforcement)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			s.logger.Error("failed to subscribe", zap.String("chan", infra.RedisChanEnforcement), zap.Error(err))
			pubsub.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		// Ресинхронизация при каждом успешном коннекте
		if err := s.Init(ctx); err != nil {
			s.logger.Error("enforcement state sync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // канал закрыт, идем на переподключение
				}
				switch msg.Payload {
				case "on", "true":
					s.set(true)
				case "off", "false":
					s.set(false)
				default:
					s.logger.Error("invalid enforcement signal", zap.String("payload", msg.Payload))
				}
			}
		}

		pubsub.Close()
		time.Sleep(time.Second)
	}
}
