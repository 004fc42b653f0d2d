package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "modguard"
)

// Ключи состояния
const (
	// RedisKeyEnforcement хранит актуальное положение рубильника ("on"/"off"),
	// чтобы движок мог восстановить его при холодном старте.
	RedisKeyEnforcement = RedisNamespace + ":enforcement"

	// RedisKeyLockSweep — распределенная блокировка периодической уборки банов.
	RedisKeyLockSweep = RedisNamespace + ":lock:sweep"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanEnforcement — трансляция переключения enforcement с Console на все инстансы движка.
	RedisChanEnforcement = RedisNamespace + ":enforcement-signal"
)

// GetLockKey Генератор ключей для блокировок (если нужны динамические)
func GetLockKey(resource string) string {
	return fmt.Sprintf("%s:lock:%s", RedisNamespace, resource)
}
