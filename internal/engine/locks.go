package engine

import "sync"

// identityLocks — пер-identity сериализация шага count -> evaluate -> upsert.
// Базовый дизайн read-then-act гоночный: два конкурентных сабмита одного
// identity в один момент могут задвоить или потерять срабатывание порога.
// Закрываем окно single-flight'ом по ключу identity; разные identity
// друг друга не блокируют.
type identityLocks struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: make(map[string]*identityLock)}
}

// Lock захватывает мьютекс ключа и возвращает функцию освобождения.
// Записи с нулевым refcount убираются из мапы, чтобы она не росла вечно.
func (il *identityLocks) Lock(key string) (unlock func()) {
	il.mu.Lock()
	l, ok := il.locks[key]
	if !ok {
		l = &identityLock{}
		il.locks[key] = l
	}
	l.refs++
	il.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		il.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(il.locks, key)
		}
		il.mu.Unlock()
	}
}
