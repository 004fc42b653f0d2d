package audit

/*
Файл trail.go реализует асинхронный Audit Trail — append-only журнал решений
классификатора с пакетной записью в хранилище.

Ключевые особенности архитектуры:
- Non-blocking Logging: запись в аудит никогда не блокирует и не валит
  модерационный путь. Недоступность аудита — это деградация наблюдаемости,
  а не отказ модерации.
- Batching & Efficiency: накопление событий в памяти и пакетная запись
  (Bulk Insert) по таймеру или при достижении лимита батча.
- Drain Pattern & Graceful Shutdown: при остановке сервиса буфер вычитывается
  полностью (Final Flush) через закрытие входного канала и sync.WaitGroup.
- Load Shedding: при переполнении буфера событие не ждет, а сбрасывается
  с ошибкой в системный лог — Hot Path важнее полноты аудита.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const flushBatchSize = 100

// StorageInterface определяет, куда физически сохраняются записи аудита
type StorageInterface interface {
	// WriteBatch сохраняет пачку записей за один раз
	WriteBatch(ctx context.Context, entries []Entry) error
}

// Trail — писатель журнала. Читатели ходят в хранилище напрямую
// (console/service), здесь только путь записи.
type Trail struct {
	ch     chan Entry
	repo   StorageInterface
	logger *zap.Logger
	wg     sync.WaitGroup

	flushInterval time.Duration

	// Атомарный флаг (0 - открыт, 1 - закрыт): страховка от Log после Stop
	isClosed int32

	// Текущая заполненность буфера для метрики backpressure
	fill atomic.Int64
}

func NewTrail(repo StorageInterface, logger *zap.Logger, bufSize int, flushInterval time.Duration) *Trail {
	if bufSize <= 0 {
		bufSize = 10000
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	return &Trail{
		ch:            make(chan Entry, bufSize),
		repo:          repo,
		logger:        logger.With(zap.String("mod", "audit-trail")),
		flushInterval: flushInterval,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	atomic.StoreInt32(&t.isClosed, 1)

	// Крошечная пауза, чтобы конкурентные Log успели проскочить до close
	time.Sleep(10 * time.Millisecond)

	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

// Log ставит запись в очередь. Никогда не возвращает ошибку и не блокирует.
func (t *Trail) Log(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("audit entry dropped: trail is stopping", zap.String("event_id", entry.EventID))
		return
	}

	select {
	case t.ch <- entry:
		t.fill.Add(1)
	default:
		// Буфер переполнен (Backpressure) — сбрасываем нагрузку,
		// но оставляем след в системном логе, чтобы не потерять сигнал
		t.logger.Error("audit_buffer_overflow",
			zap.String("event_id", entry.EventID),
			zap.String("identity", entry.Identity),
		)
	}
}

// BufferFill возвращает приблизительную заполненность очереди (для метрик).
func (t *Trail) BufferFill() int64 {
	return t.fill.Load()
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]Entry, 0, flushBatchSize)
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст на shutdown уже может быть закрыт,
			// а Final Flush обязан дойти до хранилища
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case entry, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop() — самодостаточный сигнал завершения:
				// воркер сначала вычитал остатки очереди, потом получил ok == false
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			t.fill.Add(-1)
			batch = append(batch, entry)
			if len(batch) >= flushBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
