package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/google/uuid"
	"github.com/xela07ax/modguard/internal/domain"
	"go.uber.org/zap"
)

// Repository описывает требования леджера к хранилищу.
type Repository interface {
	InsertInfraction(ctx context.Context, rec domain.InfractionRecord) error
	// CountInfractionsSince считает записи той же severity со СТРОГИМ
	// нижним порогом: timestamp > since. Severity не смешиваются.
	CountInfractionsSince(ctx context.Context, identity string, sev domain.Severity, since time.Time) (int, error)
}

// Ledger — журнал нарушений. Record всегда вызывается при сработавшем
// правиле, даже если enforcement выключен: учет и принуждение — независимые
// контуры.
type Ledger struct {
	repo    Repository
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time // подменяется в тестах
}

func New(repo Repository, logger *zap.Logger) *Ledger {
	return &Ledger{
		repo:    repo,
		logger:  logger.Named("ledger"),
		timeout: 3 * time.Second,
		now:     time.Now,
	}
}

// Record пишет одно нарушение. Транзиентные сбои хранилища ретраим с
// экспоненциальным бэкоффом; если запись так и не стала durable — возвращаем
// ErrStorageUnavailable, и вызывающий обязан трактовать сабмит как
// незасчитанный для эскалации (fail-closed on write).
func (l *Ledger) Record(ctx context.Context, identity string, sev domain.Severity, category, reason string) (*domain.InfractionRecord, error) {
	rec := domain.InfractionRecord{
		ID:        uuid.New().String(),
		Identity:  identity,
		Severity:  sev,
		Category:  category,
		Reason:    reason,
		Timestamp: l.now(),
	}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(3),
	)

	err := r.Do(func() error {
		tCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		return l.repo.InsertInfraction(tCtx, rec)
	})
	if err != nil {
		l.logger.Error("infraction write failed after retries",
			zap.String("identity", identity),
			zap.String("severity", string(sev)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	return &rec, nil
}

// CountSince возвращает число нарушений данной severity строго ПОЗЖЕ since.
func (l *Ledger) CountSince(ctx context.Context, identity string, sev domain.Severity, since time.Time) (int, error) {
	tCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	n, err := l.repo.CountInfractionsSince(tCtx, identity, sev, since)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return n, nil
}
