package appeal

/*
Файл service.go реализует Appeal Workflow — конечный автомат апелляций:

    pending -> approved | denied    (терминальные состояния, переходов дальше нет)

Правила:
- Не чаще одной апелляции на identity за 7 дней, независимо от исхода
  предыдущей (считаем от createdAt последней апелляции любого статуса).
- Решение принимает только ревьюер через Console API; апелляции никогда
  не «протухают» молча.
- Approve снимает бан identity, если он есть. Отсутствие бана — не ошибка:
  удаление идемпотентно.
- Защита от Double Decision — условный UPDATE по статусу pending в хранилище,
  а не проверка на чтении.
*/

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/modguard/internal/domain"
	"go.uber.org/zap"
)

// Repository описывает требования воркфлоу к хранилищу апелляций.
type Repository interface {
	InsertAppeal(ctx context.Context, a domain.Appeal) error
	GetAppealByID(ctx context.Context, id string) (*domain.Appeal, error)
	// LatestAppealByIdentity возвращает (nil, nil), если апелляций не было.
	LatestAppealByIdentity(ctx context.Context, identity string) (*domain.Appeal, error)
	// ResolveAppeal атомарно переводит pending-апелляцию в терминальный статус
	// и возвращает identity автора. domain.ErrNotFound — если заявки нет
	// или решение по ней уже принято.
	ResolveAppeal(ctx context.Context, id string, status domain.AppealStatus, reviewerID, note string) (string, error)
	FindAppeals(ctx context.Context, status domain.AppealStatus, limit int) ([]*domain.Appeal, error)
}

// BanLifter — минимальный контракт снятия бана (реализует enforce.Lifecycle).
type BanLifter interface {
	Lift(ctx context.Context, identity string) error
}

// TextRedactor вычищает чувствительные данные из сообщения апелляции
// перед персистентностью (реализует redact.Redactor).
type TextRedactor interface {
	Redact(text string) string
}

type Service struct {
	repo     Repository
	bans     BanLifter
	redactor TextRedactor
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, bans BanLifter, redactor TextRedactor, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		bans:     bans,
		redactor: redactor,
		logger:   logger.Named("appeals"),
		now:      time.Now,
	}
}

// Create регистрирует новую апелляцию от identity.
// ErrValidation — пустое сообщение, ErrRateLimited — не прошло 7 дней
// с предыдущей апелляции (любого статуса).
func (s *Service) Create(ctx context.Context, identity, message string) (*domain.Appeal, error) {
	if identity == "" || strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: identity and message are required", domain.ErrValidation)
	}

	last, err := s.repo.LatestAppealByIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if last != nil && s.now().Sub(last.CreatedAt) < domain.AppealCooldown {
		return nil, fmt.Errorf("%w: one appeal per %s", domain.ErrRateLimited, domain.AppealCooldown)
	}

	a := domain.Appeal{
		ID:       uuid.New().String(),
		Identity: identity,
		Message:  s.redactor.Redact(message),
		Status:   domain.AppealPending,

		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}

	if err := s.repo.InsertAppeal(ctx, a); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	s.logger.Info("appeal created", zap.String("appeal_id", a.ID), zap.String("identity", identity))
	return &a, nil
}

// Resolve фиксирует решение ревьюера. decision обязан быть approved|denied —
// все остальное отклоняется ДО каких-либо мутаций (ErrInvalidDecision).
func (s *Service) Resolve(ctx context.Context, appealID, decision, reviewerID, note string) error {
	var status domain.AppealStatus
	switch domain.AppealStatus(strings.ToLower(decision)) {
	case domain.AppealApproved:
		status = domain.AppealApproved
	case domain.AppealDenied:
		status = domain.AppealDenied
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidDecision, decision)
	}

	identity, err := s.repo.ResolveAppeal(ctx, appealID, status, reviewerID, note)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	// Апрув снимает бан. Идемпотентно: бана может уже не быть
	// (истек, убран вручную) — это штатная ситуация.
	if status == domain.AppealApproved {
		if err := s.bans.Lift(ctx, identity); err != nil {
			s.logger.Error("appeal approved but ban lift failed",
				zap.String("appeal_id", appealID),
				zap.String("identity", identity),
				zap.Error(err))
			return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
	}

	s.logger.Info("appeal resolved",
		zap.String("appeal_id", appealID),
		zap.String("decision", string(status)),
		zap.String("reviewer", reviewerID))
	return nil
}

// Get возвращает апелляцию по ID (ErrNotFound при отсутствии).
func (s *Service) Get(ctx context.Context, id string) (*domain.Appeal, error) {
	a, err := s.repo.GetAppealByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

// List возвращает очередь апелляций; status == "" — без фильтра.
func (s *Service) List(ctx context.Context, status domain.AppealStatus, limit int) ([]*domain.Appeal, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.repo.FindAppeals(ctx, status, limit)
}
