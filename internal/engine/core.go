package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/modguard/internal/audit"
	"github.com/xela07ax/modguard/internal/classify"
	"github.com/xela07ax/modguard/internal/domain"
	"github.com/xela07ax/modguard/internal/enforce"
	"github.com/xela07ax/modguard/internal/ledger"
	"github.com/xela07ax/modguard/internal/policy"
	"github.com/xela07ax/modguard/internal/redact"
	"go.uber.org/zap"
)

/*
Файл core.go — ядро Moderation & Escalation Engine. Единственная точка входа
для проверки контента (checkContent):

    сабмит -> Classifier -> (match) Redactor + Audit Trail
           -> Infraction Ledger -> Escalation Policy по счетчику окна
           -> (порог) Ban Lifecycle upsert + мера в вердикте

Политика отказов (асимметрия намеренная, не унифицировать):
- леджер недоступен  -> нарушение НЕ засчитано для эскалации (fail-closed),
  но вердикт классификации вызывающему все равно возвращается;
- аудит недоступен   -> проглатываем и логируем, модерация живет дальше;
- статус недоступен  -> fail-open (allowed: true) на стороне Ban Lifecycle.
*/

type Core struct {
	classifier *classify.Classifier
	redactor   *redact.Redactor
	ledger     *ledger.Ledger
	trail      *audit.Trail
	table      policy.Table
	bans       *enforce.Lifecycle
	state      enforce.EnforcementState

	metrics *Metrics
	locks   *identityLocks
	logger  *zap.Logger
	now     func() time.Time
}

func NewCore(
	classifier *classify.Classifier,
	redactor *redact.Redactor,
	lg *ledger.Ledger,
	trail *audit.Trail,
	table policy.Table,
	bans *enforce.Lifecycle,
	state enforce.EnforcementState,
	metrics *Metrics,
	logger *zap.Logger,
) *Core {
	return &Core{
		classifier: classifier,
		redactor:   redactor,
		ledger:     lg,
		trail:      trail,
		table:      table,
		bans:       bans,
		state:      state,
		metrics:    metrics,
		locks:      newIdentityLocks(),
		logger:     logger.Named("engine"),
		now:        time.Now,
	}
}

// CheckContent — checkContent из контракта движка.
// Ошибку возвращает только на невалидном входе: внутренние отказы
// деградируют в «вернуть вердикт и не эскалировать», наружу не выходят.
func (c *Core) CheckContent(ctx context.Context, identity, text string) (domain.Verdict, error) {
	if identity == "" || strings.TrimSpace(text) == "" {
		return domain.Verdict{}, fmt.Errorf("%w: identity and text are required", domain.ErrValidation)
	}

	start := c.now()
	res := c.classifier.Classify(text)

	defer func() {
		c.metrics.CheckDuration.WithLabelValues(fmt.Sprintf("%t", res.Flagged)).Observe(time.Since(start).Seconds())
	}()
	c.metrics.SubmissionsTotal.WithLabelValues(res.Category, string(res.Severity)).Inc()

	if !res.Flagged {
		return domain.Verdict{Flagged: false}, nil
	}

	verdict := domain.Verdict{
		Flagged:  true,
		Category: res.Category,
		Severity: res.Severity,
		EventID:  uuid.New().String(),
	}

	// Готовим данные аудита заранее: fingerprint считается от ОРИГИНАЛА,
	// фрагмент — уже от отредактированного текста
	entry := audit.Entry{
		EventID:            verdict.EventID,
		TraceID:            extractTraceID(ctx),
		Identity:           identity,
		Category:           res.Category,
		Severity:           string(res.Severity),
		ActionTaken:        "none",
		ContentFingerprint: audit.Fingerprint(text),
		RedactedExcerpt:    audit.Excerpt(c.redactor.Redact(text)),
		Timestamp:          start,
	}

	// Single-flight: count -> evaluate -> upsert для одного identity
	// выполняется строго последовательно (см. locks.go)
	unlock := c.locks.Lock(identity)
	defer unlock()

	reason := fmt.Sprintf("matched category %s (%s)", res.Category, res.Severity)

	rec, err := c.ledger.Record(ctx, identity, res.Severity, res.Category, reason)
	if err != nil {
		// Fail-closed для эскалации: незаписанное нарушение не считаем.
		// Вердикт классификации при этом возвращаем — вызывающий не страдает.
		c.metrics.LedgerErrorsTotal.Inc()
		entry.ActionTaken = "unrecorded"
		c.trail.Log(entry)
		return verdict, nil
	}

	count, err := c.ledger.CountSince(ctx, identity, res.Severity, rec.Timestamp.Add(-c.table.Window(res.Severity)))
	if err != nil {
		c.logger.Error("window count failed, skipping escalation",
			zap.String("identity", identity), zap.Error(err))
		c.trail.Log(entry)
		return verdict, nil
	}

	dec := c.table.Evaluate(res.Severity, count)
	if dec.Action != domain.ActionNone {
		verdict.Action = dec.Action
		if dec.Duration != nil {
			verdict.DurationMs = dec.Duration.Milliseconds()
		}
		entry.ActionTaken = string(dec.Action)

		enforced := c.state.Enabled()
		c.metrics.ActionsTotal.WithLabelValues(string(dec.Action), fmt.Sprintf("%t", enforced)).Inc()

		// Рубильник гейтит ТОЛЬКО персистентность меры: вердикт выше уже
		// несет вычисленный action, леджер и аудит отработали в любом случае
		if enforced {
			if err := c.bans.Apply(ctx, identity, dec.Action, dec.Duration, reason); err != nil {
				c.logger.Error("enforcement upsert failed",
					zap.String("identity", identity),
					zap.String("action", string(dec.Action)),
					zap.Error(err))
			}
		}
	}

	c.trail.Log(entry)
	return verdict, nil
}

// Status — getUserStatus из контракта движка.
func (c *Core) Status(ctx context.Context, identity string) domain.IdentityStatus {
	return c.bans.GetStatus(ctx, identity)
}
