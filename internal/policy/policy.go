package policy

import (
	"fmt"
	"time"

	"github.com/xela07ax/modguard/internal/domain"
)

// SeverityLevel — строка статической таблицы порогов. Не персистится,
// живет только в конфигурации ядра.
type SeverityLevel struct {
	Code           domain.Severity
	Weight         int
	Window         time.Duration // трейлинг-окно подсчета нарушений
	Threshold      int           // сколько нарушений в окне триггерят Action
	Action         domain.Action
	ActionDuration *time.Duration // nil = перманентно
}

// Decision — результат вычисления политики.
type Decision struct {
	Action   domain.Action
	Duration *time.Duration // nil = перманентно (имеет смысл только при Action != "")
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func durPtr(d time.Duration) *time.Duration { return &d }

// DefaultTable — фиксированная трехуровневая таблица эскалации.
// Чем тяжелее ступень, тем меньше повторов она прощает: L3 срабатывает
// с первого раза и навсегда, L1 терпит два повтора, чтобы не душить
// бытовую грубость перманентными мерами.
var DefaultTable = Table{
	domain.SeverityL1: {Code: domain.SeverityL1, Weight: 1, Window: days(30), Threshold: 3, Action: domain.ActionCooldown, ActionDuration: durPtr(time.Hour)},
	domain.SeverityL2: {Code: domain.SeverityL2, Weight: 5, Window: days(90), Threshold: 2, Action: domain.ActionSuspend, ActionDuration: durPtr(days(7))},
	domain.SeverityL3: {Code: domain.SeverityL3, Weight: 10, Window: days(365), Threshold: 1, Action: domain.ActionBan, ActionDuration: nil},
}

// Table — таблица порогов по ступеням.
type Table map[domain.Severity]SeverityLevel

// Validate проверяет консистентность таблицы. Вызывается один раз на старте;
// ошибка здесь фатальна для процесса (ErrPolicyMisconfigured), а не пер-запросна.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty threshold table", domain.ErrPolicyMisconfigured)
	}
	for code, lvl := range t {
		if code != lvl.Code {
			return fmt.Errorf("%w: level %s keyed as %s", domain.ErrPolicyMisconfigured, lvl.Code, code)
		}
		if lvl.Threshold < 1 {
			return fmt.Errorf("%w: level %s: threshold must be >= 1", domain.ErrPolicyMisconfigured, code)
		}
		if lvl.Window <= 0 {
			return fmt.Errorf("%w: level %s: window must be positive", domain.ErrPolicyMisconfigured, code)
		}
		switch lvl.Action {
		case domain.ActionCooldown, domain.ActionSuspend, domain.ActionBan:
		default:
			return fmt.Errorf("%w: level %s: unknown action %q", domain.ErrPolicyMisconfigured, code, lvl.Action)
		}
		if lvl.ActionDuration != nil && *lvl.ActionDuration <= 0 {
			return fmt.Errorf("%w: level %s: non-positive action duration", domain.ErrPolicyMisconfigured, code)
		}
	}
	return nil
}

// Window возвращает трейлинг-окно для ступени (0 — ступень неизвестна).
func (t Table) Window(sev domain.Severity) time.Duration {
	return t[sev].Window
}

// Evaluate — чистая функция (severity, windowCount) -> мера воздействия.
// Action != "" тогда и только тогда, когда windowCount >= threshold ступени.
func (t Table) Evaluate(sev domain.Severity, windowCount int) Decision {
	lvl, ok := t[sev]
	if !ok {
		return Decision{Action: domain.ActionNone}
	}
	if windowCount < lvl.Threshold {
		return Decision{Action: domain.ActionNone}
	}
	return Decision{Action: lvl.Action, Duration: lvl.ActionDuration}
}
