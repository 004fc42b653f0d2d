package classify

import (
	"strings"

	"github.com/xela07ax/modguard/internal/domain"
)

// Result — вердикт классификатора по одному тексту.
type Result struct {
	Flagged  bool
	Category string
	Severity domain.Severity
}

// Classifier проверяет текст по упорядоченному набору правил.
// Возвращается ПЕРВОЕ совпавшее правило (case-insensitive); множественные
// совпадения не агрегируются — одного лучшего матча достаточно, чтобы
// породить одно событие эскалации на сабмит. Детерминизм и объяснимость
// здесь важнее полноты.
type Classifier struct {
	rules []Rule
}

func New(rules []Rule) *Classifier {
	// Нормализуем токены один раз на старте, чтобы не платить за это в Hot Path
	prepared := make([]Rule, len(rules))
	for i, r := range rules {
		tokens := make([]string, len(r.Tokens))
		for j, t := range r.Tokens {
			tokens[j] = strings.ToLower(t)
		}
		prepared[i] = Rule{Tokens: tokens, Category: r.Category, Severity: r.Severity}
	}
	return &Classifier{rules: prepared}
}

// Classify — чистая неблокирующая функция, без I/O.
func (c *Classifier) Classify(text string) Result {
	lowered := strings.ToLower(text)

	for _, r := range c.rules {
		for _, token := range r.Tokens {
			if strings.Contains(lowered, token) {
				return Result{Flagged: true, Category: r.Category, Severity: r.Severity}
			}
		}
	}

	return Result{Flagged: false}
}
