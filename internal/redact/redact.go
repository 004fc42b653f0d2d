package redact

import "regexp"

/*
Файл redact.go реализует Redactor — вычистку чувствительных подстрок
(email, номера карт, ID-подобные группы цифр) ДО того, как текст попадет
в персистентность или логи. Движок никогда не хранит сырой контент:
в аудит уходит только fingerprint и отредактированный фрагмент.

Ключевые свойства:
- Тотальность: Redact никогда не падает и не возвращает ошибку. Любой вход,
  включая пустую строку и бинарный мусор, дает валидный результат.
- Идемпотентность: redact(redact(x)) == redact(x). Плейсхолдеры не содержат
  ни цифр, ни '@', поэтому повторный проход ничего не находит.
- Фиксированный порядок правил: email -> карта -> ID-номер. Паттерны на
  практике дизъюнктны; при пересечении побеждает более раннее правило.
*/

// Плейсхолдеры подстановки. Менять с осторожностью: от их формы зависит
// идемпотентность (см. выше).
const (
	PlaceholderEmail = "[email]"
	PlaceholderCard  = "[card-number]"
	PlaceholderID    = "[id-number]"
)

type rule struct {
	re          *regexp.Regexp
	replacement string
}

// Порядок объявления = порядок применения.
var rules = []rule{
	// Email-адреса
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), PlaceholderEmail},
	// Платежные карты: 13-16 цифр, допускаем разделители пробел/дефис между группами
	{regexp.MustCompile(`\b(?:\d[ \-]?){12,15}\d\b`), PlaceholderCard},
	// Национальные ID: группы цифр вида 123-45-6789 или сплошные 8-11 цифр
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b|\b\d{8,11}\b`), PlaceholderID},
}

// Redactor применяет фиксированный набор правил вычистки.
// Без состояния, безопасен для конкурентного использования.
type Redactor struct{}

func New() *Redactor {
	return &Redactor{}
}

// Redact заменяет все распознанные чувствительные фрагменты плейсхолдерами.
func (r *Redactor) Redact(text string) string {
	for _, rl := range rules {
		text = rl.re.ReplaceAllString(text, rl.replacement)
	}
	return text
}
