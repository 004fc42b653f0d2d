package classify

import "github.com/xela07ax/modguard/internal/domain"

// Rule — одно декларативное правило: список токенов (мультиязычный),
// категория и ступень тяжести.
type Rule struct {
	Tokens   []string // храним уже в lower-case
	Category string
	Severity domain.Severity
}

// DefaultRules — поставляемый набор правил.
//
// ВАЖНО: контракт движка — побеждает ПЕРВОЕ правило в порядке объявления,
// а не самое тяжелое. Порядок ниже подобран так, чтобы тяжелые категории
// стояли раньше, но сам классификатор этого НЕ гарантирует и не должен:
// менять семантику на most-severe-wins можно только решением продукта.
var DefaultRules = []Rule{
	{
		Category: "violent_threat",
		Severity: domain.SeverityL3,
		Tokens: []string{
			"i will kill you", "going to kill you", "i will hurt you",
			"you deserve to die", "убью тебя", "я тебя убью", "te voy a matar",
		},
	},
	{
		Category: "hate_speech",
		Severity: domain.SeverityL2,
		Tokens: []string{
			"subhuman", "go back to your country", "your kind doesn't belong",
			"недолюди", "понаехали", "no perteneces aquí",
		},
	},
	{
		Category: "targeted_harassment",
		Severity: domain.SeverityL2,
		Tokens: []string{
			"nobody likes you", "everyone hates you", "kill yourself",
			"тебя никто не любит", "все тебя ненавидят",
		},
	},
	{
		Category: "profanity",
		Severity: domain.SeverityL1,
		Tokens: []string{
			"you are an idiot", "you're an idiot", "stupid moron", "shut up fool",
			"ты идиот", "придурок", "eres un idiota",
		},
	},
	{
		Category: "spam",
		Severity: domain.SeverityL1,
		Tokens: []string{
			"buy cheap followers", "click this link to win", "earn $5000 a week",
			"казино без регистрации", "быстрый заработок",
		},
	},
}
