package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xela07ax/modguard/internal/domain"
)

func TestClassifyDefaultRules(t *testing.T) {
	c := New(DefaultRules)

	tests := []struct {
		name     string
		text     string
		flagged  bool
		category string
		severity domain.Severity
	}{
		{"clean text", "what a lovely day for moderation", false, "", ""},
		{"violent threat", "listen, i will kill you tomorrow", true, "violent_threat", domain.SeverityL3},
		{"violent threat russian", "я тебя убью, клянусь", true, "violent_threat", domain.SeverityL3},
		{"hate speech", "go back to your country now", true, "hate_speech", domain.SeverityL2},
		{"harassment", "honestly nobody likes you here", true, "targeted_harassment", domain.SeverityL2},
		{"profanity", "wow you are an idiot", true, "profanity", domain.SeverityL1},
		{"profanity spanish", "eres un idiota total", true, "profanity", domain.SeverityL1},
		{"spam", "buy cheap followers today!!!", true, "spam", domain.SeverityL1},
		{"case insensitive", "I WILL KILL YOU", true, "violent_threat", domain.SeverityL3},
		{"token inside longer text", "blah blah click this link to win blah", true, "spam", domain.SeverityL1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Classify(tt.text)
			assert.Equal(t, tt.flagged, res.Flagged)
			assert.Equal(t, tt.category, res.Category)
			assert.Equal(t, tt.severity, res.Severity)
		})
	}
}

// Контракт: побеждает первое правило в порядке объявления, даже если
// дальше по списку есть более тяжелое совпадение.
func TestClassifyFirstRuleWins(t *testing.T) {
	assert := assert.New(t)

	c := New([]Rule{
		{Category: "mild", Severity: domain.SeverityL1, Tokens: []string{"spam link"}},
		{Category: "severe", Severity: domain.SeverityL3, Tokens: []string{"kill"}},
	})

	res := c.Classify("spam link and kill in one message")
	assert.True(res.Flagged)
	assert.Equal("mild", res.Category)
	assert.Equal(domain.SeverityL1, res.Severity)
}

func TestClassifyNormalizesTokensOnce(t *testing.T) {
	assert := assert.New(t)

	// Токен задан в верхнем регистре — New обязан нормализовать
	c := New([]Rule{{Category: "x", Severity: domain.SeverityL1, Tokens: []string{"BaD ToKeN"}}})

	assert.True(c.Classify("contains bad token here").Flagged)
	assert.True(c.Classify("CONTAINS BAD TOKEN HERE").Flagged)
	assert.False(c.Classify("nothing to see").Flagged)
}
